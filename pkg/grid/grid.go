// Package grid converts a flat buffer index into column/row coordinates.
package grid

// GetGridCoords returns the (x, y) position of a flat index in a grid of
// the given column count, row-major.
func GetGridCoords(index, cols int) (x, y int) {
	return index % cols, index / cols
}
