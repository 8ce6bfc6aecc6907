// Command tailmon is an interactive visualizer for a running bytecode
// image: it single-steps the VM at a configurable rate and renders the
// live operand stack, call depth, globals, and a short disassembly window
// as a scrolling text grid.
package main

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"tail/pkg/bytecode"
	"tail/pkg/grid"
	"tail/pkg/host"
	"tail/pkg/vm"
)

const (
	cols       = 64
	rows       = 40
	cellWidth  = 7
	cellHeight = 13
	windowW    = cols * cellWidth
	windowH    = rows * cellHeight
)

var stepRates = []int{0, 1, 8, 64, 1024}

type Game struct {
	machine  *vm.VM
	face     font.Face
	canvas   *ebiten.Image
	rateIdx  int
	paused   bool
	finished bool
	runErr   error
}

func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.paused = !g.paused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyRight) {
		g.stepOnce()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyUp) && g.rateIdx < len(stepRates)-1 {
		g.rateIdx++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyDown) && g.rateIdx > 0 {
		g.rateIdx--
	}

	if !g.paused && !g.finished {
		for i := 0; i < stepRates[g.rateIdx]; i++ {
			if !g.stepOnce() {
				break
			}
		}
	}
	return nil
}

// stepOnce executes a single instruction and reports whether the VM is
// still running afterward.
func (g *Game) stepOnce() bool {
	if g.finished {
		return false
	}
	if err := g.machine.Step(); err != nil {
		g.runErr = err
		g.finished = true
		return false
	}
	if !g.machine.Running() {
		g.finished = true
		return false
	}
	return true
}

// Draw flattens the trace text into a cols×rows cell buffer, the same shape
// as the reference's text-VRAM overlay, then paints each occupied cell at
// the (x, y) pixel position pkg/grid derives from its flat index.
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(color.Black)

	buf := g.renderBuffer()
	d := &font.Drawer{
		Dst:  screen,
		Src:  image.NewUniform(color.RGBA{0, 255, 80, 255}),
		Face: g.face,
	}
	for i, ch := range buf {
		if ch == 0 {
			continue
		}
		cx, cy := grid.GetGridCoords(i, cols)
		d.Dot = fixed.P(cx*cellWidth, cy*cellHeight+cellHeight)
		d.DrawString(string(ch))
	}
}

// renderBuffer lays out renderLines() into a flat cols×rows rune buffer.
func (g *Game) renderBuffer() []rune {
	buf := make([]rune, cols*rows)
	for row, line := range g.renderLines() {
		if row >= rows {
			break
		}
		for col, ch := range line {
			if col >= cols {
				break
			}
			buf[row*cols+col] = ch
		}
	}
	return buf
}

func (g *Game) renderLines() []string {
	var lines []string

	status := "RUNNING"
	if g.finished {
		status = "HALTED"
	}
	if g.paused {
		status = "PAUSED"
	}
	lines = append(lines, fmt.Sprintf("tailmon  status=%s  rate=%d/step  fn=%s  pc=%d  depth=%d",
		status, stepRates[g.rateIdx], g.machine.CurrentFunctionName(), g.machine.PC(), g.machine.CallDepth()))
	if g.runErr != nil {
		lines = append(lines, fmt.Sprintf("error: %v", g.runErr))
	}
	lines = append(lines, "")
	lines = append(lines, "-- next instructions --")
	for i := 0; i < 6; i++ {
		addr := g.machine.PC() + uint32(i)
		ins, ok := g.machine.InstructionAt(addr)
		if !ok {
			break
		}
		marker := "  "
		if i == 0 {
			marker = "->"
		}
		lines = append(lines, fmt.Sprintf("%s %5d  %-12s %d", marker, addr, ins.Op.String(), ins.Operand))
	}

	lines = append(lines, "")
	lines = append(lines, "-- operand stack (top last) --")
	stack := g.machine.StackSnapshot()
	start := 0
	if len(stack) > 12 {
		start = len(stack) - 12
	}
	for i := start; i < len(stack); i++ {
		lines = append(lines, fmt.Sprintf("  [%2d] %s", i, g.machine.FormatValue(stack[i])))
	}

	lines = append(lines, "")
	lines = append(lines, "-- globals --")
	globals := g.machine.GlobalsSnapshot()
	for i, v := range globals {
		if i >= 12 {
			lines = append(lines, fmt.Sprintf("  ... %d more", len(globals)-12))
			break
		}
		lines = append(lines, fmt.Sprintf("  g%-3d %s", i, g.machine.FormatValue(v)))
	}

	lines = append(lines, "")
	lines = append(lines, "space=pause/resume  right=step  up/down=speed")
	return lines
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return windowW, windowH
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: tailmon <file.tailc>")
		os.Exit(1)
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		log.Fatalf("cannot open %q: %v", os.Args[1], err)
	}
	img, err := bytecode.Deserialize(f)
	f.Close()
	if err != nil {
		log.Fatalf("cannot load image %q: %v", os.Args[1], err)
	}

	machine := vm.New(img)
	store := host.NewFileStore()
	host.Register(machine, store)
	if err := machine.Init(); err != nil {
		log.Fatalf("cannot start VM: %v", err)
	}

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowTitle("tailmon — bytecode execution visualizer")

	g := &Game{
		machine: machine,
		face:    basicfont.Face7x13,
		paused:  true,
		rateIdx: 1,
	}

	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
