package bytecode

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Magic is the fixed 4-byte tag "TAIL" read/written little-endian, i.e. the
// byte sequence 0x4C 0x49 0x41 0x54 on the wire.
const Magic uint32 = 0x5441494C

// Serialize writes img to w in the byte-exact little-endian layout of §4.5.
func Serialize(img *Image, w io.Writer) error {
	bw := bufio.NewWriter(w)

	if err := binary.Write(bw, binary.LittleEndian, Magic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, img.Version); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, img.Flags); err != nil {
		return err
	}

	if err := binary.Write(bw, binary.LittleEndian, uint32(len(img.Code))); err != nil {
		return err
	}
	for _, ins := range img.Code {
		if err := bw.WriteByte(byte(ins.Op)); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, ins.Operand); err != nil {
			return err
		}
	}

	if err := binary.Write(bw, binary.LittleEndian, uint32(len(img.Constants))); err != nil {
		return err
	}
	for _, c := range img.Constants {
		if err := writeConstant(bw, c); err != nil {
			return err
		}
	}

	if err := writeStrings(bw, img.Strings); err != nil {
		return err
	}

	if err := writeIntArrays(bw, img.IntArrays); err != nil {
		return err
	}
	if err := writeFloatArrays(bw, img.FloatArrays); err != nil {
		return err
	}
	if err := writeStringArrays(bw, img.StringArrays); err != nil {
		return err
	}

	if err := binary.Write(bw, binary.LittleEndian, uint32(len(img.Functions))); err != nil {
		return err
	}
	for _, f := range img.Functions {
		if err := writeString(bw, f.Name); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, f.Address); err != nil {
			return err
		}
		if err := bw.WriteByte(f.Arity); err != nil {
			return err
		}
		if err := bw.WriteByte(f.Locals); err != nil {
			return err
		}
	}

	if err := binary.Write(bw, binary.LittleEndian, uint32(len(img.NativeImports))); err != nil {
		return err
	}
	for _, n := range img.NativeImports {
		if err := writeString(bw, n); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func writeConstant(w io.Writer, c Constant) error {
	if err := binary.Write(w, binary.LittleEndian, uint8(c.Tag)); err != nil {
		return err
	}
	payload := [8]byte{}
	switch c.Tag {
	case TagInt:
		binary.LittleEndian.PutUint64(payload[:], uint64(c.I))
	case TagFloat:
		binary.LittleEndian.PutUint64(payload[:], math.Float64bits(c.F))
	case TagBool:
		if c.B {
			payload[0] = 1
		}
	case TagString, TagArrayInt, TagArrayFloat, TagArrayString:
		binary.LittleEndian.PutUint32(payload[:4], c.StrIdx)
	case TagNil:
		// all-zero payload
	}
	_, err := w.Write(payload[:])
	return err
}

func writeStrings(w io.Writer, strs []string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(strs))); err != nil {
		return err
	}
	for _, s := range strs {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func writeIntArrays(w io.Writer, arrs [][]int64) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(arrs))); err != nil {
		return err
	}
	for _, a := range arrs {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(a))); err != nil {
			return err
		}
		for _, v := range a {
			if err := binary.Write(w, binary.LittleEndian, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeFloatArrays(w io.Writer, arrs [][]float64) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(arrs))); err != nil {
		return err
	}
	for _, a := range arrs {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(a))); err != nil {
			return err
		}
		for _, v := range a {
			if err := binary.Write(w, binary.LittleEndian, math.Float64bits(v)); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeStringArrays(w io.Writer, arrs [][]string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(arrs))); err != nil {
		return err
	}
	for _, a := range arrs {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(a))); err != nil {
			return err
		}
		for _, s := range a {
			if err := writeString(w, s); err != nil {
				return err
			}
		}
	}
	return nil
}

// Deserialize reads an Image back from r. It validates the magic number and
// every length-prefixed bound; a truncated or malformed stream aborts the
// load with an error. Trailing bytes after the native-import list are
// ignored (a warning condition, not a failure — see §4.5).
func Deserialize(r io.Reader) (*Image, error) {
	br := bufio.NewReader(r)
	img := NewImage()

	var magic uint32
	if err := binary.Read(br, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("bad magic: got 0x%08X, want 0x%08X", magic, Magic)
	}
	if err := binary.Read(br, binary.LittleEndian, &img.Version); err != nil {
		return nil, fmt.Errorf("reading version: %w", err)
	}
	if err := binary.Read(br, binary.LittleEndian, &img.Flags); err != nil {
		return nil, fmt.Errorf("reading flags: %w", err)
	}

	var codeLen uint32
	if err := binary.Read(br, binary.LittleEndian, &codeLen); err != nil {
		return nil, fmt.Errorf("reading code length: %w", err)
	}
	img.Code = make([]Instruction, codeLen)
	for i := range img.Code {
		op, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("reading opcode %d: %w", i, err)
		}
		var operand uint32
		if err := binary.Read(br, binary.LittleEndian, &operand); err != nil {
			return nil, fmt.Errorf("reading operand %d: %w", i, err)
		}
		img.Code[i] = Instruction{Op: OpCode(op), Operand: operand}
	}

	var constCount uint32
	if err := binary.Read(br, binary.LittleEndian, &constCount); err != nil {
		return nil, fmt.Errorf("reading constant count: %w", err)
	}
	img.Constants = make([]Constant, constCount)
	for i := range img.Constants {
		c, err := readConstant(br)
		if err != nil {
			return nil, fmt.Errorf("reading constant %d: %w", i, err)
		}
		img.Constants[i] = c
	}

	strs, err := readStrings(br)
	if err != nil {
		return nil, fmt.Errorf("reading strings: %w", err)
	}
	img.Strings = strs

	if img.IntArrays, err = readIntArrays(br); err != nil {
		return nil, fmt.Errorf("reading int arrays: %w", err)
	}
	if img.FloatArrays, err = readFloatArrays(br); err != nil {
		return nil, fmt.Errorf("reading float arrays: %w", err)
	}
	if img.StringArrays, err = readStringArrays(br); err != nil {
		return nil, fmt.Errorf("reading string arrays: %w", err)
	}

	var funcCount uint32
	if err := binary.Read(br, binary.LittleEndian, &funcCount); err != nil {
		return nil, fmt.Errorf("reading function count: %w", err)
	}
	img.Functions = make([]FunctionSym, funcCount)
	for i := range img.Functions {
		name, err := readString(br)
		if err != nil {
			return nil, fmt.Errorf("reading function %d name: %w", i, err)
		}
		var addr uint32
		if err := binary.Read(br, binary.LittleEndian, &addr); err != nil {
			return nil, fmt.Errorf("reading function %d address: %w", i, err)
		}
		arity, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("reading function %d arity: %w", i, err)
		}
		locals, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("reading function %d locals: %w", i, err)
		}
		img.Functions[i] = FunctionSym{Name: name, Address: addr, Arity: arity, Locals: locals}
	}

	var nativeCount uint32
	if err := binary.Read(br, binary.LittleEndian, &nativeCount); err != nil {
		return nil, fmt.Errorf("reading native import count: %w", err)
	}
	img.NativeImports = make([]string, nativeCount)
	for i := range img.NativeImports {
		n, err := readString(br)
		if err != nil {
			return nil, fmt.Errorf("reading native import %d: %w", i, err)
		}
		img.NativeImports[i] = n
	}

	return img, nil
}

func readConstant(r io.Reader) (Constant, error) {
	var tagByte uint8
	if err := binary.Read(r, binary.LittleEndian, &tagByte); err != nil {
		return Constant{}, err
	}
	var payload [8]byte
	if _, err := io.ReadFull(r, payload[:]); err != nil {
		return Constant{}, err
	}
	c := Constant{Tag: ValueTag(tagByte)}
	switch c.Tag {
	case TagInt:
		c.I = int64(binary.LittleEndian.Uint64(payload[:]))
	case TagFloat:
		c.F = math.Float64frombits(binary.LittleEndian.Uint64(payload[:]))
	case TagBool:
		c.B = payload[0] != 0
	case TagString, TagArrayInt, TagArrayFloat, TagArrayString:
		c.StrIdx = binary.LittleEndian.Uint32(payload[:4])
	}
	return c, nil
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readStrings(r io.Reader) ([]string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func readIntArrays(r io.Reader) ([][]int64, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	out := make([][]int64, n)
	for i := range out {
		var l uint32
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			return nil, err
		}
		arr := make([]int64, l)
		for j := range arr {
			if err := binary.Read(r, binary.LittleEndian, &arr[j]); err != nil {
				return nil, err
			}
		}
		out[i] = arr
	}
	return out, nil
}

func readFloatArrays(r io.Reader) ([][]float64, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	out := make([][]float64, n)
	for i := range out {
		var l uint32
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			return nil, err
		}
		arr := make([]float64, l)
		for j := range arr {
			var bits uint64
			if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
				return nil, err
			}
			arr[j] = math.Float64frombits(bits)
		}
		out[i] = arr
	}
	return out, nil
}

func readStringArrays(r io.Reader) ([][]string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	out := make([][]string, n)
	for i := range out {
		var l uint32
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			return nil, err
		}
		arr := make([]string, l)
		for j := range arr {
			s, err := readString(r)
			if err != nil {
				return nil, err
			}
			arr[j] = s
		}
		out[i] = arr
	}
	return out, nil
}
