// Package machine defines the tvm image format produced by the compiler
// backend and the virtual machine that executes it.
package machine

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Magic starts every encoded image.
const Magic = "TVM\x00"

// FormatVersion is the version byte written after Magic.
const FormatVersion = 1

// Ext is the file extension of image files.
const Ext = ".tvm"

// ErrNotImage is returned by Decode when the input does not start with Magic.
var ErrNotImage = errors.New("not a tvm image")

// Func describes a compiled user function.
type Func struct {
	Name   string
	Entry  int32
	Params []string
}

// Global describes a global variable slot.
type Global struct {
	Name  string
	Array bool
}

// Line maps the instructions from PC onwards to a source line.
type Line struct {
	PC   int32
	Line int32
}

// Image is a compiled program: flat code with its constant pools and the
// layout the VM needs to run it.
type Image struct {
	BuildID uuid.UUID
	Name    string

	Code    []int32
	Nums    []float64
	Strs    []string
	Globals []Global
	Funcs   []Func
	Ranges  int
	Lines   []Line
}

// NewImage returns an empty image with a fresh build ID.
func NewImage(name string) *Image {
	return &Image{BuildID: uuid.New(), Name: name}
}

// LineAt returns the source line of the instruction at pc, 0 when unknown.
func (img *Image) LineAt(pc int) int {
	i := sort.Search(len(img.Lines), func(i int) bool { return int(img.Lines[i].PC) > pc })
	if i == 0 {
		return 0
	}
	return int(img.Lines[i-1].Line)
}

// IsImage reports whether data starts with the image magic.
func IsImage(data []byte) bool {
	return bytes.HasPrefix(data, []byte(Magic))
}

// Encode writes img to w.
func Encode(w io.Writer, img *Image) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Magic); err != nil {
		return err
	}
	if err := bw.WriteByte(FormatVersion); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(img); err != nil {
		return fmt.Errorf("encode image: %w", err)
	}
	return bw.Flush()
}

// Marshal encodes img into a byte slice.
func Marshal(img *Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads an image written by Encode and verifies it.
func Decode(r io.Reader) (*Image, error) {
	br := bufio.NewReader(r)
	head := make([]byte, len(Magic)+1)
	if _, err := io.ReadFull(br, head); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrNotImage
		}
		return nil, err
	}
	if string(head[:len(Magic)]) != Magic {
		return nil, ErrNotImage
	}
	if v := head[len(Magic)]; v != FormatVersion {
		return nil, fmt.Errorf("tvm image version %d, want %d", v, FormatVersion)
	}
	var img Image
	if err := gob.NewDecoder(br).Decode(&img); err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if err := img.Verify(); err != nil {
		return nil, err
	}
	return &img, nil
}

// Verify checks that every instruction is known, its operands are present
// and its jump targets and pool indexes are in range.
func (img *Image) Verify() error {
	n := len(img.Code)
	starts := make([]bool, n+1)
	for pc := 0; pc < n; {
		starts[pc] = true
		op := Op(img.Code[pc])
		if !op.Valid() {
			return fmt.Errorf("invalid instruction %d at %d", img.Code[pc], pc)
		}
		if pc+op.Size() > n {
			return fmt.Errorf("%s at %d: truncated operands", op, pc)
		}
		args := img.Code[pc+1 : pc+op.Size()]
		switch op {
		case Num, Int:
			if int(args[0]) >= len(img.Nums) {
				return fmt.Errorf("%s at %d: number %d out of range", op, pc, args[0])
			}
		case Str, MatchRecord:
			if int(args[0]) >= len(img.Strs) {
				return fmt.Errorf("%s at %d: string %d out of range", op, pc, args[0])
			}
		case LoadGlobal:
			if int(args[0]) >= len(img.Globals) {
				return fmt.Errorf("%s at %d: global %d out of range", op, pc, args[0])
			}
		case CallUser:
			if int(args[0]) >= len(img.Funcs) {
				return fmt.Errorf("%s at %d: function %d out of range", op, pc, args[0])
			}
		case RangeGet, RangeSet:
			if int(args[0]) >= img.Ranges {
				return fmt.Errorf("%s at %d: range %d out of range", op, pc, args[0])
			}
		}
		pc += op.Size()
	}
	check := func(pc int, target int32) error {
		if target < 0 || int(target) >= n || !starts[target] {
			return fmt.Errorf("jump at %d to %d is not an instruction", pc, target)
		}
		return nil
	}
	for pc := 0; pc < n; pc += Op(img.Code[pc]).Size() {
		op := Op(img.Code[pc])
		if j := op.JumpOperand(); j >= 0 {
			if err := check(pc, img.Code[pc+1+j]); err != nil {
				return err
			}
		}
	}
	for _, f := range img.Funcs {
		if err := check(-1, f.Entry); err != nil {
			return fmt.Errorf("function %s: %w", f.Name, err)
		}
	}
	return nil
}

// Disassemble writes a listing of img to w.
func (img *Image) Disassemble(w io.Writer) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; %s build %s\n", img.Name, img.BuildID)
	entries := make(map[int32]string, len(img.Funcs))
	for _, f := range img.Funcs {
		entries[f.Entry] = f.Name
	}
	for pc := 0; pc < len(img.Code); {
		if name, ok := entries[int32(pc)]; ok {
			fmt.Fprintf(&sb, "\nfunction %s:\n", name)
		}
		op := Op(img.Code[pc])
		fmt.Fprintf(&sb, "%5d  %-14s", pc, op)
		for _, a := range img.Code[pc+1 : pc+op.Size()] {
			fmt.Fprintf(&sb, " %d", a)
		}
		switch op {
		case Num, Int:
			fmt.Fprintf(&sb, "  ; %v", img.Nums[img.Code[pc+1]])
		case Str, MatchRecord:
			fmt.Fprintf(&sb, "  ; %q", img.Strs[img.Code[pc+1]])
		case LoadGlobal:
			fmt.Fprintf(&sb, "  ; %s", img.Globals[img.Code[pc+1]].Name)
		case CallUser:
			fmt.Fprintf(&sb, "  ; %s", img.Funcs[img.Code[pc+1]].Name)
		}
		sb.WriteByte('\n')
		pc += op.Size()
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
