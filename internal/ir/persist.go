package ir

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
)

// Magic starts every persisted tuple program.
const Magic = "TAIR"

// FormatVersion is the version byte written after Magic.
const FormatVersion = 1

// ErrNotIR is returned by Decode when the input does not start with Magic.
var ErrNotIR = errors.New("not an intermediate program")

// IsIR reports whether data starts with the persisted program magic.
func IsIR(data []byte) bool {
	return bytes.HasPrefix(data, []byte(Magic))
}

// Encode writes p to w.
func Encode(w io.Writer, p *Program) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Magic); err != nil {
		return err
	}
	if err := bw.WriteByte(FormatVersion); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(p); err != nil {
		return fmt.Errorf("encode intermediate program: %w", err)
	}
	return bw.Flush()
}

// Decode reads a program written by Encode and validates it.
func Decode(r io.Reader) (*Program, error) {
	br := bufio.NewReader(r)
	head := make([]byte, len(Magic)+1)
	if _, err := io.ReadFull(br, head); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrNotIR
		}
		return nil, err
	}
	if string(head[:len(Magic)]) != Magic {
		return nil, ErrNotIR
	}
	if v := head[len(Magic)]; v != FormatVersion {
		return nil, fmt.Errorf("intermediate program version %d, want %d", v, FormatVersion)
	}

	var p Program
	if err := gob.NewDecoder(br).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode intermediate program: %w", err)
	}
	if p.Arrays == nil {
		p.Arrays = make(map[string]bool)
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that every address is resolved and in range and that
// every global reference matches the layout.
func Validate(p *Program) error {
	n := len(p.Tuples)
	for i := range p.Tuples {
		t := &p.Tuples[i]
		if !t.Op.Valid() {
			return buildErrorf("tuple %d: invalid opcode %d", i, t.Op)
		}
		if t.Op.Jumps() {
			if t.Target == nil || t.Target.Index < 0 || t.Target.Index >= n {
				return buildErrorf("tuple %d: %s target out of range", i, t.Op)
			}
		}
		if t.Op == Call && (t.Arg(0) < 0 || t.Arg(0) >= len(p.Funcs)) {
			return buildErrorf("tuple %d: call to unknown function %d", i, t.Arg(0))
		}
		if name, ok := t.GlobalName(); ok {
			pos, _ := t.VarArg()
			slot := t.Arg(pos + 1)
			if slot < 0 || slot >= len(p.Globals) || p.Globals[slot].Name != name {
				return buildErrorf("tuple %d: global %q has bad offset %d", i, name, slot)
			}
		}
	}
	for _, f := range p.Funcs {
		if f.Entry == nil || f.Entry.Index < 0 || f.Entry.Index >= n {
			return buildErrorf("function %s: entry out of range", f.Name)
		}
		if len(f.Arrays) != len(f.Params) {
			return buildErrorf("function %s: parameter kinds do not match parameters", f.Name)
		}
	}
	if n == 0 {
		return buildErrorf("program has no instructions")
	}
	return nil
}
