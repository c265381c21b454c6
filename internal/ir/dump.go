package ir

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kolkov/tawk/internal/semantic"
)

// Dump writes a human-readable listing of the program to w.
func Dump(w io.Writer, p *Program) error {
	var sb strings.Builder

	if len(p.Globals) > 0 {
		sb.WriteString("=== Globals ===\n")
		for i, g := range p.Globals {
			kind := "scalar"
			if g.Array {
				kind = "array"
			}
			fmt.Fprintf(&sb, "  [%d] %s (%s)\n", i, g.Name, kind)
		}
		sb.WriteString("\n")
	}

	if len(p.Funcs) > 0 {
		sb.WriteString("=== Functions ===\n")
		for i, f := range p.Funcs {
			fmt.Fprintf(&sb, "  [%d] %s(%s) at %d\n", i, f.Name, strings.Join(f.Params, ", "), f.Entry.Index)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("=== Tuples ===\n")
	line := 0
	for i := range p.Tuples {
		t := &p.Tuples[i]
		if t.Line != line && t.Line > 0 {
			line = t.Line
			fmt.Fprintf(&sb, "  ; line %d\n", line)
		}
		fmt.Fprintf(&sb, "  %04d: %s", i, t.Op)
		if operands := formatOperands(t); operands != "" {
			sb.WriteByte(' ')
			sb.WriteString(operands)
		}
		sb.WriteByte('\n')
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// formatOperands renders the arguments of t the way the listing shows them.
func formatOperands(t *Tuple) string {
	variable := func(scope, slot int) string {
		switch Scope(scope) {
		case ScopeGlobal:
			return fmt.Sprintf("%s[%d]", t.Str, slot)
		case ScopeLocal:
			return fmt.Sprintf("local[%d]", slot)
		case ScopeSpecial:
			return semantic.SpecialVarName(slot)
		}
		return fmt.Sprintf("?%d[%d]", scope, slot)
	}
	targetDesc := func() string {
		switch LValue(t.Arg(0)) {
		case LVVar:
			return variable(t.Arg(1), t.Arg(2))
		case LVField:
			return "$"
		case LVIndex:
			return fmt.Sprintf("%s{%d}", variable(t.Arg(1), t.Arg(2)), t.Arg(3))
		}
		return "$0"
	}

	switch t.Op {
	case PushNum, PushInt:
		return strconv.FormatFloat(t.Num, 'g', -1, 64)
	case PushStr:
		return strconv.Quote(t.Str)
	case PushRegex, MatchRecord:
		return "/" + t.Str + "/"
	case Load, PushArray, KeyList, ArrayLength:
		return variable(t.Arg(0), t.Arg(1))
	case IndexGet, InArray, Delete:
		return fmt.Sprintf("%s{%d}", variable(t.Arg(0), t.Arg(1)), t.Arg(2))
	case KeyNext:
		return fmt.Sprintf("%s else -> %d", variable(t.Arg(0), t.Arg(1)), t.Target.Index)
	case Assign:
		return targetDesc()
	case AugAssign:
		return fmt.Sprintf("%s %c=", targetDesc(), rune(t.Arg(4)))
	case IncDec:
		op := "++"
		if t.Arg(4) < 0 {
			op = "--"
		}
		if t.Arg(5) == 1 {
			return targetDesc() + op
		}
		return op + targetDesc()
	case Concat:
		return strconv.Itoa(t.Arg(0))
	case Goto, IfTrue, IfFalse, SetExitAddress, SetNextAddress, GetInputRecord:
		return "-> " + strconv.Itoa(t.Target.Index)
	case Print, Printf:
		if Redirect(t.Arg(1)) == RedirectNone {
			return strconv.Itoa(t.Arg(0))
		}
		return fmt.Sprintf("%d %s", t.Arg(0), Redirect(t.Arg(1)))
	case Getline:
		src := [...]string{"main", "file", "command"}[t.Arg(4)%3]
		return fmt.Sprintf("%s from %s", targetDesc(), src)
	case Call:
		return fmt.Sprintf("#%d(%d) -> %d", t.Arg(0), t.Arg(1), t.Target.Index)
	case Function:
		return fmt.Sprintf("%s/%d", t.Str, t.Arg(1))
	case Builtin:
		return fmt.Sprintf("%s/%d", BuiltinFunc(t.Arg(0)), t.Arg(1))
	case Split:
		return fmt.Sprintf("%s/%d", variable(t.Arg(0), t.Arg(1)), t.Arg(2))
	case Substitute:
		name := "sub"
		if t.Arg(4) == 1 {
			name = "gsub"
		}
		return fmt.Sprintf("%s %s", name, targetDesc())
	case Extension:
		return fmt.Sprintf("%s/%d", t.Str, t.Arg(0))
	case Exit:
		if t.Arg(0) == 1 {
			return "code"
		}
	case RangeActive:
		return strconv.Itoa(t.Arg(0))
	case RangeSet:
		return fmt.Sprintf("%d %d", t.Arg(0), t.Arg(1))
	}
	return ""
}
