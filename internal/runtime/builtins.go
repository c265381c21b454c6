package runtime

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kolkov/tawk/internal/ir"
	"github.com/kolkov/tawk/internal/types"
)

// Builtin calls the builtin fn. The arity was checked before the program
// ran.
func (r *Runtime) Builtin(fn ir.BuiltinFunc, args []types.Value) (types.Value, error) {
	num := func(i int) float64 {
		if i < len(args) {
			return args[i].AsNum()
		}
		return 0
	}
	str := func(i int) string {
		if i < len(args) {
			return r.ToStr(args[i])
		}
		return ""
	}

	switch fn {
	case ir.BuiltinAtan2:
		return types.Double(math.Atan2(num(0), num(1))), nil
	case ir.BuiltinCos:
		return types.Double(math.Cos(num(0))), nil
	case ir.BuiltinExp:
		return types.Double(math.Exp(num(0))), nil
	case ir.BuiltinLog:
		return types.Double(math.Log(num(0))), nil
	case ir.BuiltinSin:
		return types.Double(math.Sin(num(0))), nil
	case ir.BuiltinSqrt:
		return types.Double(math.Sqrt(num(0))), nil
	case ir.BuiltinInt:
		return truncate(num(0)), nil

	case ir.BuiltinRand:
		return types.Double(r.rand.Float64()), nil
	case ir.BuiltinSrand:
		prev := r.seed
		if len(args) == 0 {
			r.seed = float64(time.Now().Unix())
		} else {
			r.seed = num(0)
		}
		r.rand = rand.New(rand.NewSource(int64(r.seed)))
		return types.Double(prev), nil

	case ir.BuiltinIndex:
		return types.Int(int64(Index(str(0), str(1)))), nil
	case ir.BuiltinLength:
		if len(args) == 0 {
			return types.Int(int64(utf8.RuneCountInString(r.record))), nil
		}
		if a := args[0].Array(); a != nil {
			return types.Int(int64(a.Len())), nil
		}
		return types.Int(int64(utf8.RuneCountInString(str(0)))), nil
	case ir.BuiltinSubstr:
		if len(args) < 3 {
			return types.Str(Substr(str(0), num(1), math.Inf(1))), nil
		}
		return types.Str(Substr(str(0), num(1), num(2))), nil
	case ir.BuiltinTolower:
		return types.Str(strings.ToLower(str(0))), nil
	case ir.BuiltinToupper:
		return types.Str(strings.ToUpper(str(0))), nil
	case ir.BuiltinSprintf:
		if len(args) == 0 {
			return types.Str(""), nil
		}
		return types.Str(types.Sprintf(str(0), args[1:], r.convfmt)), nil
	case ir.BuiltinMatch:
		n, err := r.MatchPosition(str(0), str(1))
		return types.Int(int64(n)), err

	case ir.BuiltinClose:
		return types.Int(int64(r.io.Close(str(0)))), nil
	case ir.BuiltinFflush:
		if len(args) == 0 || str(0) == "" {
			if r.io.FlushAll() != nil {
				return types.Int(-1), nil
			}
			return types.Int(0), nil
		}
		return types.Int(int64(r.io.Flush(str(0)))), nil
	case ir.BuiltinSystem:
		return types.Int(int64(r.io.System(str(0)))), nil
	}
	return types.Value{}, fmt.Errorf("unknown builtin %d", fn)
}

func truncate(n float64) types.Value {
	t := math.Trunc(n)
	if t >= math.MinInt64 && t < math.MaxInt64 {
		return types.Int(int64(t))
	}
	return types.Double(t)
}

// Index returns the character position of t in s, or 0.
func Index(s, t string) int {
	i := strings.Index(s, t)
	if i < 0 {
		return 0
	}
	return utf8.RuneCountInString(s[:i]) + 1
}

// Substr returns the characters of s from position start (1-based) for at
// most length characters. Positions are rounded; the range is clipped to
// the string.
func Substr(s string, start, length float64) string {
	if math.IsNaN(start) || math.IsNaN(length) {
		return ""
	}
	first := math.Round(start)
	last := first + math.Round(length) // exclusive
	if math.IsInf(length, 1) {
		last = math.Inf(1)
	}
	n := float64(utf8.RuneCountInString(s))
	if first < 1 {
		first = 1
	}
	if last > n+1 {
		last = n + 1
	}
	if last <= first {
		return ""
	}
	if n == float64(len(s)) {
		return s[int(first)-1 : int(last)-1]
	}
	runes := []rune(s)
	return string(runes[int(first)-1 : int(last)-1])
}

// Match reports whether s matches the dynamic or literal pattern.
func (r *Runtime) Match(s, pattern string) (bool, error) {
	re, err := r.regexes.Get(pattern)
	if err != nil {
		return false, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	return re.MatchString(s), nil
}

// MatchPosition implements match(): it sets RSTART and RLENGTH and
// returns RSTART.
func (r *Runtime) MatchPosition(s, pattern string) (int, error) {
	re, err := r.regexes.Get(pattern)
	if err != nil {
		return 0, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	loc := re.FindStringIndex(s)
	if loc == nil {
		r.rstart, r.rlength = 0, -1
		return 0, nil
	}
	r.rstart = int64(utf8.RuneCountInString(s[:loc[0]]) + 1)
	r.rlength = int64(utf8.RuneCountInString(s[loc[0]:loc[1]]))
	return int(r.rstart), nil
}

// Substitute implements sub and gsub: it replaces the first (or with
// global every) match of pattern in target. In repl "&" stands for the
// matched text, "\&" for a literal ampersand and "\\" for a backslash.
func (r *Runtime) Substitute(pattern, repl, target string, global bool) (string, int, error) {
	re, err := r.regexes.Get(pattern)
	if err != nil {
		return "", 0, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	n := 1
	if global {
		n = -1
	}
	matches := re.FindAllStringIndex(target, n)
	if len(matches) == 0 {
		return target, 0, nil
	}
	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(target[last:m[0]])
		expandReplacement(&sb, repl, target[m[0]:m[1]])
		last = m[1]
	}
	sb.WriteString(target[last:])
	return sb.String(), len(matches), nil
}

func expandReplacement(sb *strings.Builder, repl, matched string) {
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		if c == '\\' && i+1 < len(repl) && (repl[i+1] == '&' || repl[i+1] == '\\') {
			i++
			sb.WriteByte(repl[i])
			continue
		}
		if c == '&' {
			sb.WriteString(matched)
			continue
		}
		sb.WriteByte(c)
	}
}

// Split implements split(s, arr[, sep]): arr is cleared and filled with
// the pieces of s under keys "1" to "n". Without sep, FS is used.
func (r *Runtime) Split(s string, arr *types.Array, sep *string) (int, error) {
	fs := r.fs
	if sep != nil {
		fs = *sep
	}
	parts, err := SplitFields(s, fs, false, r.regexes)
	if err != nil {
		return 0, fmt.Errorf("invalid split separator %q: %w", fs, err)
	}
	arr.Clear()
	for i, p := range parts {
		arr.Set(strconv.Itoa(i+1), types.StrNum(p))
	}
	return len(parts), nil
}
