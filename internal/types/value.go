// Package types defines runtime value types for tawk.
package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind represents the type of an AWK value.
type Kind uint8

const (
	KindUninit Kind = iota // Never assigned
	KindInt                // 64-bit integer produced by integer arithmetic
	KindDouble             // Floating point number
	KindStr                // String value
	KindStrNum             // String from input that may look numeric
	KindArray              // Associative array reference
	KindOpaque             // Host object (block objects, key iterators)
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindUninit:
		return "uninit"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindStr:
		return "str"
	case KindStrNum:
		return "strnum"
	case KindArray:
		return "array"
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// Value represents an AWK runtime value. The kind tag decides which of the
// payload fields is meaningful; every operation switches on it.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	ref  any
}

// Constructors

// Uninit returns an uninitialized value.
func Uninit() Value {
	return Value{}
}

// Int creates an integer value.
func Int(n int64) Value {
	return Value{kind: KindInt, i: n}
}

// Double creates a floating point value.
func Double(n float64) Value {
	return Value{kind: KindDouble, f: n}
}

// Str creates a string value.
func Str(s string) Value {
	return Value{kind: KindStr, s: s}
}

// StrNum creates a string that compares numerically when it looks like a
// number (fields, getline input, ARGV, ENVIRON, command-line assignments).
func StrNum(s string) Value {
	return Value{kind: KindStrNum, s: s}
}

// Bool creates 1 or 0.
func Bool(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

// ArrayValue wraps an array so it can live in a variable slot or on the stack.
func ArrayValue(a *Array) Value {
	return Value{kind: KindArray, ref: a}
}

// Opaque wraps a host object.
func Opaque(x any) Value {
	return Value{kind: KindOpaque, ref: x}
}

// Accessors

// Kind returns the value's type.
func (v Value) Kind() Kind {
	return v.kind
}

// IsUninit reports whether the value was never assigned.
func (v Value) IsUninit() bool {
	return v.kind == KindUninit
}

// IsArray reports whether the value holds an array.
func (v Value) IsArray() bool {
	return v.kind == KindArray
}

// IsScalar reports whether the value is usable as a scalar.
func (v Value) IsScalar() bool {
	return v.kind != KindArray && v.kind != KindOpaque
}

// Array returns the array held by v, or nil.
func (v Value) Array() *Array {
	if v.kind != KindArray {
		return nil
	}
	return v.ref.(*Array)
}

// Object returns the host object held by v, or nil.
func (v Value) Object() any {
	if v.kind != KindOpaque {
		return nil
	}
	return v.ref
}

// Conversions

// AsNum returns the numeric value using AWK prefix parsing for strings.
func (v Value) AsNum() float64 {
	switch v.kind {
	case KindInt:
		return float64(v.i)
	case KindDouble:
		return v.f
	case KindStr, KindStrNum:
		return ParseNumPrefix(v.s)
	default:
		return 0
	}
}

// AsInt returns the value truncated toward zero.
func (v Value) AsInt() int64 {
	if v.kind == KindInt {
		return v.i
	}
	f := v.AsNum()
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

// AsStr returns the string form, formatting non-integral numbers with format
// (CONVFMT for conversions, OFMT for output).
func (v Value) AsStr(format string) string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindDouble:
		return FormatNum(v.f, format)
	case KindStr, KindStrNum:
		return v.s
	case KindArray:
		return "<array>"
	case KindOpaque:
		return fmt.Sprint(v.ref)
	default:
		return ""
	}
}

// AsBool returns the truth value: non-zero numbers and non-empty strings are
// true. A strnum that looks numeric is judged by its number.
func (v Value) AsBool() bool {
	switch v.kind {
	case KindInt:
		return v.i != 0
	case KindDouble:
		return v.f != 0
	case KindStr:
		return v.s != ""
	case KindStrNum:
		if n, err := ParseNum(v.s); err == nil {
			return n != 0
		}
		return v.s != ""
	case KindArray, KindOpaque:
		return true
	default:
		return false
	}
}

// Numeric returns the number v compares as, and false when v must compare
// as a string.
func (v Value) Numeric() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindDouble:
		return v.f, true
	case KindUninit:
		return 0, true
	case KindStrNum:
		n, err := ParseNum(v.s)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// String returns a debug representation of the value.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("Int(%d)", v.i)
	case KindDouble:
		return fmt.Sprintf("Double(%s)", FormatNum(v.f, "%.6g"))
	case KindStr:
		return fmt.Sprintf("Str(%q)", v.s)
	case KindStrNum:
		return fmt.Sprintf("StrNum(%q)", v.s)
	case KindArray:
		return fmt.Sprintf("Array(%d)", v.Array().Len())
	case KindOpaque:
		return fmt.Sprintf("Opaque(%T)", v.ref)
	default:
		return "Uninit()"
	}
}

// Comparison

// Compare compares two scalars using AWK rules: numerically when both sides
// are numeric, otherwise as strings converted with convfmt.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
func Compare(a, b Value, convfmt string) int {
	if a.kind == KindInt && b.kind == KindInt {
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		}
		return 0
	}
	an, aok := a.Numeric()
	bn, bok := b.Numeric()
	if aok && bok {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a.AsStr(convfmt), b.AsStr(convfmt))
}

// Number Parsing and Formatting

// ParseNum parses a whole string as a number (surrounding blanks allowed).
func ParseNum(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, strconv.ErrSyntax
	}

	if len(s) >= 3 {
		switch strings.ToLower(s) {
		case "nan", "+nan", "-nan":
			return math.NaN(), nil
		case "inf", "+inf":
			return math.Inf(1), nil
		case "-inf":
			return math.Inf(-1), nil
		}
	}

	// Hex, underscores and the other Go extensions are not numbers in AWK input.
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isDigit(c) && c != '.' && c != 'e' && c != 'E' && c != '+' && c != '-' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.ParseFloat(s, 64)
}

// ParseNumPrefix parses a number from the beginning of a string.
// Trailing characters are ignored: "123abc" is 123, "abc" is 0.
func ParseNumPrefix(s string) float64 {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	start := i
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	if i+3 <= len(s) {
		switch strings.ToLower(s[i : i+3]) {
		case "nan":
			return math.NaN()
		case "inf":
			if s[start] == '-' {
				return math.Inf(-1)
			}
			return math.Inf(1)
		}
	}

	gotDigit := false
	for i < len(s) && isDigit(s[i]) {
		gotDigit = true
		i++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			gotDigit = true
			i++
		}
	}
	if !gotDigit {
		return 0
	}

	end := i
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		for i < len(s) && isDigit(s[i]) {
			end = i + 1
			i++
		}
	}

	n, _ := strconv.ParseFloat(s[start:end], 64)
	return n
}

// ParseLiteral parses a numeric literal from program source, which unlike
// input may be hexadecimal.
func ParseLiteral(s string) (float64, error) {
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		if !strings.ContainsAny(s, "pP") {
			s += "p0"
		}
	}
	return strconv.ParseFloat(s, 64)
}

// FormatNum formats a number: integral values print as integers, everything
// else through format, which is an AWK printf format (OFMT or CONVFMT).
func FormatNum(n float64, format string) string {
	switch {
	case math.IsNaN(n):
		if math.Signbit(n) {
			return "-nan"
		}
		return "nan"
	case math.IsInf(n, 1):
		return "inf"
	case math.IsInf(n, -1):
		return "-inf"
	case n == math.Trunc(n) && math.Abs(n) < 1e16:
		return strconv.FormatInt(int64(n), 10)
	case format == "%.6g":
		return strconv.FormatFloat(n, 'g', 6, 64)
	default:
		return Sprintf(format, []Value{Double(n)}, "%.6g")
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
