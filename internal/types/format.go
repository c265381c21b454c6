package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Sprintf formats args according to an AWK printf format. Missing
// arguments format as uninitialized values; extra ones are ignored.
func Sprintf(format string, args []Value, convfmt string) string {
	var out strings.Builder
	next := func() Value {
		if len(args) == 0 {
			return Uninit()
		}
		v := args[0]
		args = args[1:]
		return v
	}

	i := 0
	for i < len(format) {
		c := format[i]
		if c != '%' {
			out.WriteByte(c)
			i++
			continue
		}
		i++
		if i >= len(format) {
			out.WriteByte('%')
			break
		}
		if format[i] == '%' {
			out.WriteByte('%')
			i++
			continue
		}

		start := i - 1
		var flags strings.Builder
		for i < len(format) && strings.IndexByte("-+ #0", format[i]) >= 0 {
			flags.WriteByte(format[i])
			i++
		}

		width := ""
		if i < len(format) && format[i] == '*' {
			w := int(next().AsInt())
			if w < 0 {
				flags.WriteByte('-')
				w = -w
			}
			width = strconv.Itoa(w)
			i++
		} else {
			for i < len(format) && isDigit(format[i]) {
				width += string(format[i])
				i++
			}
		}

		precision := ""
		if i < len(format) && format[i] == '.' {
			precision = "."
			i++
			if i < len(format) && format[i] == '*' {
				if p := int(next().AsInt()); p >= 0 {
					precision += strconv.Itoa(p)
				} else {
					precision = ""
				}
				i++
			} else {
				for i < len(format) && isDigit(format[i]) {
					precision += string(format[i])
					i++
				}
			}
		}

		if i >= len(format) {
			out.WriteString(format[start:])
			break
		}
		verb := format[i]
		i++
		spec := "%" + flags.String() + width + precision

		switch verb {
		case 'd', 'i':
			v := next()
			if s, ok := nonFinite(v.AsNum()); ok {
				fmt.Fprintf(&out, "%"+width+"s", s)
				break
			}
			fmt.Fprintf(&out, spec+"d", v.AsInt())
		case 'o', 'x', 'X', 'u':
			n := next().AsNum()
			if s, ok := nonFinite(n); ok {
				fmt.Fprintf(&out, "%"+width+"s", s)
				break
			}
			goVerb := verb
			if verb == 'u' {
				goVerb = 'd'
			}
			fmt.Fprintf(&out, spec+string(goVerb), unsigned(n))
		case 'e', 'E', 'f', 'F', 'g', 'G':
			n := next().AsNum()
			if s, ok := nonFinite(n); ok {
				fmt.Fprintf(&out, "%"+width+"s", s)
				break
			}
			goVerb := verb
			if verb == 'F' {
				goVerb = 'f'
			}
			fmt.Fprintf(&out, spec+string(goVerb), n)
		case 'c':
			fmt.Fprintf(&out, "%"+flags.String()+width+"s", formatChar(next(), convfmt))
		case 's':
			fmt.Fprintf(&out, spec+"s", next().AsStr(convfmt))
		default:
			// Unknown conversions are copied through.
			out.WriteString(format[start:i])
		}
	}
	return out.String()
}

// formatChar implements %c: numbers are character codes, strings give
// their first character.
func formatChar(v Value, convfmt string) string {
	switch v.Kind() {
	case KindInt, KindDouble:
		n := v.AsInt()
		if n < 256 {
			return string([]byte{byte(n)})
		}
		return string(rune(n))
	}
	s := v.AsStr(convfmt)
	if s == "" {
		return ""
	}
	_, size := utf8.DecodeRuneInString(s)
	return s[:size]
}

func unsigned(n float64) uint64 {
	if n < 0 {
		return uint64(int64(n))
	}
	if n >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(n)
}

func nonFinite(n float64) (string, bool) {
	switch {
	case math.IsNaN(n):
		return "nan", true
	case math.IsInf(n, 1):
		return "inf", true
	case math.IsInf(n, -1):
		return "-inf", true
	}
	return "", false
}
