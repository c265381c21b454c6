package runtime

import (
	"strings"
	"unicode/utf8"
)

// SplitFields splits s by the field separator fs:
//
//	" "          runs of blanks and newlines, ignoring leading and trailing ones
//	""           one field per character
//	single char  that character literally (a tab included)
//	otherwise    a regular expression
//
// In paragraph mode a newline always separates fields as well.
func SplitFields(s, fs string, paragraph bool, cache *RegexCache) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	switch {
	case fs == " ":
		return splitBlanks(s), nil
	case fs == "":
		return splitChars(s), nil
	case len(fs) == 1 && fs != "\\":
		if paragraph && fs != "\n" {
			return splitBytes(s, fs[0], '\n'), nil
		}
		return strings.Split(s, fs), nil
	}
	pattern := fs
	if paragraph {
		pattern = "(" + fs + ")|\n"
	}
	re, err := cache.Get(pattern)
	if err != nil {
		return nil, err
	}
	return re.Split(s, -1), nil
}

func splitBlanks(s string) []string {
	var fields []string
	i := 0
	for i < len(s) {
		for i < len(s) && isBlank(s[i]) {
			i++
		}
		start := i
		for i < len(s) && !isBlank(s[i]) {
			i++
		}
		if i > start {
			fields = append(fields, s[start:i])
		}
	}
	return fields
}

// splitBytes splits at every a or b, keeping empty fields.
func splitBytes(s string, a, b byte) []string {
	var fields []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == a || s[i] == b {
			fields = append(fields, s[start:i])
			start = i + 1
		}
	}
	return append(fields, s[start:])
}

func splitChars(s string) []string {
	fields := make([]string, 0, utf8.RuneCountInString(s))
	for len(s) > 0 {
		_, size := utf8.DecodeRuneInString(s)
		fields = append(fields, s[:size])
		s = s[size:]
	}
	return fields
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n'
}
