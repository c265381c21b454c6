// Package runtime is the run-time support shared by the interpreter and the
// compiled machine: special variables, records and fields, regular
// expressions, the I/O manager, printf formatting and the builtins.
package runtime

import (
	"sync"

	"github.com/coregx/coregex"
)

// dotallPrefix makes "." match newlines, as AWK requires.
const dotallPrefix = "(?s)"

// Regex is a compiled AWK extended regular expression.
type Regex struct {
	pattern string
	re      *coregex.Regexp
	posix   bool
}

// Compile compiles an AWK regular expression. With posix set the
// expression uses leftmost-longest matching; otherwise leftmost-first.
func Compile(pattern string, posix bool) (*Regex, error) {
	re, err := coregex.Compile(dotallPrefix + pattern)
	if err != nil {
		return nil, err
	}
	if posix {
		re.Longest()
	}
	return &Regex{pattern: pattern, re: re, posix: posix}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(pattern string) *Regex {
	re, err := Compile(pattern, true)
	if err != nil {
		panic(err)
	}
	return re
}

// Pattern returns the source pattern.
func (r *Regex) Pattern() string {
	return r.pattern
}

// IsPOSIX reports whether the expression uses leftmost-longest matching.
func (r *Regex) IsPOSIX() bool {
	return r.posix
}

// MatchString reports whether s contains a match.
func (r *Regex) MatchString(s string) bool {
	return r.re.MatchString(s)
}

// FindStringIndex returns the bounds of the first match, or nil.
func (r *Regex) FindStringIndex(s string) []int {
	return r.re.FindStringIndex(s)
}

// FindAllStringIndex returns the bounds of successive matches. Empty
// matches next to a previous match are skipped.
func (r *Regex) FindAllStringIndex(s string, n int) [][]int {
	return r.re.FindAllStringIndex(s, n)
}

// Split slices s around the matches of r.
func (r *Regex) Split(s string, n int) []string {
	return r.re.Split(s, n)
}

// RegexCache holds compiled expressions by pattern. Dynamic regexes are
// recompiled from strings on every evaluation, so the cache matters in
// loops. When full, the oldest entry is evicted.
type RegexCache struct {
	mu      sync.Mutex
	posix   bool
	maxSize int
	entries map[string]*Regex
	order   []string
}

// NewRegexCache creates a cache holding up to maxSize expressions.
func NewRegexCache(maxSize int, posix bool) *RegexCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &RegexCache{
		posix:   posix,
		maxSize: maxSize,
		entries: make(map[string]*Regex),
	}
}

// Get returns the compiled form of pattern, compiling it on first use.
func (c *RegexCache) Get(pattern string) (*Regex, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if re, ok := c.entries[pattern]; ok {
		return re, nil
	}
	re, err := Compile(pattern, c.posix)
	if err != nil {
		return nil, err
	}
	if len(c.order) >= c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[pattern] = re
	c.order = append(c.order, pattern)
	return re, nil
}

// Len returns the number of cached expressions.
func (c *RegexCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// POSIX reports whether cached expressions use leftmost-longest matching.
func (c *RegexCache) POSIX() bool {
	return c.posix
}
