package runtime

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
)

const readChunk = 4096

// RecordReader splits an input stream into records. The separator is
// passed on every read because RS may change between records:
//
//	"\n" or any single character  records end at that character
//	""                            paragraph mode, records end at blank lines
//	anything longer               a regular expression
type RecordReader struct {
	r       *bufio.Reader
	pending []byte // Read ahead by regex mode, consumed before r
	eof     bool
}

// NewRecordReader returns a reader of records from r.
func NewRecordReader(r io.Reader) *RecordReader {
	return &RecordReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Read returns the next record. It returns io.EOF when the input is
// exhausted; a final record without a terminator is still returned.
func (rr *RecordReader) Read(rs string, cache *RegexCache) (string, error) {
	switch {
	case rs == "":
		return rr.readParagraph()
	case len(rs) == 1:
		return rr.readUntil(rs[0])
	}
	re, err := cache.Get(rs)
	if err != nil {
		return "", err
	}
	return rr.readRegex(re)
}

// readUntil reads up to and excluding sep.
func (rr *RecordReader) readUntil(sep byte) (string, error) {
	if i := bytes.IndexByte(rr.pending, sep); i >= 0 {
		rec := string(rr.pending[:i])
		rr.pending = rr.pending[i+1:]
		return rec, nil
	}
	head := rr.pending
	rr.pending = nil

	var line string
	var err error
	if !rr.eof {
		line, err = rr.r.ReadString(sep)
	} else {
		err = io.EOF
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if err != nil {
		rr.eof = true
		if len(head) == 0 && line == "" {
			return "", io.EOF
		}
		return string(head) + line, nil
	}
	return string(head) + line[:len(line)-1], nil
}

// readParagraph reads lines up to the next blank line, skipping blank
// lines before the record.
func (rr *RecordReader) readParagraph() (string, error) {
	var line string
	var err error
	for {
		line, err = rr.readUntil('\n')
		if err != nil {
			return "", err
		}
		if line != "" {
			break
		}
	}
	var sb strings.Builder
	sb.WriteString(line)
	for {
		line, err = rr.readUntil('\n')
		if errors.Is(err, io.EOF) || (err == nil && line == "") {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}
		sb.WriteByte('\n')
		sb.WriteString(line)
	}
}

// readRegex reads up to the first non-empty match of re. A match that
// touches the end of the buffered data could grow with more input, so it
// only counts once the input is exhausted.
func (rr *RecordReader) readRegex(re *Regex) (string, error) {
	chunk := make([]byte, readChunk)
	for {
		s := string(rr.pending)
		if loc := firstNonEmpty(re, s); loc != nil && (loc[1] < len(s) || rr.eof) {
			rr.pending = rr.pending[loc[1]:]
			return s[:loc[0]], nil
		}
		if rr.eof {
			if len(rr.pending) == 0 {
				return "", io.EOF
			}
			rr.pending = nil
			return s, nil
		}
		n, err := rr.r.Read(chunk)
		rr.pending = append(rr.pending, chunk[:n]...)
		if errors.Is(err, io.EOF) {
			rr.eof = true
		} else if err != nil {
			return "", err
		}
	}
}

func firstNonEmpty(re *Regex, s string) []int {
	for _, loc := range re.FindAllStringIndex(s, -1) {
		if loc[1] > loc[0] {
			return loc
		}
	}
	return nil
}
