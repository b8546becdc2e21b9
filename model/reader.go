package model

import (
	"io"
	"strconv"
	"strings"
)

// FieldReader is just a simple reader for basic file formats.
type FieldReader struct {
	Pos    int
	Fields []string
}

// NewFieldReader constructs a new field reader around the given data
func NewFieldReader(data string) *FieldReader {
	return &FieldReader{0, strings.Fields(data)}
}

// Remain is the number of unread fields
func (fr *FieldReader) Remain() int {
	return len(fr.Fields) - fr.Pos
}

// Read returns the next space-delimited field/token
func (fr *FieldReader) Read() (string, error) {
	if fr.Pos >= len(fr.Fields) {
		return "", io.EOF
	}
	p := fr.Pos
	fr.Pos++
	return fr.Fields[p], nil
}

// ReadInt reads the next token as an int
func (fr *FieldReader) ReadInt() (int, error) {
	s, err := fr.Read()
	if err != nil {
		return 0, err
	}

	i, err := strconv.ParseInt(s, 10, 0)
	return int(i), err
}

// ReadFloat reads the next token as a float
func (fr *FieldReader) ReadFloat() (float64, error) {
	s, err := fr.Read()
	if err != nil {
		return 0, err
	}

	return strconv.ParseFloat(s, 64)
}

// ReadFloats reads the next n tokens as floats
func (fr *FieldReader) ReadFloats(n int) ([]float64, error) {
	vals := make([]float64, n)
	for i := range vals {
		v, err := fr.ReadFloat()
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// preprocess removes blank lines and comment lines (starting with '#' or
// 'c', the latter for compatibility with UAI-style files). It returns the
// remaining text and the count of "real" lines found.
func preprocess(data []byte) (string, int) {
	lines := strings.Split(string(data), "\n")

	newPos := 0
	for _, ln := range lines {
		ln = strings.TrimSpace(ln)
		if len(ln) < 1 || ln[0] == 'c' || ln[0] == '#' {
			continue
		}
		lines[newPos] = ln
		newPos++
	}

	return strings.Join(lines[:newPos], "\n"), newPos
}
