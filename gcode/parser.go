package gcode

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// ErrSyntax is wrapped by every *SyntaxError.
var ErrSyntax = errors.New("invalid gcode")

// SyntaxError reports the offending input line (1-based).
type SyntaxError struct {
	Line int
	Text string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, ErrSyntax, e.Text)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// Parser reads one Block per non-empty line. Comments, line numbers and
// checksums are stripped; letters are upper-cased.
type Parser struct {
	br   *bufio.Reader
	line int
}

func NewParser(r io.Reader) *Parser {
	if br, ok := r.(*bufio.Reader); ok {
		return &Parser{br: br}
	}
	return &Parser{br: bufio.NewReader(r)}
}

var (
	rxComment = regexp.MustCompile(`\([^)]*\)`)
	rxWords   = regexp.MustCompile(`^(?:[A-Z][-+]?[0-9]*\.?[0-9]*)+$`)
	rxWord    = regexp.MustCompile(`[A-Z][-+]?[0-9]*\.?[0-9]*`)
)

func clean(s string) string {
	s = strings.SplitN(s, ";", 2)[0]
	s = rxComment.ReplaceAllString(s, "")
	// checksum from Marlin's "N123 G0 X1*45" form
	s = strings.SplitN(s, "*", 2)[0]
	s = strings.Join(strings.Fields(s), "")
	return strings.ToUpper(s)
}

// Read returns the next block, or io.EOF once the input is exhausted.
func (p *Parser) Read() (Block, error) {
	for {
		s, err := p.br.ReadString('\n')
		if err == io.EOF && s != "" {
			err = nil
		}
		if err != nil {
			return nil, err
		}
		p.line++

		text := strings.TrimSpace(s)
		s = clean(s)
		if s == "" {
			continue
		}
		if !rxWords.MatchString(s) {
			return nil, &SyntaxError{Line: p.line, Text: text}
		}

		var b Block
		for _, c := range rxWord.FindAllString(s, -1) {
			if c[0] == 'N' {
				continue
			}
			arg := 0.0
			if len(c) > 1 {
				arg, err = strconv.ParseFloat(c[1:], 64)
				if err != nil {
					return nil, &SyntaxError{Line: p.line, Text: text}
				}
			}
			b = append(b, Word{W: c[0], Arg: arg})
		}
		if len(b) == 0 {
			continue
		}
		return b, nil
	}
}
