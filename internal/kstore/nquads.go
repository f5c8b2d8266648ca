package kstore

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const maxLineSize = 16 * 1024 * 1024

// ReadNQuads parses an N-Quads stream and calls fn for every statement.
// Blank node labels lose their "_:" prefix; literals keep only their
// lexical value. Statements without a graph land in the default graph "".
func ReadNQuads(ctx context.Context, r io.Reader, fn func(Quad) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" || text[0] == '#' {
			continue
		}

		q, err := parseQuad(text)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(q); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// LoadNQuads reads an N-Quads file into m and returns the number of quads.
func LoadNQuads(ctx context.Context, path string, m *Memory) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening n-quads: %w", err)
	}
	defer f.Close()

	n := 0
	batch := make([]Quad, 0, 4096)
	err = ReadNQuads(ctx, f, func(q Quad) error {
		batch = append(batch, q)
		if len(batch) == cap(batch) {
			m.Add(batch...)
			n += len(batch)
			batch = batch[:0]
		}
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("reading %s: %w", path, err)
	}
	m.Add(batch...)
	return n + len(batch), nil
}

type lexer struct {
	s   string
	pos int
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.s) && (l.s[l.pos] == ' ' || l.s[l.pos] == '\t') {
		l.pos++
	}
}

func (l *lexer) done() bool {
	l.skipSpace()
	return l.pos >= len(l.s)
}

func parseQuad(s string) (Quad, error) {
	l := &lexer{s: s}
	var q Quad
	var err error

	if q.Subject, _, err = l.term(); err != nil {
		return q, fmt.Errorf("subject: %w", err)
	}
	if q.Predicate, _, err = l.term(); err != nil {
		return q, fmt.Errorf("predicate: %w", err)
	}
	if q.Object, q.Literal, err = l.term(); err != nil {
		return q, fmt.Errorf("object: %w", err)
	}

	l.skipSpace()
	if l.pos < len(l.s) && l.s[l.pos] != '.' {
		if q.Graph, _, err = l.term(); err != nil {
			return q, fmt.Errorf("graph: %w", err)
		}
	}

	l.skipSpace()
	if l.pos >= len(l.s) || l.s[l.pos] != '.' {
		return q, fmt.Errorf("missing terminating '.'")
	}
	return q, nil
}

// term reads an IRI, blank node or literal.
func (l *lexer) term() (string, bool, error) {
	if l.done() {
		return "", false, fmt.Errorf("unexpected end of statement")
	}

	switch l.s[l.pos] {
	case '<':
		end := strings.IndexByte(l.s[l.pos:], '>')
		if end < 0 {
			return "", false, fmt.Errorf("unterminated IRI")
		}
		iri := l.s[l.pos+1 : l.pos+end]
		l.pos += end + 1
		if strings.Contains(iri, `\u`) || strings.Contains(iri, `\U`) {
			unq, err := unescape(iri)
			if err != nil {
				return "", false, err
			}
			iri = unq
		}
		return iri, false, nil

	case '_':
		if !strings.HasPrefix(l.s[l.pos:], "_:") {
			return "", false, fmt.Errorf("malformed blank node")
		}
		start := l.pos + 2
		end := start
		for end < len(l.s) && l.s[end] != ' ' && l.s[end] != '\t' {
			end++
		}
		l.pos = end
		return l.s[start:end], false, nil

	case '"':
		return l.literal()

	default:
		return "", false, fmt.Errorf("unexpected character %q", l.s[l.pos])
	}
}

func (l *lexer) literal() (string, bool, error) {
	start := l.pos + 1
	i := start
	for i < len(l.s) {
		if l.s[i] == '\\' {
			i += 2
			continue
		}
		if l.s[i] == '"' {
			break
		}
		i++
	}
	if i >= len(l.s) {
		return "", false, fmt.Errorf("unterminated literal")
	}

	value, err := unescape(l.s[start:i])
	if err != nil {
		return "", false, err
	}
	l.pos = i + 1

	// language tag or datatype
	if l.pos < len(l.s) {
		switch {
		case l.s[l.pos] == '@':
			for l.pos < len(l.s) && l.s[l.pos] != ' ' && l.s[l.pos] != '\t' {
				l.pos++
			}
		case strings.HasPrefix(l.s[l.pos:], "^^"):
			l.pos += 2
			if _, _, err := l.term(); err != nil {
				return "", false, fmt.Errorf("datatype: %w", err)
			}
		}
	}
	return value, true, nil
}

func unescape(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'f':
			b.WriteByte('\f')
		case '"', '\'', '\\':
			b.WriteByte(s[i])
		case 'u', 'U':
			width := 4
			if s[i] == 'U' {
				width = 8
			}
			if i+1+width > len(s) {
				return "", fmt.Errorf("short unicode escape")
			}
			r, err := strconv.ParseUint(s[i+1:i+1+width], 16, 32)
			if err != nil {
				return "", fmt.Errorf("unicode escape: %w", err)
			}
			b.WriteRune(rune(r))
			i += width
		default:
			return "", fmt.Errorf("unknown escape \\%c", s[i])
		}
	}
	return b.String(), nil
}
