package gcode

import (
	"fmt"
	"strconv"
	"strings"

	"spider/standalone"
)

// Parser handles G-code parsing
type Parser struct{}

// NewParser creates a new G-code parser
func NewParser() *Parser {
	return &Parser{}
}

// ParseLine parses a single line of G-code. Blank lines yield nil; a line
// holding only a comment yields a command with Type 0.
func (p *Parser) ParseLine(line string) (*standalone.GCodeCommand, error) {
	code, comment := splitComment(line)
	if i := strings.IndexByte(code, '*'); i >= 0 {
		code = code[:i] // checksum
	}
	code = strings.TrimSpace(code)

	cmd := &standalone.GCodeCommand{
		Parameters: make(map[byte]float64),
		Comment:    comment,
	}
	if code == "" {
		if comment == "" {
			return nil, nil
		}
		return cmd, nil
	}

	words, err := splitWords(code)
	if err != nil {
		return nil, err
	}
	if len(words) > 0 && words[0].letter == 'N' {
		words = words[1:]
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("line %q has no command", line)
	}

	head := words[0]
	if head.letter != 'G' && head.letter != 'M' {
		return nil, fmt.Errorf("expected G or M command, got %c", head.letter)
	}
	num, err := strconv.Atoi(head.value)
	if err != nil {
		return nil, fmt.Errorf("invalid command number %q", head.value)
	}
	cmd.Type = head.letter
	cmd.Number = num

	for _, w := range words[1:] {
		if w.value == "" {
			cmd.Parameters[w.letter] = 0 // flag
			continue
		}
		v, err := strconv.ParseFloat(w.value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q for %c", w.value, w.letter)
		}
		cmd.Parameters[w.letter] = v
	}
	return cmd, nil
}

type word struct {
	letter byte
	value  string
}

// splitWords splits "G1X10 Y-2.5" into letter/value words.
func splitWords(code string) ([]word, error) {
	var words []word
	i := 0
	for i < len(code) {
		c := code[i]
		if c == ' ' || c == '\t' {
			i++
			continue
		}
		if !isLetter(c) {
			return nil, fmt.Errorf("unexpected %q at column %d", c, i+1)
		}
		j := i + 1
		for j < len(code) && isNumberByte(code[j]) {
			j++
		}
		words = append(words, word{letter: toUpper(c), value: code[i+1 : j]})
		i = j
	}
	return words, nil
}

// splitComment separates ";..." and "(...)" comments from the code.
func splitComment(line string) (code, comment string) {
	if i := strings.IndexAny(line, ";("); i >= 0 {
		return line[:i], strings.TrimSpace(line[i:])
	}
	return line, ""
}

func isNumberByte(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+'
}

// isLetter checks if a byte is a letter
func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// toUpper converts a byte to uppercase
func toUpper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}
