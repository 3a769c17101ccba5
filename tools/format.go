package tools

import (
	"strings"

	"github.com/lookbusy1344/coil-toolchain/parser"
)

// FormatOptions controls formatter behavior
type FormatOptions struct {
	IndentWidth   int  // spaces before non-label instructions
	CommentColumn int  // column trailing comments are aligned to
	KeepBlanks    bool // preserve blank lines
}

// DefaultFormatOptions returns default formatter options
func DefaultFormatOptions() *FormatOptions {
	return &FormatOptions{
		IndentWidth:   4,
		CommentColumn: 36,
		KeepBlanks:    true,
	}
}

// Formatter rewrites HOIL source into a canonical layout: labels flush
// left, instructions indented, single separators, trailing comments
// aligned. Token content is never altered.
type Formatter struct {
	options *FormatOptions
}

// NewFormatter creates a new formatter
func NewFormatter(options *FormatOptions) *Formatter {
	if options == nil {
		options = DefaultFormatOptions()
	}
	return &Formatter{options: options}
}

// splitComment separates a raw line into its code part and comment text
func splitComment(raw string) (code, comment string) {
	if idx := strings.IndexByte(raw, parser.CommentChar); idx >= 0 {
		return raw[:idx], strings.TrimSpace(raw[idx+1:])
	}
	return raw, ""
}

// isLabelLine reports whether the tokens form a CF LABEL directive
func isLabelLine(toks []parser.Token) bool {
	return len(toks) >= 2 && toks[0].Literal == "CF" && toks[1].Literal == "LABEL"
}

// Format rewrites the whole source text
func (f *Formatter) Format(input, filename string) string {
	lexer := parser.NewLexer(filename)
	lines := lexer.TokenizeAll(input)

	var out []string
	for _, line := range lines {
		_, comment := splitComment(line.Raw)

		if len(line.Tokens) == 0 {
			switch {
			case comment != "":
				out = append(out, "; "+comment)
			case f.options.KeepBlanks && strings.TrimSpace(line.Raw) == "":
				out = append(out, "")
			}
			continue
		}

		literals := make([]string, len(line.Tokens))
		for i, tok := range line.Tokens {
			literals[i] = tok.Literal
		}
		text := strings.Join(literals, " ")

		if !isLabelLine(line.Tokens) {
			text = strings.Repeat(" ", f.options.IndentWidth) + text
		}

		if comment != "" {
			if len(text) < f.options.CommentColumn {
				text += strings.Repeat(" ", f.options.CommentColumn-len(text))
			} else {
				text += " "
			}
			text += "; " + comment
		}

		out = append(out, text)
	}

	// Drop trailing blank lines, end with exactly one newline
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n") + "\n"
}
