// Package pdfext implements the PDF extraction subsystem: a multi-strategy
// text-recovery pipeline over structured text layers, raw content-stream
// tokenization, and embedded raster image decoding with OCR dispatch.
package pdfext

import "strings"

// contentScanner walks the decoded bytes of one or more concatenated page
// content streams. Operators are ASCII; string payloads may carry arbitrary
// bytes, so the scanner works byte-wise, never rune-wise.
type contentScanner struct {
	data []byte
	pos  int
}

// ExtractStreamText tokenizes a decoded content stream and returns the text
// recovered from simple text-show operators. A literal or hex string counts
// only when followed by Tj, ' or "; an array counts only when followed by TJ
// (its string items concatenated, numeric kerning entries ignored). All other
// operator contexts are discarded: this recovers shown text, not
// graphics-state-aware layout.
func ExtractStreamText(data []byte) string {
	s := &contentScanner{data: data}
	var sb strings.Builder

	for s.pos < len(s.data) {
		switch s.data[s.pos] {
		case '(':
			s.pos++
			raw := s.readLiteralString()
			switch s.nextOperator() {
			case "Tj":
				sb.WriteString(decodeTextBytes(raw))
			case "'", "\"":
				// Next-line show operators.
				sb.WriteByte('\n')
				sb.WriteString(decodeTextBytes(raw))
			}
		case '<':
			if s.pos+1 < len(s.data) && s.data[s.pos+1] == '<' {
				// Dictionary open, not a hex string.
				s.pos += 2
				continue
			}
			s.pos++
			raw := s.readHexString()
			switch s.nextOperator() {
			case "Tj":
				sb.WriteString(decodeTextBytes(raw))
			case "'", "\"":
				sb.WriteByte('\n')
				sb.WriteString(decodeTextBytes(raw))
			}
		case '[':
			s.pos++
			items := s.readTextArray()
			if s.nextOperator() == "TJ" {
				for _, item := range items {
					sb.WriteString(decodeTextBytes(item))
				}
			}
		default:
			s.pos++
		}
	}

	return sb.String()
}

// readLiteralString consumes a literal string whose opening '(' has already
// been consumed. Unescaped parentheses adjust the nesting depth; escaped
// forms do not. Returns the escape-decoded raw bytes.
func (s *contentScanner) readLiteralString() []byte {
	var out []byte
	depth := 1

	for s.pos < len(s.data) {
		b := s.data[s.pos]

		if b == '\\' {
			s.pos++
			if s.pos >= len(s.data) {
				break
			}
			e := s.data[s.pos]
			switch e {
			case 'n':
				out = append(out, '\n')
				s.pos++
			case 'r':
				out = append(out, '\r')
				s.pos++
			case 't':
				out = append(out, '\t')
				s.pos++
			case 'b':
				out = append(out, '\b')
				s.pos++
			case 'f':
				out = append(out, '\f')
				s.pos++
			case '(', ')', '\\':
				out = append(out, e)
				s.pos++
			case '\r':
				// Line continuation: backslash + EOL contributes nothing.
				s.pos++
				if s.pos < len(s.data) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case '\n':
				s.pos++
			default:
				if e >= '0' && e <= '7' {
					out = append(out, s.readOctalEscape())
				} else {
					// Any other escaped character contributes its own code.
					out = append(out, e)
					s.pos++
				}
			}
			continue
		}

		if b == '(' {
			depth++
		} else if b == ')' {
			depth--
			if depth == 0 {
				s.pos++
				return out
			}
		}
		out = append(out, b)
		s.pos++
	}

	return out
}

// readOctalEscape consumes 1–3 octal digits at the current position and
// returns the byte value.
func (s *contentScanner) readOctalEscape() byte {
	val := 0
	for n := 0; n < 3 && s.pos < len(s.data); n++ {
		d := s.data[s.pos]
		if d < '0' || d > '7' {
			break
		}
		val = val*8 + int(d-'0')
		s.pos++
	}
	return byte(val)
}

// readHexString consumes a hex string whose opening '<' has already been
// consumed. Whitespace between digits is ignored; an odd-length digit
// sequence is padded with a trailing zero nibble before pairing.
func (s *contentScanner) readHexString() []byte {
	var digits []byte

	for s.pos < len(s.data) {
		b := s.data[s.pos]
		s.pos++
		if b == '>' {
			break
		}
		if isHexDigit(b) {
			digits = append(digits, b)
		}
	}

	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}

	out := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		out = append(out, hexVal(digits[i])<<4|hexVal(digits[i+1]))
	}
	return out
}

// readTextArray consumes a text array whose opening '[' has already been
// consumed, collecting only the nested literal/hex strings in encounter
// order. Numeric kerning adjustments contribute nothing.
func (s *contentScanner) readTextArray() [][]byte {
	var items [][]byte

	for s.pos < len(s.data) {
		switch s.data[s.pos] {
		case ']':
			s.pos++
			return items
		case '(':
			s.pos++
			items = append(items, s.readLiteralString())
		case '<':
			s.pos++
			items = append(items, s.readHexString())
		default:
			s.pos++
		}
	}

	return items
}

// nextOperator reads the operator name following a string/array token: the
// next run of alphabetic characters, or a bare ' or " character. Numbers,
// signs, and whitespace between the token and its operator are skipped.
// A structural delimiter means the token had no text-show operator; the
// scanner position is left on the delimiter.
func (s *contentScanner) nextOperator() string {
	for s.pos < len(s.data) {
		b := s.data[s.pos]

		if isAlpha(b) {
			start := s.pos
			for s.pos < len(s.data) && isAlpha(s.data[s.pos]) {
				s.pos++
			}
			return string(s.data[start:s.pos])
		}
		if b == '\'' || b == '"' {
			s.pos++
			return string(b)
		}
		if b == '(' || b == '<' || b == '[' || b == ']' || b == '/' {
			return ""
		}

		// Whitespace, digits, signs, decimal points between token and operator.
		s.pos++
	}
	return ""
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func hexVal(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	default:
		return b - 'A' + 10
	}
}
