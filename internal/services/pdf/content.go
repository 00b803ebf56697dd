// -----------------------------------------------------------------------
// Content streams - text shown by the Tj, TJ, ' and " operators
// -----------------------------------------------------------------------

package pdf

import (
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/charmap"
)

// TJ adjustments below this (thousandths of an em) read as a word gap.
const wordGapAdjustment = -200

type operand struct {
	text   string
	number float64
	isNum  bool
	isText bool
}

// pageText returns the text a decoded page content stream shows.
// Strings are read as WinAnsi unless they carry a UTF-16 byte order mark;
// composite font encodings are not mapped.
func pageText(stream []byte) string {
	var w textWriter
	var operands []operand

	for i := 0; i < len(stream); {
		c := stream[i]
		switch {
		case isSpace(c):
			i++
		case c == '%':
			for i < len(stream) && stream[i] != '\n' && stream[i] != '\r' {
				i++
			}
		case c == '(':
			s, next := readLiteral(stream, i)
			operands = append(operands, operand{text: s, isText: true})
			i = next
		case c == '<' && i+1 < len(stream) && stream[i+1] == '<',
			c == '>' && i+1 < len(stream) && stream[i+1] == '>':
			i += 2
		case c == '<':
			s, next := readHex(stream, i)
			operands = append(operands, operand{text: s, isText: true})
			i = next
		case c == '[':
			s, next := readArray(stream, i+1)
			operands = append(operands, operand{text: s, isText: true})
			i = next
		case c == '/':
			_, next := readToken(stream, i+1)
			operands = append(operands, operand{})
			i = next
		case isDelimiter(c):
			i++
		default:
			tok, next := readToken(stream, i)
			i = next
			if n, err := strconv.ParseFloat(tok, 64); err == nil {
				operands = append(operands, operand{number: n, isNum: true})
				continue
			}
			if tok == "ID" {
				i = skipInlineImage(stream, i)
			} else {
				w.apply(tok, operands)
			}
			operands = operands[:0]
		}
	}
	return w.String()
}

type textWriter struct {
	b       strings.Builder
	pending bool
}

func (w *textWriter) apply(op string, operands []operand) {
	last := operand{}
	if len(operands) > 0 {
		last = operands[len(operands)-1]
	}

	switch op {
	case "Tj", "TJ":
		if last.isText {
			w.write(last.text)
		}
	case "'", `"`:
		w.newline()
		if last.isText {
			w.write(last.text)
		}
	case "Td", "TD":
		if last.isNum && last.number != 0 {
			w.newline()
		}
	case "T*", "Tm", "ET":
		w.newline()
	}
}

func (w *textWriter) newline() {
	if w.b.Len() > 0 {
		w.pending = true
	}
}

func (w *textWriter) write(s string) {
	if s == "" {
		return
	}
	if w.pending {
		w.b.WriteByte('\n')
		w.pending = false
	}
	w.b.WriteString(s)
}

func (w *textWriter) String() string {
	return w.b.String()
}

// readLiteral reads the balanced (...) string starting at stream[start].
func readLiteral(stream []byte, start int) (string, int) {
	depth := 1
	j := start + 1
	for ; j < len(stream); j++ {
		switch stream[j] {
		case '\\':
			j++
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 {
			break
		}
	}
	end := min(j, len(stream))
	raw := stream[start+1 : end]

	unescaped, err := types.Unescape(string(raw))
	if err != nil {
		unescaped = raw
	}
	return decodeText(unescaped), min(end+1, len(stream))
}

// readHex reads the <...> string starting at stream[start].
func readHex(stream []byte, start int) (string, int) {
	var digits strings.Builder
	j := start + 1
	for ; j < len(stream) && stream[j] != '>'; j++ {
		if !isSpace(stream[j]) {
			digits.WriteByte(stream[j])
		}
	}
	if digits.Len()%2 == 1 {
		digits.WriteByte('0')
	}
	decoded, err := hex.DecodeString(digits.String())
	if err != nil {
		return "", min(j+1, len(stream))
	}
	return decodeText(decoded), min(j+1, len(stream))
}

// readArray joins the strings of a TJ array, turning wide negative
// adjustments into spaces. start is just past the '['.
func readArray(stream []byte, start int) (string, int) {
	var b strings.Builder
	i := start
	for i < len(stream) {
		c := stream[i]
		switch {
		case c == ']':
			return b.String(), i + 1
		case isSpace(c):
			i++
		case c == '(':
			s, next := readLiteral(stream, i)
			b.WriteString(s)
			i = next
		case c == '<':
			s, next := readHex(stream, i)
			b.WriteString(s)
			i = next
		case isDelimiter(c):
			i++
		default:
			tok, next := readToken(stream, i)
			i = next
			n, err := strconv.ParseFloat(tok, 64)
			if err == nil && n < wordGapAdjustment && b.Len() > 0 && !strings.HasSuffix(b.String(), " ") {
				b.WriteByte(' ')
			}
		}
	}
	return b.String(), i
}

func readToken(stream []byte, start int) (string, int) {
	j := start
	for j < len(stream) && !isSpace(stream[j]) && !isDelimiter(stream[j]) {
		j++
	}
	if j == start {
		return "", start + 1
	}
	return string(stream[start:j]), j
}

// skipInlineImage moves past the binary data of a BI ... ID ... EI image.
func skipInlineImage(stream []byte, start int) int {
	for j := start; j+1 < len(stream); j++ {
		if stream[j] != 'E' || stream[j+1] != 'I' {
			continue
		}
		if j > 0 && isSpace(stream[j-1]) && (j+2 == len(stream) || isSpace(stream[j+2])) {
			return j + 2
		}
	}
	return len(stream)
}

func decodeText(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		units := make([]uint16, 0, (len(b)-2)/2)
		for i := 2; i+1 < len(b); i += 2 {
			units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(units))
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(decoded)
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}
