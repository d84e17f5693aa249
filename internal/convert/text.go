package convert

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

func extractPlain(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		data = printableText(data)
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}

// extractDOC handles legacy Word binaries by keeping their printable runs.
func extractDOC(data []byte) (string, error) {
	return collapseRuns(printableText(data)), nil
}

// printableText keeps printable runes and whitespace, dropping invalid bytes.
func printableText(in []byte) []byte {
	var out bytes.Buffer
	for len(in) > 0 {
		r, size := utf8.DecodeRune(in)
		if r == utf8.RuneError && size == 1 {
			if isPrintableASCII(in[0]) {
				out.WriteByte(in[0])
			}
			in = in[1:]
			continue
		}
		in = in[size:]
		if isPrintableRune(r) {
			out.WriteRune(r)
		}
	}
	return out.Bytes()
}

func isPrintableASCII(b byte) bool {
	return b == '\n' || b == '\r' || b == '\t' || (b >= 32 && b < 127)
}

func isPrintableRune(r rune) bool {
	if r == '\n' || r == '\r' || r == '\t' {
		return true
	}
	return r >= 32 && r != 127 && r != utf8.RuneError
}

// collapseRuns keeps lines of at least four characters that contain a
// letter, dropping binary noise.
func collapseRuns(data []byte) string {
	var lines []string
	for _, field := range strings.FieldsFunc(string(data), func(r rune) bool { return r == '\n' || r == '\r' }) {
		field = strings.TrimSpace(field)
		if len([]rune(field)) >= 4 && strings.ContainsAny(field, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ") {
			lines = append(lines, field)
		}
	}
	return strings.Join(lines, "\n")
}
