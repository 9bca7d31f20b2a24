package pdfext

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// decodeTextBytes converts the raw bytes of a recovered string into text.
// A UTF-16 byte-order mark selects UTF-16 decoding (big- or little-endian);
// otherwise the bytes are taken as UTF-8, falling back to a direct
// single-byte Latin-1 mapping when the UTF-8 interpretation is invalid.
func decodeTextBytes(raw []byte) string {
	if len(raw) >= 2 {
		if raw[0] == 0xFE && raw[1] == 0xFF {
			return decodeUTF16(raw[2:], true)
		}
		if raw[0] == 0xFF && raw[1] == 0xFE {
			return decodeUTF16(raw[2:], false)
		}
	}

	s := string(raw)
	if utf8.ValidString(s) && !strings.ContainsRune(s, utf8.RuneError) {
		return s
	}
	return decodeLatin1(raw)
}

// decodeUTF16 decodes UTF-16 code units in the given byte order.
// A trailing odd byte is dropped.
func decodeUTF16(b []byte, bigEndian bool) string {
	n := len(b) / 2
	units := make([]uint16, 0, n)
	for i := 0; i+1 < len(b); i += 2 {
		if bigEndian {
			units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
		} else {
			units = append(units, uint16(b[i+1])<<8|uint16(b[i]))
		}
	}
	return string(utf16.Decode(units))
}

// decodeLatin1 maps each byte directly to the code point of the same value.
func decodeLatin1(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return sb.String()
}
