package pdfext

import "testing"

func TestDecodeTextBytes(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{
			name: "utf16 big endian with BOM",
			raw:  []byte{0xFE, 0xFF, 0x00, 'H', 0x00, 'i'},
			want: "Hi",
		},
		{
			name: "utf16 little endian with BOM",
			raw:  []byte{0xFF, 0xFE, 'H', 0x00, 'i', 0x00},
			want: "Hi",
		},
		{
			name: "utf16 surrogate pair",
			raw:  []byte{0xFE, 0xFF, 0xD8, 0x3D, 0xDE, 0x00},
			want: "\U0001F600",
		},
		{
			name: "utf16 odd trailing byte dropped",
			raw:  []byte{0xFE, 0xFF, 0x00, 'A', 0x00},
			want: "A",
		},
		{
			name: "ascii passes through",
			raw:  []byte("plain text"),
			want: "plain text",
		},
		{
			name: "valid utf8 passes through",
			raw:  []byte("héllo — 中文"),
			want: "héllo — 中文",
		},
		{
			name: "invalid utf8 falls back to latin1",
			raw:  []byte{0xC9, 't', 0xE9},
			want: "Été",
		},
		{
			name: "empty input",
			raw:  nil,
			want: "",
		},
		{
			name: "bare BOM",
			raw:  []byte{0xFE, 0xFF},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeTextBytes(tt.raw); got != tt.want {
				t.Errorf("decodeTextBytes(%v) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDecodeLatin1_FullRange(t *testing.T) {
	// Every byte maps to the code point of the same value.
	raw := []byte{0x00, 0x7F, 0x80, 0xA9, 0xFF}
	want := "\x00\x7f\u0080\u00a9\u00ff"
	if got := decodeLatin1(raw); got != want {
		t.Errorf("decodeLatin1 = %q, want %q", got, want)
	}
}
