// Package ocr provides the image-recognition capability used by the
// extraction pipeline: a remote vision-model provider and a local
// Tesseract engine provider behind a common interface.
package ocr

import "strings"

// errTag marks a recognition failure surfaced as text. Sessions never
// panic and never return a Go error from Recognize; the page pipeline
// always has a string it can test.
const errTag = "[OCR-ERROR]"

// Session is one acquired recognition engine. A session is acquired once
// per document-level extraction and must be closed on every exit path;
// Close errors are swallowed by callers.
type Session interface {
	// Recognize turns an encoded raster image (JPEG/PNG) into text.
	// On internal failure it returns a string tagged with [OCR-ERROR].
	Recognize(image []byte) string
	// Close releases engine resources. Stateless sessions make this a no-op.
	Close() error
}

// Provider hands out recognition sessions.
type Provider interface {
	Acquire() (Session, error)
}

// ErrorText builds a tagged recognition-failure string.
func ErrorText(msg string) string {
	return errTag + " " + msg
}

// IsErrorText reports whether a recognition result is a tagged failure.
func IsErrorText(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), errTag)
}
