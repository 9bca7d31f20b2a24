package ocr

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// LocalProvider implements Provider with the local Tesseract engine.
// Each acquired session owns one gosseract client, created per document
// extraction and released when the session closes.
type LocalProvider struct {
	// Languages passed to the engine, e.g. ["eng", "chi_sim"].
	// Empty means the engine default.
	Languages []string
}

// NewLocalProvider creates a LocalProvider.
func NewLocalProvider(languages []string) *LocalProvider {
	return &LocalProvider{Languages: languages}
}

// Acquire creates a fresh Tesseract client session.
func (p *LocalProvider) Acquire() (Session, error) {
	client := gosseract.NewClient()
	if len(p.Languages) > 0 {
		if err := client.SetLanguage(p.Languages...); err != nil {
			client.Close()
			return nil, fmt.Errorf("tesseract language setup: %w", err)
		}
	}
	return &localSession{client: client}, nil
}

// localSession wraps one gosseract client.
type localSession struct {
	client *gosseract.Client
}

// Recognize runs Tesseract on the encoded image bytes.
func (s *localSession) Recognize(image []byte) string {
	if err := s.client.SetImageFromBytes(image); err != nil {
		return ErrorText(fmt.Sprintf("set image: %v", err))
	}
	text, err := s.client.Text()
	if err != nil {
		return ErrorText(fmt.Sprintf("recognize: %v", err))
	}
	return strings.TrimSpace(text)
}

// Close releases the Tesseract client.
func (s *localSession) Close() error {
	return s.client.Close()
}
