package ocr

import (
	"log"
	"os"
)

// Environment variables consulted when the config carries no credential.
const (
	envVisionAPIKey   = "DOCFLOW_VISION_API_KEY"
	envVisionEndpoint = "DOCFLOW_VISION_ENDPOINT"
)

// defaultVisionEndpoint is used when a credential is configured without
// an explicit endpoint.
const defaultVisionEndpoint = "https://api.openai.com/v1"

// DefaultProvider selects the recognition provider. It is a pure factory
// invoked once by the composition root; extractors receive the result by
// injection and hold no lazy-init state.
//
// Selection: if a remote vision credential is configured (arguments or
// environment), construct the vision provider; on construction failure
// fall back to the local Tesseract engine.
func DefaultProvider(endpoint, apiKey, modelName string, languages []string) Provider {
	if apiKey == "" {
		apiKey = os.Getenv(envVisionAPIKey)
	}
	if endpoint == "" {
		endpoint = os.Getenv(envVisionEndpoint)
	}
	if endpoint == "" {
		endpoint = defaultVisionEndpoint
	}

	if apiKey != "" {
		p, err := NewVisionProvider(endpoint, apiKey, modelName)
		if err == nil {
			return p
		}
		log.Printf("[OCR] vision provider init failed, falling back to local engine: %v", err)
	}

	return NewLocalProvider(languages)
}
