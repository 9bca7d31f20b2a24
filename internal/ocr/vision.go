package ocr

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// visionPrompt asks the model for a plain transcription, nothing else.
const visionPrompt = "请识别并输出这张图片中的所有文字内容。只输出文字本身，不要添加任何说明或格式。如果图片中没有文字，输出空字符串。"

// VisionProvider implements Provider using an OpenAI-compatible
// chat-completion endpoint with vision support. It is stateless; every
// acquired session is the provider itself.
type VisionProvider struct {
	Endpoint  string
	APIKey    string
	ModelName string
	client    *http.Client
}

// NewVisionProvider creates a VisionProvider. It fails when the endpoint
// or credential is missing so that the caller can fall back to the local
// engine provider.
func NewVisionProvider(endpoint, apiKey, modelName string) (*VisionProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("vision provider: missing API key")
	}
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("vision provider: missing endpoint")
	}
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}
	return &VisionProvider{
		Endpoint:  endpoint,
		APIKey:    apiKey,
		ModelName: modelName,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// Acquire returns the provider itself; vision recognition holds no
// per-document engine state.
func (p *VisionProvider) Acquire() (Session, error) { return p, nil }

// Close is a no-op for the stateless vision session.
func (p *VisionProvider) Close() error { return nil }

// visionRequest is the request body for the chat completion API.
type visionRequest struct {
	Model     string          `json:"model"`
	Messages  []visionMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
}

// visionMessage carries mixed text/image content parts.
type visionMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// visionResponse is the response body from the chat completion API.
type visionResponse struct {
	Choices []visionChoice `json:"choices"`
	Error   *apiError      `json:"error,omitempty"`
}

type visionChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Recognize sends the image as a base64 data URI to the vision endpoint.
// It retries once; if both attempts fail the error is surfaced as a
// tagged string.
func (p *VisionProvider) Recognize(image []byte) string {
	text, err := p.callAPI(image)
	if err == nil {
		return text
	}

	text, err = p.callAPI(image)
	if err == nil {
		return text
	}

	return ErrorText(err.Error())
}

// callAPI sends one chat completion request carrying the image.
func (p *VisionProvider) callAPI(image []byte) (string, error) {
	format := "png"
	if len(image) >= 3 && image[0] == 0xFF && image[1] == 0xD8 && image[2] == 0xFF {
		format = "jpeg"
	}
	dataURI := fmt.Sprintf("data:image/%s;base64,%s", format, base64.StdEncoding.EncodeToString(image))

	reqBody := visionRequest{
		Model: p.ModelName,
		Messages: []visionMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: visionPrompt},
					{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
				},
			},
		},
		MaxTokens: 2048,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(p.Endpoint, "/") + "/chat/completions"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp visionResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != nil {
			return "", fmt.Errorf("vision API error (HTTP %d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return "", fmt.Errorf("vision API error (HTTP %d)", resp.StatusCode)
	}

	var result visionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("vision API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("vision API returned no choices")
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
