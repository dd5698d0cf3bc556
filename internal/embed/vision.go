package embed

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	senerrors "github.com/jhelwig/seneschal-program-sub001/internal/errors"
)

// VisionConfig configures the vision-capable Ollama model used for
// image captioning.
type VisionConfig struct {
	Host     string
	Model    string
	Timeout  time.Duration
	PoolSize int
}

// chatMessage mirrors Ollama's /api/chat message shape. Images are
// base64-encoded and only set on the captioning request's single
// user message.
type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatOptions struct {
	Temperature float32 `json:"temperature,omitempty"`
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *chatOptions  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// VisionClient captions images using a vision-capable Ollama model.
type VisionClient struct {
	client    *http.Client
	transport *http.Transport
	config    VisionConfig
	breaker   *senerrors.CircuitBreaker
}

// NewVisionClient creates a vision client from the given config,
// applying a default timeout and pool size if unset.
func NewVisionClient(cfg VisionConfig) *VisionClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = OllamaPoolSize
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	return &VisionClient{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		breaker:   senerrors.NewCircuitBreaker("ollama-vision:" + cfg.Host),
	}
}

// CaptionImage describes the image at imagePath in the context of a
// document title and optional surrounding page text, returning a
// short prose description suitable for embedding and display.
func (v *VisionClient) CaptionImage(ctx context.Context, imagePath, documentTitle, pageContext string) (string, error) {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("reading image for captioning: %w", err)
	}
	imageB64 := base64.StdEncoding.EncodeToString(imageData)

	prompt := buildCaptionPrompt(documentTitle, pageContext)

	message := chatMessage{
		Role:    "user",
		Content: prompt,
		Images:  []string{imageB64},
	}

	ctx, cancel := context.WithTimeout(ctx, v.config.Timeout)
	defer cancel()

	return v.generateSimple(ctx, v.config.Model, message)
}

// DescribeImageData describes a caller-supplied, already base64-encoded
// image using model, without reading anything from local disk. Used by
// the image_describe tool for images living on a connected external UI
// process, where model is whatever vision model that process reports
// rather than this client's statically configured one.
func (v *VisionClient) DescribeImageData(ctx context.Context, model, imageB64, prompt string) (string, error) {
	message := chatMessage{
		Role:    "user",
		Content: prompt,
		Images:  []string{imageB64},
	}

	ctx, cancel := context.WithTimeout(ctx, v.config.Timeout)
	defer cancel()

	return v.generateSimple(ctx, model, message)
}

func buildCaptionPrompt(documentTitle, pageContext string) string {
	base := fmt.Sprintf(
		"Describe this image from the tabletop RPG document %q. "+
			"Focus on what the image depicts (characters, creatures, locations, "+
			"items, maps, etc.) and any text visible in the image. Be concise but "+
			"descriptive. This description will be used to help game masters find "+
			"relevant images.", documentTitle)

	if strings.TrimSpace(pageContext) == "" {
		return base
	}
	return fmt.Sprintf("%s\n\nThe image appears on a page with the following text for additional context:\n\n%s", base, pageContext)
}

func (v *VisionClient) generateSimple(ctx context.Context, model string, message chatMessage) (string, error) {
	if !v.breaker.Allow() {
		return "", senerrors.LLMConnection(v.config.Host, senerrors.ErrCircuitOpen)
	}

	reqBody := ollamaChatRequest{
		Model:    model,
		Messages: []chatMessage{message},
		Stream:   false,
		Options:  &chatOptions{Temperature: 0.3},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.config.Host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	return senerrors.CircuitExecuteWithResult(v.breaker,
		func() (string, error) { return v.doChat(req) },
		func() (string, error) { return "", senerrors.LLMConnection(v.config.Host, senerrors.ErrCircuitOpen) },
	)
}

func (v *VisionClient) doChat(req *http.Request) (string, error) {
	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision model request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		msg := string(respBody)
		if strings.Contains(msg, "model") && strings.Contains(msg, "not found") {
			return "", fmt.Errorf("vision model %q not found", v.config.Model)
		}
		return "", fmt.Errorf("vision model generation failed with status %d: %s", resp.StatusCode, msg)
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", err
	}
	return chatResp.Message.Content, nil
}

// Available reports whether the vision model's host is reachable.
func (v *VisionClient) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.config.Host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Close releases the vision client's idle HTTP connections.
func (v *VisionClient) Close() error {
	v.transport.CloseIdleConnections()
	return nil
}
