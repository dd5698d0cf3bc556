package embed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildCaptionPrompt_NoContext(t *testing.T) {
	prompt := buildCaptionPrompt("Monster Manual", "")
	assert.Contains(t, prompt, `"Monster Manual"`)
	assert.NotContains(t, prompt, "additional context")
}

func TestBuildCaptionPrompt_WithContext(t *testing.T) {
	prompt := buildCaptionPrompt("Monster Manual", "--- Page 12 ---\nThe beholder floats silently.")
	assert.True(t, strings.Contains(prompt, "additional context"))
	assert.True(t, strings.Contains(prompt, "beholder"))
}

func TestNewVisionClient_AppliesDefaults(t *testing.T) {
	v := NewVisionClient(VisionConfig{Host: "http://localhost:11434", Model: "llava"})
	defer func() { _ = v.Close() }()
	assert.Equal(t, 60_000_000_000, int(v.config.Timeout)) // 60s in ns
	assert.Equal(t, OllamaPoolSize, v.config.PoolSize)
}
