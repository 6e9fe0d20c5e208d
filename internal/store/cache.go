package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ibeckermayer/clap4me/internal/config"
)

// StepName identifies a pipeline step for caching purposes.
type StepName string

const (
	StepFeeds  StepName = "feeds"
	StepLLM    StepName = "llm"
	StepReport StepName = "report"
)

// Cache writes debugging snapshots as timestamped files.
type Cache struct {
	dir string
}

// NewCache stores snapshots under dir.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// DefaultCache stores snapshots under the user cache dir.
// On macOS this is ~/Library/Caches/clap4me/
func DefaultCache() (*Cache, error) {
	dir, err := config.CacheDir()
	if err != nil {
		return nil, err
	}
	return NewCache(dir), nil
}

// Dir returns the cache directory for a given step.
func (c *Cache) Dir(step StepName) string {
	return filepath.Join(c.dir, string(step))
}

// generateFilename creates a timestamped, collision-free filename.
func generateFilename(ext string) string {
	return time.Now().Format("2006-01-02T15-04-05") + "-" + uuid.NewString()[:8] + ext
}

// SaveStepOutput saves JSON-serializable data to the step's cache directory.
// Returns the path to the saved file.
func SaveStepOutput[T any](c *Cache, step StepName, data T) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal step output: %w", err)
	}
	return c.write(step, jsonData, ".json")
}

// SaveTextOutput saves text content (e.g., HTML) to the step's cache directory.
// Returns the path to the saved file.
func (c *Cache) SaveTextOutput(step StepName, content string, ext string) (string, error) {
	return c.write(step, []byte(content), ext)
}

func (c *Cache) write(step StepName, data []byte, ext string) (string, error) {
	dir := c.Dir(step)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create step cache dir: %w", err)
	}

	path := filepath.Join(dir, generateFilename(ext))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write step output: %w", err)
	}
	return path, nil
}

// LLMExchange represents a prompt/response pair for caching
type LLMExchange struct {
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"` // e.g. "groq"
	Model     string    `json:"model"`
	Stage     string    `json:"stage"`
	System    string    `json:"system"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Error     string    `json:"error,omitempty"`
}

// SaveLLMExchange writes one exchange to the llm cache directory.
func (c *Cache) SaveLLMExchange(exchange LLMExchange) (string, error) {
	return SaveStepOutput(c, StepLLM, exchange)
}
