// Package comment turns an article's text into a comment through a fixed
// chain of LLM calls: draft, refine, edit.
package comment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ibeckermayer/clap4me/internal/comment/providers"
	"github.com/ibeckermayer/clap4me/internal/config"
	"github.com/ibeckermayer/clap4me/internal/store"
)

// maxInputRunes keeps long articles inside the draft model's context window.
const maxInputRunes = 20000

// Provider defines the interface for LLM providers
type Provider interface {
	Complete(ctx context.Context, req providers.Request) (string, error)
}

// Stage is one step of the pipeline.
type Stage struct {
	Name        string
	System      string
	Model       string
	MaxTokens   int
	Temperature *float64
}

// Stages returns the draft, refine and edit stages for cfg.
func Stages(cfg config.CommentConfig) []Stage {
	one := 1.0
	return []Stage{
		{Name: "draft", System: commenterPrompt, Model: cfg.DraftModel, MaxTokens: cfg.DraftMaxTokens, Temperature: &one},
		{Name: "refine", System: commenterPrompt, Model: cfg.RefineModel, MaxTokens: cfg.RefineMaxTokens},
		{Name: "edit", System: editorPrompt, Model: cfg.EditModel, MaxTokens: cfg.RefineMaxTokens},
	}
}

// Generator runs the stages in order, feeding each output into the next.
type Generator struct {
	provider     Provider
	providerName string
	stages       []Stage
	cache        *store.Cache
	logger       *zap.Logger
}

// New creates a generator with the provider named in cfg.
func New(cfg config.CommentConfig, cache *store.Cache, logger *zap.Logger) (*Generator, error) {
	var provider Provider

	switch cfg.Provider {
	case config.ProviderGroq:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = providers.GroqBaseURL
		}
		provider = providers.NewOpenAIProvider(cfg.APIKey, baseURL)
	case config.ProviderOpenAI:
		provider = providers.NewOpenAIProvider(cfg.APIKey, cfg.BaseURL)
	case config.ProviderAnthropic:
		provider = providers.NewAnthropicProvider(cfg.APIKey, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}

	return NewWithProvider(provider, cfg.Provider, Stages(cfg), cache, logger), nil
}

// NewWithProvider creates a generator around an existing provider. cache may be nil.
func NewWithProvider(p Provider, name string, stages []Stage, cache *store.Cache, logger *zap.Logger) *Generator {
	return &Generator{
		provider:     p,
		providerName: name,
		stages:       stages,
		cache:        cache,
		logger:       logger.Named("comment"),
	}
}

// Generate returns the final comment for the article text.
func (g *Generator) Generate(ctx context.Context, article string) (string, error) {
	text := truncate(strings.TrimSpace(article), maxInputRunes)
	if text == "" {
		return "", errors.New("empty article text")
	}

	for _, st := range g.stages {
		start := time.Now()
		out, err := g.provider.Complete(ctx, providers.Request{
			Model:       st.Model,
			System:      st.System,
			Prompt:      text,
			MaxTokens:   st.MaxTokens,
			Temperature: st.Temperature,
		})
		out = strings.TrimSpace(out)
		if err == nil && out == "" {
			err = errors.New("empty completion")
		}
		g.saveExchange(st, text, out, err)
		if err != nil {
			return "", fmt.Errorf("%s stage failed: %w", st.Name, err)
		}

		g.logger.Debug("Stage complete",
			zap.String("stage", st.Name),
			zap.String("model", st.Model),
			zap.Duration("took", time.Since(start)),
			zap.Int("length", len(out)))
		text = out
	}
	return text, nil
}

func (g *Generator) saveExchange(st Stage, prompt, response string, err error) {
	if g.cache == nil {
		return
	}
	ex := store.LLMExchange{
		Timestamp: time.Now(),
		Provider:  g.providerName,
		Model:     st.Model,
		Stage:     st.Name,
		System:    st.System,
		Prompt:    prompt,
		Response:  response,
	}
	if err != nil {
		ex.Error = err.Error()
	}
	if path, err := g.cache.SaveLLMExchange(ex); err != nil {
		g.logger.Warn("Failed to cache LLM exchange", zap.Error(err))
	} else {
		g.logger.Debug("Cached LLM exchange", zap.String("path", path))
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
