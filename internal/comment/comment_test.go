package comment

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibeckermayer/clap4me/internal/comment/providers"
	"github.com/ibeckermayer/clap4me/internal/config"
	"github.com/ibeckermayer/clap4me/internal/store"
)

type scriptedProvider struct {
	replies  []string
	failAt   int // 1-based call that fails, 0 for never
	requests []providers.Request
}

func (p *scriptedProvider) Complete(ctx context.Context, req providers.Request) (string, error) {
	p.requests = append(p.requests, req)
	n := len(p.requests)
	if n == p.failAt {
		return "", errors.New("rate limit exceeded")
	}
	return p.replies[n-1], nil
}

func TestGenerateChainsStages(t *testing.T) {
	p := &scriptedProvider{replies: []string{"  draft  ", "refined\n", "final comment"}}
	cfg := config.Default().Comment
	cache := store.NewCache(t.TempDir())
	g := NewWithProvider(p, config.ProviderGroq, Stages(cfg), cache, zap.NewNop())

	got, err := g.Generate(context.Background(), "  An article about channels. ")
	require.NoError(t, err)
	assert.Equal(t, "final comment", got)

	require.Len(t, p.requests, 3)
	assert.Equal(t, "An article about channels.", p.requests[0].Prompt)
	assert.Equal(t, "draft", p.requests[1].Prompt)
	assert.Equal(t, "refined", p.requests[2].Prompt)

	assert.Equal(t, "llama3-8b-8192", p.requests[0].Model)
	assert.Equal(t, 506, p.requests[0].MaxTokens)
	require.NotNil(t, p.requests[0].Temperature)
	assert.Equal(t, 1.0, *p.requests[0].Temperature)
	assert.Equal(t, "llama3-70b-8192", p.requests[1].Model)
	assert.Equal(t, 8192, p.requests[1].MaxTokens)
	assert.Nil(t, p.requests[1].Temperature)
	assert.Equal(t, commenterPrompt, p.requests[1].System)
	assert.Equal(t, editorPrompt, p.requests[2].System)

	entries, err := os.ReadDir(cache.Dir(store.StepLLM))
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestGenerateStopsOnStageFailure(t *testing.T) {
	p := &scriptedProvider{replies: []string{"draft", "", ""}, failAt: 2}
	g := NewWithProvider(p, config.ProviderGroq, Stages(config.Default().Comment), nil, zap.NewNop())

	_, err := g.Generate(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refine stage failed")
	assert.Len(t, p.requests, 2)
}

func TestGenerateRejectsEmptyCompletion(t *testing.T) {
	p := &scriptedProvider{replies: []string{"   "}}
	g := NewWithProvider(p, config.ProviderGroq, Stages(config.Default().Comment), nil, zap.NewNop())

	_, err := g.Generate(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "draft stage failed")
}

func TestGenerateRejectsEmptyArticle(t *testing.T) {
	p := &scriptedProvider{}
	g := NewWithProvider(p, config.ProviderGroq, Stages(config.Default().Comment), nil, zap.NewNop())

	_, err := g.Generate(context.Background(), " \n ")
	require.Error(t, err)
	assert.Empty(t, p.requests)
}

func TestGenerateTruncatesLongArticles(t *testing.T) {
	p := &scriptedProvider{replies: []string{"a", "b", "c"}}
	g := NewWithProvider(p, config.ProviderGroq, Stages(config.Default().Comment), nil, zap.NewNop())

	_, err := g.Generate(context.Background(), strings.Repeat("é", maxInputRunes+50))
	require.NoError(t, err)
	assert.Equal(t, maxInputRunes, len([]rune(p.requests[0].Prompt)))
}

func TestNewSelectsProvider(t *testing.T) {
	for _, name := range []string{config.ProviderGroq, config.ProviderOpenAI, config.ProviderAnthropic} {
		cfg := config.Default().Comment
		cfg.Provider = name
		cfg.APIKey = "key"
		_, err := New(cfg, nil, zap.NewNop())
		assert.NoError(t, err, name)
	}

	cfg := config.Default().Comment
	cfg.Provider = "mystery"
	_, err := New(cfg, nil, zap.NewNop())
	assert.Error(t, err)
}
