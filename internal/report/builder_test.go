package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/clap4me/internal/store"
	"github.com/ibeckermayer/clap4me/internal/types"
)

func TestBuild(t *testing.T) {
	b, err := New()
	require.NoError(t, err)

	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	rep := &store.SessionReport{
		Stats: types.SessionStats{
			ID: "s1", StartedAt: start, FinishedAt: start.Add(12 * time.Minute),
			Processed: 2, Clapped: 1, Followed: 1, Failed: 1,
		},
		Engagements: []types.Engagement{
			{URL: "https://medium.com/p/a", Tag: "go", Clapped: true, Claps: 15, Followed: true, Outcome: types.OutcomeDone},
			{URL: "https://medium.com/p/b?x=<script>", Tag: "go", Outcome: types.OutcomeFailed, Error: strings.Repeat("e", 300)},
		},
	}

	r, err := b.Build(rep)
	require.NoError(t, err)

	assert.Contains(t, r.Subject, "2 articles, 1 clapped")
	assert.Contains(t, r.HTMLBody, `<td class="done">done</td>`)
	assert.Contains(t, r.HTMLBody, "12m0s")
	assert.NotContains(t, r.HTMLBody, "<script>")
	assert.Contains(t, r.PlainBody, "1. [done] https://medium.com/p/a")
	assert.Contains(t, r.PlainBody, "claps: 15, followed: true, commented: false")
	assert.Contains(t, r.PlainBody, strings.Repeat("e", 197)+"...")
}

func TestBuildUnfinishedSession(t *testing.T) {
	b, err := New()
	require.NoError(t, err)

	r, err := b.Build(&store.SessionReport{Stats: types.SessionStats{StartedAt: time.Now()}})
	require.NoError(t, err)
	assert.Contains(t, r.PlainBody, "unfinished")
}

func TestBuildNil(t *testing.T) {
	b, err := New()
	require.NoError(t, err)
	_, err = b.Build(nil)
	assert.Error(t, err)
}
