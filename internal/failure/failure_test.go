package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(tries uint) RetryPolicy {
	return RetryPolicy{MaxTries: tries, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestKindOf(t *testing.T) {
	base := errors.New("boom")

	assert.Equal(t, Skip, KindOf(base))
	assert.Equal(t, Fatal, KindOf(AsFatal(base)))
	assert.Equal(t, Transient, KindOf(AsTransient(base)))
	assert.Equal(t, Transient, KindOf(fmt.Errorf("navigate: %w", context.DeadlineExceeded)))
	assert.Equal(t, Transient, KindOf(&net.OpError{Op: "dial", Err: base}))

	// outermost marker wins
	assert.Equal(t, Skip, KindOf(AsSkip(AsTransient(base))))
	assert.Equal(t, Fatal, KindOf(fmt.Errorf("launch: %w", AsFatal(base))))

	assert.Nil(t, AsFatal(nil))
	assert.False(t, IsFatal(nil))
	assert.ErrorIs(t, Skipf("article %s: %w", "x", base), base)
}

func TestRetrySucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Transientf("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnNonTransient(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func(ctx context.Context) error {
		calls++
		return Fatalf("bad config")
	})
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Equal(t, 1, calls)
}

func TestRetryDowngradesExhaustedTransientToSkip(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(2), func(ctx context.Context) error {
		calls++
		return AsTransient(context.DeadlineExceeded)
	})
	require.Error(t, err)
	assert.Equal(t, Skip, KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, calls)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "fatal", Fatal.String())
	assert.Equal(t, "skip", Skip.String())
	assert.Equal(t, "transient", Transient.String())
}
