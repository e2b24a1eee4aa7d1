package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/alem-hub/progress-ledger/internal/domain/notification"
	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_KeepsNewestFirstAndEvicts(t *testing.T) {
	ctx := context.Background()
	feed := NewFeed(2)

	require.NoError(t, feed.Deliver(ctx, notification.NewXPAwarded(10, "")))
	require.NoError(t, feed.Deliver(ctx, notification.NewLevelUp(2)))
	require.NoError(t, feed.Deliver(ctx, notification.NewBadgeEarned(progress.Badge{ID: "b", Title: "B"})))

	assert.Equal(t, 2, feed.Len())

	recent := feed.Recent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, notification.KindBadgeEarned, recent[0].Kind)
	assert.Equal(t, notification.KindLevelUp, recent[1].Kind)

	assert.Len(t, feed.Recent(1), 1)

	feed.Clear()
	assert.Empty(t, feed.Recent(10))
}

func TestNewFeed_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultFeedCapacity, NewFeed(0).capacity)
}

func TestLogSink_WritesMessage(t *testing.T) {
	var buf bytes.Buffer
	opts := logger.DefaultOptions()
	opts.Output = &buf
	sink := NewLogSink(logger.New(opts))

	require.NoError(t, sink.Deliver(context.Background(), notification.NewLevelUp(3)))

	assert.Contains(t, buf.String(), "Level up! Now level 3")
	assert.Contains(t, buf.String(), `"kind":"level_up"`)
}
