package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	ctx := context.Background()

	rec.Notify(ctx, Notification{Level: LevelSuccess, Message: "Comment updated"})
	rec.Notify(ctx, Notification{Level: LevelError, Message: "Could not update comment"})
	rec.Notify(ctx, Notification{Level: LevelSuccess, Message: "Vote recorded"})

	assert.Len(t, rec.All(), 3)
	assert.Equal(t, 2, rec.Count(LevelSuccess))
	assert.Equal(t, 1, rec.Count(LevelError))
	assert.Equal(t, 0, rec.Count(LevelInfo))
}

func TestMulti(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	sink := Multi(a, nil, b)

	sink.Notify(context.Background(), Notification{Level: LevelInfo, Message: "hello"})

	assert.Len(t, a.All(), 1)
	assert.Len(t, b.All(), 1)
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	sink.Notify(context.Background(), Notification{Level: LevelError, Message: "Failed to vote", Source: "vote"})
	sink.Notify(context.Background(), Notification{Level: LevelSuccess, Message: "Voted", Source: "vote"})

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "Failed to vote", entries[0].Message)
		assert.Equal(t, zap.WarnLevel, entries[0].Level)
		assert.Equal(t, zap.InfoLevel, entries[1].Level)
	}
}
