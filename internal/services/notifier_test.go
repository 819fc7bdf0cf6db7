package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingNotifier struct{ err error }

func (f failingNotifier) Notify(context.Context, AutomationNotice) error { return f.err }

func TestMultiNotifier(t *testing.T) {
	rec := &recordingNotifier{}
	boom := errors.New("redis down")
	m := MultiNotifier{failingNotifier{boom}, nil, rec}

	err := m.Notify(context.Background(), AutomationNotice{BoardID: "b1", Message: "hi"})
	assert.ErrorIs(t, err, boom)
	require.Len(t, rec.all(), 1)
	assert.Equal(t, "hi", rec.all()[0].Message)

	assert.NoError(t, MultiNotifier{rec}.Notify(context.Background(), AutomationNotice{BoardID: "b1"}))
}

func TestEncodeNoticeDefaults(t *testing.T) {
	raw, err := encodeNotice(AutomationNotice{BoardID: "b1", RuleID: "r1", Message: "done"})
	require.NoError(t, err)
	var n AutomationNotice
	require.NoError(t, json.Unmarshal(raw, &n))
	assert.Equal(t, noticeType, n.Type)
	assert.Equal(t, "r1", n.RuleID)
	assert.False(t, n.Timestamp.IsZero())
}

func TestRedisNotifier_PublishError(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	n := NewRedisNotifier(client, "")
	assert.Equal(t, "taskboard:automation", n.channel)
	assert.Error(t, n.Notify(context.Background(), AutomationNotice{BoardID: "b1", Message: "x"}))
}
