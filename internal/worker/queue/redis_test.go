package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/keepsync/internal/worker/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisStore(client, "bull", "keep-sync")
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	return s, mr
}

func TestClaimNext_HashRecord(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Enqueue(ctx, "j1", models.ActionSync, map[string]any{"userId": "u1"}))

	job, err := s.ClaimNext(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)

	assert.Equal(t, "j1", job.ID)
	assert.Equal(t, models.ActionSync, job.Action)
	assert.Equal(t, "u1", job.UserID())
	assert.Equal(t, models.JobWaiting, job.State)
}

func TestClaimNext_StringRecord(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	raw, _ := json.Marshal(map[string]any{
		"data": map[string]any{"action": "exchange-token", "userId": "u2", "email": "a@b.c", "oauthToken": "t"},
	})
	require.NoError(t, mr.Set("bull:keep-sync:j2", string(raw)))
	_, err := mr.Lpush("bull:keep-sync:wait", "j2")
	require.NoError(t, err)

	job, err := s.ClaimNext(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)

	assert.Equal(t, models.ActionExchangeToken, job.Action)
	email, ok := job.String("email")
	assert.True(t, ok)
	assert.Equal(t, "a@b.c", email)
}

func TestClaimNext_FallsBackToJobName(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	mr.HSet("bull:keep-sync:j3", "name", "sync", "data", `{"userId":"u3"}`)
	_, err := mr.Lpush("bull:keep-sync:wait", "j3")
	require.NoError(t, err)

	job, err := s.ClaimNext(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, models.ActionSync, job.Action)
}

func TestClaimNext_MissingRecordIsSkipped(t *testing.T) {
	s, mr := newTestStore(t)

	_, err := mr.Lpush("bull:keep-sync:wait", "ghost")
	require.NoError(t, err)

	job, err := s.ClaimNext(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, job)

	// The id has been consumed.
	assert.False(t, mr.Exists("bull:keep-sync:wait"))
}

func TestClaimNext_FIFO(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Enqueue(ctx, "first", models.ActionSync, map[string]any{"userId": "u"}))
	require.NoError(t, s.Enqueue(ctx, "second", models.ActionSync, map[string]any{"userId": "u"}))

	job, err := s.ClaimNext(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "first", job.ID)

	job, err = s.ClaimNext(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "second", job.ID)
}

func TestClaimNext_BadData(t *testing.T) {
	s, mr := newTestStore(t)

	mr.HSet("bull:keep-sync:bad", "data", "{not json")
	_, err := mr.Lpush("bull:keep-sync:wait", "bad")
	require.NoError(t, err)

	ctx := context.Background()
	job, err := s.ClaimNext(ctx, time.Second)
	require.ErrorIs(t, err, ErrMalformedJob)
	assert.Nil(t, job)
	assert.NotErrorIs(t, err, ErrUnavailable)

	rec, err := s.Inspect(ctx, "bad")
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, rec.State)
	assert.Contains(t, rec.FailedReason, "decode job")
	require.NotNil(t, rec.FinishedOn)
	assert.Equal(t, s.now().UnixMilli(), rec.FinishedOn.UnixMilli())
}

func TestClaimNext_BadStringRecordMovedToFailed(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("bull:keep-sync:broken", "{truncated"))
	_, err := mr.Lpush("bull:keep-sync:wait", "broken")
	require.NoError(t, err)

	job, err := s.ClaimNext(ctx, time.Second)
	require.ErrorIs(t, err, ErrMalformedJob)
	assert.Nil(t, job)

	rec, err := s.Inspect(ctx, "broken")
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, rec.State)
	assert.Empty(t, rec.FailedReason)

	raw, err := mr.Get("bull:keep-sync:broken")
	require.NoError(t, err)
	assert.Equal(t, "{truncated", raw)
}

func TestTransitions_HashRecord(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Enqueue(ctx, "j1", models.ActionSync, map[string]any{"userId": "u1"}))
	_, err := s.ClaimNext(ctx, time.Second)
	require.NoError(t, err)

	require.NoError(t, s.MarkActive(ctx, "j1"))
	rec, err := s.Inspect(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobActive, rec.State)
	require.NotNil(t, rec.ProcessedOn)
	assert.Equal(t, s.now().UnixMilli(), rec.ProcessedOn.UnixMilli())
	assert.Nil(t, rec.FinishedOn)

	require.NoError(t, s.MarkFailed(ctx, "j1", "Rate limit exceeded"))
	rec, err = s.Inspect(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, rec.State)
	assert.Equal(t, "Rate limit exceeded", rec.FailedReason)
	require.NotNil(t, rec.FinishedOn)

	members, err := mr.ZMembers("bull:keep-sync:active")
	if err == nil {
		assert.NotContains(t, members, "j1")
	}
	assert.Equal(t, "Rate limit exceeded", mr.HGet("bull:keep-sync:j1", "failedReason"))
}

func TestTransitions_StringRecord(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("bull:keep-sync:j9", `{"data":{"action":"sync","userId":"u9"}}`))

	require.NoError(t, s.MarkActive(ctx, "j9"))
	require.NoError(t, s.MarkCompleted(ctx, "j9"))

	rec, err := s.Inspect(ctx, "j9")
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, rec.State)
	require.NotNil(t, rec.ProcessedOn)
	require.NotNil(t, rec.FinishedOn)
	assert.Empty(t, rec.FailedReason)

	raw, err := mr.Get("bull:keep-sync:j9")
	require.NoError(t, err)
	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &record))
	assert.Contains(t, record, "data")
	assert.Contains(t, record, "finishedOn")
}

func TestTransitions_MissingRecordStillMovesSets(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.MarkActive(ctx, "gone"))
	require.NoError(t, s.MarkCompleted(ctx, "gone"))

	members, err := mr.ZMembers("bull:keep-sync:completed")
	require.NoError(t, err)
	assert.Equal(t, []string{"gone"}, members)
	assert.False(t, mr.Exists("bull:keep-sync:gone"))
}

func TestInspect_Waiting(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Enqueue(ctx, "w1", models.ActionSync, nil))

	rec, err := s.Inspect(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, models.JobWaiting, rec.State)
	assert.Nil(t, rec.ProcessedOn)
}

func TestUnavailable(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()

	_, err := s.ClaimNext(context.Background(), time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	err = s.MarkCompleted(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClaimNext_ContextCanceled(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ClaimNext(ctx, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestNewRedisStoreFromURL(t *testing.T) {
	s, err := NewRedisStoreFromURL("redis://localhost:6390/2", "bull", "keep-sync")
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "bull:keep-sync:wait", s.key("wait"))
	assert.Equal(t, 2, s.Client.Options().DB)

	_, err = NewRedisStoreFromURL("http://nope", "bull", "q")
	assert.Error(t, err)
}
