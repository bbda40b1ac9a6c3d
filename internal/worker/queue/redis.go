package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/dmitrijs2005/keepsync/internal/worker/models"
	"github.com/redis/go-redis/v9"
)

const (
	fieldData         = "data"
	fieldName         = "name"
	fieldTimestamp    = "timestamp"
	fieldProcessedOn  = "processedOn"
	fieldFinishedOn   = "finishedOn"
	fieldFailedReason = "failedReason"
)

// RedisStore keeps jobs under <prefix>:<queue>:*. The waiting list is
// "wait"; "active", "completed" and "failed" are sorted sets scored by the
// transition time in milliseconds. Job records are either Bull hashes with a
// JSON "data" field or JSON strings of the form {"data": {...}}.
type RedisStore struct {
	Client *redis.Client
	prefix string
	name   string
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, prefix, name string) *RedisStore {
	return &RedisStore{Client: client, prefix: prefix, name: name, now: time.Now}
}

// NewRedisStoreFromURL parses a redis:// URL and builds the store.
func NewRedisStoreFromURL(url, prefix, name string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opt), prefix, name), nil
}

func (s *RedisStore) Close() error {
	return s.Client.Close()
}

func (s *RedisStore) key(suffix string) string {
	return s.prefix + ":" + s.name + ":" + suffix
}

func (s *RedisStore) nowMs() int64 {
	return s.now().UnixMilli()
}

func (s *RedisStore) ClaimNext(ctx context.Context, timeout time.Duration) (*models.Job, error) {
	res, err := s.Client.BRPop(ctx, timeout, s.key("wait")).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap("claim", err)
	}

	// res is [list key, id]
	id := res[1]

	job, err := s.load(ctx, id)
	if errors.Is(err, ErrMalformedJob) {
		if ferr := s.MarkFailed(ctx, id, err.Error()); ferr != nil {
			return nil, errors.Join(err, ferr)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	job.State = models.JobWaiting
	return job, nil
}

func (s *RedisStore) MarkActive(ctx context.Context, id string) error {
	ts := s.nowMs()
	return s.transition(ctx, "mark active", id, func(pipe redis.Pipeliner) {
		pipe.ZAdd(ctx, s.key("active"), redis.Z{Score: float64(ts), Member: id})
	}, map[string]any{fieldProcessedOn: ts})
}

func (s *RedisStore) MarkCompleted(ctx context.Context, id string) error {
	ts := s.nowMs()
	return s.transition(ctx, "mark completed", id, func(pipe redis.Pipeliner) {
		pipe.ZRem(ctx, s.key("active"), id)
		pipe.ZAdd(ctx, s.key("completed"), redis.Z{Score: float64(ts), Member: id})
	}, map[string]any{fieldFinishedOn: ts})
}

func (s *RedisStore) MarkFailed(ctx context.Context, id, reason string) error {
	ts := s.nowMs()
	return s.transition(ctx, "mark failed", id, func(pipe redis.Pipeliner) {
		pipe.ZRem(ctx, s.key("active"), id)
		pipe.ZAdd(ctx, s.key("failed"), redis.Z{Score: float64(ts), Member: id})
	}, map[string]any{fieldFinishedOn: ts, fieldFailedReason: reason})
}

// transition applies the set moves and the record stamps in one MULTI/EXEC.
func (s *RedisStore) transition(ctx context.Context, op, id string, moves func(redis.Pipeliner), stamps map[string]any) error {
	jobKey := s.key(id)

	kind, err := s.Client.Type(ctx, jobKey).Result()
	if err != nil {
		return s.wrap(op, err)
	}

	var merged []byte
	if kind == "string" {
		merged, err = s.mergeStringRecord(ctx, jobKey, stamps)
		switch {
		case errors.Is(err, ErrMalformedJob):
			// the record is left as is, only the sets move
			kind = ""
		case err != nil:
			return err
		}
	}

	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		moves(pipe)
		switch kind {
		case "hash":
			pipe.HSet(ctx, jobKey, stamps)
		case "string":
			pipe.Set(ctx, jobKey, merged, redis.KeepTTL)
		}
		return nil
	})
	if err != nil {
		return s.wrap(op, err)
	}
	return nil
}

func (s *RedisStore) mergeStringRecord(ctx context.Context, jobKey string, stamps map[string]any) ([]byte, error) {
	raw, err := s.Client.Get(ctx, jobKey).Bytes()
	if err != nil {
		return nil, s.wrap("read job", err)
	}
	record := map[string]any{}
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode job %s: %w: %w", jobKey, ErrMalformedJob, err)
	}
	for k, v := range stamps {
		record[k] = v
	}
	return json.Marshal(record)
}

// load reads and decodes the job record. A missing record yields (nil, nil).
func (s *RedisStore) load(ctx context.Context, id string) (*models.Job, error) {
	jobKey := s.key(id)

	kind, err := s.Client.Type(ctx, jobKey).Result()
	if err != nil {
		return nil, s.wrap("read job", err)
	}

	var data any
	var name string

	switch kind {
	case "none":
		return nil, nil
	case "hash":
		fields, err := s.Client.HGetAll(ctx, jobKey).Result()
		if err != nil {
			return nil, s.wrap("read job", err)
		}
		raw, ok := fields[fieldData]
		if !ok {
			return nil, nil
		}
		data = raw
		name = fields[fieldName]
	case "string":
		raw, err := s.Client.Get(ctx, jobKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, s.wrap("read job", err)
		}
		var envelope struct {
			Data any    `json:"data"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, fmt.Errorf("decode job %s: %w: %w", id, ErrMalformedJob, err)
		}
		data = envelope.Data
		name = envelope.Name
	default:
		return nil, fmt.Errorf("decode job %s: %w: unexpected record type %q", id, ErrMalformedJob, kind)
	}

	payload, err := decodeData(data)
	if err != nil {
		return nil, fmt.Errorf("decode job %s: %w: %w", id, ErrMalformedJob, err)
	}

	job := &models.Job{ID: id, Payload: payload}
	if action, ok := job.String("action"); ok {
		job.Action = models.Action(action)
	} else {
		job.Action = models.Action(name)
	}
	return job, nil
}

// decodeData accepts the payload as an object or as a JSON-encoded string.
func decodeData(data any) (map[string]any, error) {
	switch v := data.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case string:
		out := map[string]any{}
		if v == "" {
			return out, nil
		}
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected data type %T", data)
	}
}

// Enqueue stores a Bull-style hash record and pushes id onto the waiting list.
func (s *RedisStore) Enqueue(ctx context.Context, id string, action models.Action, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["action"]; !ok {
		data["action"] = string(action)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(id), map[string]any{
			fieldName:      string(action),
			fieldData:      string(raw),
			fieldTimestamp: s.nowMs(),
		})
		pipe.LPush(ctx, s.key("wait"), id)
		return nil
	})
	if err != nil {
		return s.wrap("enqueue", err)
	}
	return nil
}

// Inspect reports the recorded state of a job. Terminal sets take priority.
func (s *RedisStore) Inspect(ctx context.Context, id string) (*Record, error) {
	rec := &Record{ID: id}

	for _, st := range []models.JobState{models.JobFailed, models.JobCompleted, models.JobActive} {
		_, err := s.Client.ZScore(ctx, s.key(string(st)), id).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, s.wrap("inspect", err)
		}
		rec.State = st
		break
	}

	if rec.State == "" {
		_, err := s.Client.LPos(ctx, s.key("wait"), id, redis.LPosArgs{}).Result()
		switch {
		case err == nil:
			rec.State = models.JobWaiting
		case !errors.Is(err, redis.Nil):
			return nil, s.wrap("inspect", err)
		}
	}

	stamps, err := s.readStamps(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.FailedReason = stamps[fieldFailedReason]
	rec.ProcessedOn = msTime(stamps[fieldProcessedOn])
	rec.FinishedOn = msTime(stamps[fieldFinishedOn])

	return rec, nil
}

func (s *RedisStore) readStamps(ctx context.Context, id string) (map[string]string, error) {
	jobKey := s.key(id)
	kind, err := s.Client.Type(ctx, jobKey).Result()
	if err != nil {
		return nil, s.wrap("inspect", err)
	}

	out := map[string]string{}
	switch kind {
	case "hash":
		fields, err := s.Client.HMGet(ctx, jobKey, fieldProcessedOn, fieldFinishedOn, fieldFailedReason).Result()
		if err != nil {
			return nil, s.wrap("inspect", err)
		}
		for i, name := range []string{fieldProcessedOn, fieldFinishedOn, fieldFailedReason} {
			if v, ok := fields[i].(string); ok {
				out[name] = v
			}
		}
	case "string":
		raw, err := s.Client.Get(ctx, jobKey).Bytes()
		if err != nil {
			return nil, s.wrap("inspect", err)
		}
		record := map[string]any{}
		if err := json.Unmarshal(raw, &record); err != nil {
			// malformed records carry no stamps
			return out, nil
		}
		for _, name := range []string{fieldProcessedOn, fieldFinishedOn, fieldFailedReason} {
			switch v := record[name].(type) {
			case string:
				out[name] = v
			case float64:
				out[name] = strconv.FormatInt(int64(v), 10)
			}
		}
	}
	return out, nil
}

func msTime(v string) *time.Time {
	if v == "" {
		return nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	t := time.UnixMilli(ms)
	return &t
}

func (s *RedisStore) wrap(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isConnectionError(err) {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConnectionError(err error) bool {
	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, redis.ErrClosed),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	return false
}
