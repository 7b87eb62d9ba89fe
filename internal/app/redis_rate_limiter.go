package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ThrottleDecision is the outcome of one submission-limiter consultation.
type ThrottleDecision struct {
	Allowed    bool
	Count      int
	RetryAfter time.Duration
}

// SubmissionLimiter throttles batch submissions at the service edge. It is an
// operational guard against hot-looping callers and is independent of the
// velocity tracker, which is part of the engine's settlement semantics.
type SubmissionLimiter interface {
	ConsumeSubmission(ctx context.Context, subject string) (ThrottleDecision, error)
}

// submissionWindowScript counts a submission and reads the window's remaining
// lifetime in one round trip. The window key is created on first use and
// expires on its own.
var submissionWindowScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local remaining = redis.call("PTTL", KEYS[1])
if remaining < 0 then
  remaining = tonumber(ARGV[1])
end
return {hits, remaining}
`)

// RedisSubmissionLimiter is a fixed-window distributed limiter keyed per
// caller account. The limit and window length are fixed at construction.
type RedisSubmissionLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

func NewRedisSubmissionLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisSubmissionLimiter {
	p := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if p == "" {
		p = "batchpay:rate_limit"
	}
	if window <= 0 {
		window = time.Minute
	}

	return &RedisSubmissionLimiter{
		client: client,
		prefix: p,
		limit:  limit,
		window: window,
	}
}

// ConsumeSubmission counts one submission for subject and decides whether it
// may proceed. A limiter without a client or with a non-positive limit allows
// everything.
func (r *RedisSubmissionLimiter) ConsumeSubmission(ctx context.Context, subject string) (ThrottleDecision, error) {
	subject = strings.TrimSpace(subject)
	if r == nil || r.client == nil || r.limit <= 0 || subject == "" {
		return ThrottleDecision{Allowed: true}, nil
	}

	windowMs := r.window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := r.prefix + ":batch_submit:" + subject
	raw, err := submissionWindowScript.Run(ctx, r.client, []string{key}, windowMs).Result()
	if err != nil {
		return ThrottleDecision{}, err
	}

	hits, remainingMs, err := parseWindowReply(raw)
	if err != nil {
		return ThrottleDecision{}, err
	}
	if remainingMs < 0 {
		remainingMs = windowMs
	}

	retryAfter := time.Duration(remainingMs) * time.Millisecond
	if retryAfter < time.Second {
		retryAfter = time.Second
	}

	return ThrottleDecision{
		Allowed:    hits <= int64(r.limit),
		Count:      int(hits),
		RetryAfter: retryAfter,
	}, nil
}

func parseWindowReply(raw interface{}) (hits int64, remainingMs int64, err error) {
	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected limiter reply shape: %T", raw)
	}
	hits, ok = values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected limiter hit count type: %T", values[0])
	}
	remainingMs, ok = values[1].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected limiter ttl type: %T", values[1])
	}
	return hits, remainingMs, nil
}
