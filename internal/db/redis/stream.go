package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/mmdex/internal/db"
)

// XAddMulti appends entries with auto-generated ids in a single DoMulti round-trip.
// When no command reached the server (connection or context failure) the whole
// batch is reported as one error; otherwise each entry carries its own outcome.
func (s *Store) XAddMulti(
	ctx context.Context, stream string, entries []map[string]string,
) ([]db.AddResult, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(entries))
	for i, fields := range entries {
		cmds[i] = s.xaddCmd(stream, fields)
	}

	results := s.client.DoMulti(ctx, cmds...)
	out := make([]db.AddResult, len(results))
	transportFailures := 0
	var lastErr error
	for i, res := range results {
		id, err := res.ToString()
		if err != nil {
			if _, isServer := rueidis.IsRedisErr(err); !isServer {
				transportFailures++
				lastErr = err
			}
			out[i] = db.AddResult{Err: &db.Error{Op: db.OpXAdd, Err: err}}
			continue
		}
		out[i] = db.AddResult{ID: id}
	}
	if transportFailures == len(results) {
		return nil, &db.Error{Op: db.OpXAdd, Err: lastErr}
	}
	return out, nil
}

// XAdd appends a single entry and returns its id.
func (s *Store) XAdd(ctx context.Context, stream string, fields map[string]string) (string, error) {
	id, err := s.do(ctx, s.xaddCmd(stream, fields)).ToString()
	if err != nil {
		return "", &db.Error{Op: db.OpXAdd, Err: err}
	}
	return id, nil
}

func (s *Store) xaddCmd(stream string, fields map[string]string) rueidis.Completed {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, 1+2*len(fields))
	args = append(args, "*")
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	return s.b().Arbitrary("XADD").Keys(stream).Args(args...).Build()
}

// XGroupCreate creates the consumer group at the stream start, creating the stream if needed.
func (s *Store) XGroupCreate(ctx context.Context, stream, group string) error {
	cmd := s.b().Arbitrary("XGROUP", "CREATE").Keys(stream).Args(group, "0", "MKSTREAM").Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "BUSYGROUP") {
			return nil
		}
		return &db.Error{Op: db.OpXGroupCreate, Err: err}
	}
	return nil
}

// XReadGroup reads at most one never-delivered entry for consumer.
func (s *Store) XReadGroup(
	ctx context.Context, stream, group, consumer string, block time.Duration,
) (*db.StreamEntry, error) {
	cmd := s.b().Arbitrary("XREADGROUP", "GROUP", group, consumer,
		"COUNT", "1", "BLOCK", strconv.FormatInt(block.Milliseconds(), 10), "STREAMS").
		Keys(stream).Args(">").Blocking()

	streams, err := s.do(ctx, cmd).AsXRead()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, &db.Error{Op: db.OpXReadGroup, Err: err}
	}
	entries := streams[stream]
	if len(entries) == 0 {
		return nil, nil
	}
	return &db.StreamEntry{ID: entries[0].ID, Fields: entries[0].FieldValues}, nil
}

// XAck acknowledges entries for the group.
func (s *Store) XAck(ctx context.Context, stream, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	cmd := s.b().Arbitrary("XACK").Keys(stream).Args(append([]string{group}, ids...)...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpXAck, Err: err}
	}
	return nil
}

// XPendingIdle lists up to count pending entries idle for at least minIdle.
func (s *Store) XPendingIdle(
	ctx context.Context, stream, group string, minIdle time.Duration, count int,
) ([]db.PendingEntry, error) {
	cmd := s.b().Arbitrary("XPENDING").Keys(stream).Args(
		group, "IDLE", strconv.FormatInt(minIdle.Milliseconds(), 10), "-", "+", strconv.Itoa(count),
	).Build()

	rows, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, &db.Error{Op: db.OpXPending, Err: err}
	}

	out := make([]db.PendingEntry, 0, len(rows))
	for _, row := range rows {
		p, err := parsePending(row)
		if err != nil {
			return nil, &db.Error{Op: db.OpXPending, Err: err}
		}
		out = append(out, p)
	}
	return out, nil
}

func parsePending(row rueidis.RedisMessage) (db.PendingEntry, error) {
	cols, err := row.ToArray()
	if err != nil {
		return db.PendingEntry{}, err
	}
	if len(cols) < 4 {
		return db.PendingEntry{}, errors.New("malformed pending entry")
	}
	id, err := cols[0].ToString()
	if err != nil {
		return db.PendingEntry{}, fmt.Errorf("pending id: %w", err)
	}
	consumer, err := cols[1].ToString()
	if err != nil {
		return db.PendingEntry{}, fmt.Errorf("pending consumer: %w", err)
	}
	idle, err := cols[2].AsInt64()
	if err != nil {
		return db.PendingEntry{}, fmt.Errorf("pending idle: %w", err)
	}
	deliveries, err := cols[3].AsInt64()
	if err != nil {
		return db.PendingEntry{}, fmt.Errorf("pending deliveries: %w", err)
	}
	return db.PendingEntry{
		ID: id, Consumer: consumer, Idle: time.Duration(idle) * time.Millisecond, Deliveries: deliveries,
	}, nil
}

// XClaim transfers ownership of idle pending entries to consumer and returns them.
// Claiming increments the delivery counter of each entry.
func (s *Store) XClaim(
	ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string,
) ([]db.StreamEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := append([]string{group, consumer, strconv.FormatInt(minIdle.Milliseconds(), 10)}, ids...)
	cmd := s.b().Arbitrary("XCLAIM").Keys(stream).Args(args...).Build()

	entries, err := s.do(ctx, cmd).AsXRange()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, &db.Error{Op: db.OpXClaim, Err: err}
	}
	out := make([]db.StreamEntry, 0, len(entries))
	for _, e := range entries {
		// Entries trimmed from the stream come back with nil fields.
		if e.FieldValues == nil {
			continue
		}
		out = append(out, db.StreamEntry{ID: e.ID, Fields: e.FieldValues})
	}
	return out, nil
}
