// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

// Package jobstream implements the Redis Streams-backed job queue for
// macct_repair and provision_host work: a consumer group on
// linbo:jobs, retry by re-appending the message with an incremented
// attempt, recovery of stuck deliveries via XAUTOCLAIM, and a
// dead-letter stream for jobs that exhaust their retries.
package jobstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openchami/linbo-dc/internal/model"
)

// Stream names and consumer group.
const (
	StreamJobs       = "linbo:jobs"
	StreamDLQ        = "linbo:jobs:dlq"
	ConsumerGroup    = "dc-workers"
	MaxRetries       = 3
	ClaimIdleMinutes = 5
	ClaimBatchSize   = 10
)

// streamClient is the slice of the go-redis API the queue touches,
// satisfied by *redis.Client; tests substitute a recording fake.
type streamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Queue wraps a Redis client with the job-stream operations.
type Queue struct {
	rdb      streamClient
	consumer string
}

// New constructs a Queue and idempotently bootstraps the consumer group.
func New(ctx context.Context, rdb *redis.Client, consumer string) (*Queue, error) {
	q := &Queue{rdb: rdb, consumer: consumer}
	err := rdb.XGroupCreateMkStream(ctx, StreamJobs, ConsumerGroup, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}
	return q, nil
}

func isBusyGroup(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}

// Enqueue appends one JobMessage to the job stream.
func (q *Queue) Enqueue(ctx context.Context, msg model.JobMessage) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshaling job message: %w", err)
	}
	id, err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamJobs,
		Values: map[string]any{"payload": data, "attempt": msg.Attempt},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("enqueueing job: %w", err)
	}
	return id, nil
}

// DedupKey derives the single-flight key used to avoid enqueuing a
// duplicate provision job for a host already in flight.
func DedupKey(host string) string {
	return "jobs:inflight:" + host
}

// CreateProvisionJob enqueues a provision_host job unless one for host is
// already in flight; the dedup flag is released by the worker when the
// job reaches a terminal state.
func (q *Queue) CreateProvisionJob(ctx context.Context, host, school, action string, ttl time.Duration) (string, bool, error) {
	ok, err := q.rdb.SetNX(ctx, DedupKey(host), "1", ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquiring provision dedup flag: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	msg := model.JobMessage{
		Type:      "provision_host",
		Host:      host,
		School:    school,
		Action:    action,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	id, err := q.Enqueue(ctx, msg)
	return id, true, err
}

// CreateMacctRepairJob enqueues a machine-account repair job for host.
func (q *Queue) CreateMacctRepairJob(ctx context.Context, host, school string) (string, error) {
	msg := model.JobMessage{
		Type:      "macct_repair",
		Host:      host,
		School:    school,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	return q.Enqueue(ctx, msg)
}

// ReleaseProvisionDedup clears the in-flight flag for host.
func (q *Queue) ReleaseProvisionDedup(ctx context.Context, host string) error {
	return q.rdb.Del(ctx, DedupKey(host)).Err()
}

// Job is one claimed message with its delivery metadata.
type Job struct {
	ID      string
	Message model.JobMessage
}

// ReadNext blocks up to block for the next unclaimed job for this
// consumer. A block of zero waits indefinitely; a negative block does not
// wait at all.
func (q *Queue) ReadNext(ctx context.Context, block time.Duration) ([]Job, error) {
	res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: q.consumer,
		Streams:  []string{StreamJobs, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading job stream: %w", err)
	}
	return decodeMessages(res)
}

func decodeMessages(res []redis.XStream) ([]Job, error) {
	var jobs []Job
	for _, stream := range res {
		for _, m := range stream.Messages {
			raw, ok := m.Values["payload"].(string)
			if !ok {
				continue
			}
			var msg model.JobMessage
			if err := json.Unmarshal([]byte(raw), &msg); err != nil {
				return jobs, fmt.Errorf("decoding job %s: %w", m.ID, err)
			}
			jobs = append(jobs, Job{ID: m.ID, Message: msg})
		}
	}
	return jobs, nil
}

// Ack acknowledges successful processing of a job.
func (q *Queue) Ack(ctx context.Context, id string) error {
	return q.rdb.XAck(ctx, StreamJobs, ConsumerGroup, id).Err()
}

// Retry re-enqueues msg with Attempt+1 and acks the original delivery,
// or routes it to the DLQ once the incremented attempt would exceed
// MaxRetries. The returned bool reports whether this call was terminal
// (routed to the DLQ) rather than requeued for another attempt; callers
// that hold a single-flight flag for the job must not release it until
// the job actually reaches a terminal state.
func (q *Queue) Retry(ctx context.Context, id string, msg model.JobMessage, lastErr error) (bool, error) {
	if msg.Attempt+1 > MaxRetries {
		if err := q.toDLQ(ctx, msg, lastErr); err != nil {
			return false, err
		}
		return true, q.Ack(ctx, id)
	}
	msg.Attempt++
	if _, err := q.Enqueue(ctx, msg); err != nil {
		return false, err
	}
	return false, q.Ack(ctx, id)
}

func (q *Queue) toDLQ(ctx context.Context, msg model.JobMessage, lastErr error) error {
	entry := model.DLQEntry{
		Type:        msg.Type,
		OperationID: msg.OperationID,
		Host:        msg.Host,
		School:      msg.School,
		Attempt:     msg.Attempt,
		LastError:   errString(lastErr),
		FailedAt:    time.Now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling dlq entry: %w", err)
	}
	if err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamDLQ,
		Values: map[string]any{"payload": data},
	}).Err(); err != nil {
		return fmt.Errorf("writing dlq entry: %w", err)
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ClaimStuckJobs auto-claims up to ClaimBatchSize pending messages idle
// for more than ClaimIdleMinutes, handing ownership to this consumer.
func (q *Queue) ClaimStuckJobs(ctx context.Context) ([]Job, error) {
	minIdle := time.Duration(ClaimIdleMinutes) * time.Minute
	messages, _, err := q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamJobs,
		Group:    ConsumerGroup,
		Consumer: q.consumer,
		MinIdle:  minIdle,
		Start:    "0",
		Count:    ClaimBatchSize,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("auto-claiming stuck jobs: %w", err)
	}
	return decodeMessages([]redis.XStream{{Stream: StreamJobs, Messages: messages}})
}
