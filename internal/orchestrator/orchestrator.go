// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openchami/linbo-dc/internal/eventbus"
	"github.com/openchami/linbo-dc/internal/model"
	"github.com/openchami/linbo-dc/internal/store"
	"github.com/openchami/linbo-dc/internal/fsutil"
)

// MaxWorkers bounds how many hosts are contacted over SSH concurrently
// within one Operation.
const MaxWorkers = 16

// OperationTTL is how long a completed Operation's record survives in
// the store before lazy cleanup drops it from listings.
const OperationTTL = 24 * time.Hour

// runningOp tracks one in-flight Operation: its live record (guarded by
// mu, shared with the run() goroutine), the context cancel func, and a
// guard so "operation.cancelling" is published exactly once.
type runningOp struct {
	op           *model.Operation
	mu           sync.Mutex
	cancel       context.CancelFunc
	cancelPubbed bool
}

// Orchestrator creates and runs Operations.
type Orchestrator struct {
	store    *store.Store
	bus      *eventbus.Bus
	sshCfg   SSHConfig
	linboDir string

	mu      sync.Mutex
	running map[string]*runningOp
}

// New constructs an Orchestrator.
func New(st *store.Store, bus *eventbus.Bus, sshCfg SSHConfig, linboDir string) *Orchestrator {
	return &Orchestrator{
		store:    st,
		bus:      bus,
		sshCfg:   sshCfg,
		linboDir: linboDir,
		running:  make(map[string]*runningOp),
	}
}

// StartOperation creates an Operation for opType against the resolved
// hosts, persists it, and runs it in the background.
func (o *Orchestrator) StartOperation(ctx context.Context, opType model.OperationType, commands string, hosts []model.Host) (*model.Operation, error) {
	steps, err := ParseCommands(commands)
	if err != nil {
		return nil, fmt.Errorf("invalid commands: %w", err)
	}

	op := &model.Operation{
		ID:          uuid.NewString(),
		Type:        opType,
		Status:      model.OpPending,
		TargetHosts: hostnames(hosts),
		Commands:    commands,
		Sessions:    make(map[string]*model.Session, len(hosts)),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	for _, h := range hosts {
		op.Sessions[h.Hostname] = &model.Session{Host: h.Hostname, Status: model.SessionQueued}
	}

	if err := o.persist(ctx, op); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	ro := &runningOp{op: op, cancel: cancel}
	o.mu.Lock()
	o.running[op.ID] = ro
	o.mu.Unlock()

	o.bus.Publish(eventbus.TopicOperationStarted, map[string]any{"operationId": op.ID})

	go o.run(runCtx, ro, steps, hosts)

	return op, nil
}

func hostnames(hosts []model.Host) []string {
	out := make([]string, len(hosts))
	for i, h := range hosts {
		out[i] = h.Hostname
	}
	return out
}

// run executes all sessions of op with a bounded worker pool: each
// worker pulls the next queued session from a shared queue, checks
// op.CancelRequested, and either executes it or flips it straight to
// cancelled. A cancelled operation never
// aborts an in-flight SSH command mid-run; only queued sessions are
// affected.
func (o *Orchestrator) run(ctx context.Context, ro *runningOp, steps []Step, hosts []model.Host) {
	op := ro.op
	defer func() {
		o.mu.Lock()
		delete(o.running, op.ID)
		o.mu.Unlock()
		ro.cancel()
	}()

	ro.mu.Lock()
	op.Status = model.OpRunning
	ro.mu.Unlock()
	_ = o.persist(context.Background(), op)

	queue := make(chan model.Host, len(hosts))
	for _, h := range hosts {
		queue <- h
	}
	close(queue)

	workers := MaxWorkers
	if len(hosts) < workers {
		workers = len(hosts)
	}
	if workers == 0 {
		workers = 1
	}

	cmdLine := RenderCommandFile(steps)

	var wg sync.WaitGroup
	var failedMu sync.Mutex
	anyFailed, anyCompleted := false, false

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for h := range queue {
				ro.mu.Lock()
				sess := op.Sessions[h.Hostname]
				if op.CancelRequested {
					sess.Status = model.SessionCancelled
					ro.mu.Unlock()
					continue
				}
				sess.Status = model.SessionRunning
				sess.StartedAt = time.Now()
				ro.mu.Unlock()

				stdout, stderr, exitCode, err := RunCommand(ctx, h.Hostname, cmdLine, o.sshCfg)

				ro.mu.Lock()
				sess.Stdout = stdout
				sess.Stderr = stderr
				sess.ExitCode = exitCode
				sess.EndedAt = time.Now()
				switch {
				case err == nil && exitCode == 0:
					sess.Status = model.SessionCompleted
					failedMu.Lock()
					anyCompleted = true
					failedMu.Unlock()
				default:
					sess.Status = model.SessionFailed
					failedMu.Lock()
					anyFailed = true
					failedMu.Unlock()
				}
				ro.mu.Unlock()
			}
		}()
	}
	wg.Wait()

	ro.mu.Lock()
	switch {
	case op.CancelRequested && !anyCompleted:
		op.Status = model.OpCancelled
		ro.mu.Unlock()
		o.bus.Publish(eventbus.TopicOperationCancelled, map[string]any{"operationId": op.ID})
	case anyFailed && anyCompleted:
		op.Status = model.OpCompletedWithErrors
		ro.mu.Unlock()
		o.bus.Publish(eventbus.TopicOperationCompleted, map[string]any{"operationId": op.ID, "status": op.Status})
	case anyFailed:
		op.Status = model.OpFailed
		ro.mu.Unlock()
		o.bus.Publish(eventbus.TopicOperationCompleted, map[string]any{"operationId": op.ID, "status": op.Status})
	default:
		op.Status = model.OpCompleted
		ro.mu.Unlock()
		o.bus.Publish(eventbus.TopicOperationCompleted, map[string]any{"operationId": op.ID, "status": op.Status})
	}
	op.CompletedAt = time.Now()
	op.UpdatedAt = op.CompletedAt
	_ = o.persist(context.Background(), op)
}

// CancelOperation requests cooperative cancellation of Operation id
//: not-found and terminal-status
// operations are rejected, every currently-queued session is
// transitioned straight to cancelled, running sessions are left alone,
// and "operation.cancelling" fires exactly once.
func (o *Orchestrator) CancelOperation(ctx context.Context, id string) error {
	o.mu.Lock()
	ro, ok := o.running[id]
	o.mu.Unlock()

	if !ok {
		op, err := o.GetOperation(ctx, id)
		if err != nil {
			return fmt.Errorf("operation %s not found", id)
		}
		if op.Status.IsTerminal() {
			return fmt.Errorf("operation %s has already finished", id)
		}
		// Not in the live-run map (process restart or race with run()'s
		// own cleanup) but not terminal either: apply the transition
		// directly to the persisted record.
		op.CancelRequested = true
		for _, sess := range op.Sessions {
			if sess.Status == model.SessionQueued {
				sess.Status = model.SessionCancelled
			}
		}
		op.UpdatedAt = time.Now()
		if err := o.persist(ctx, op); err != nil {
			return err
		}
		o.bus.Publish(eventbus.TopicOperationCancelling, map[string]any{"operationId": id})
		return nil
	}

	ro.mu.Lock()
	if ro.op.Status.IsTerminal() {
		ro.mu.Unlock()
		return fmt.Errorf("operation %s has already finished", id)
	}
	ro.op.CancelRequested = true
	for _, sess := range ro.op.Sessions {
		if sess.Status == model.SessionQueued {
			sess.Status = model.SessionCancelled
		}
	}
	ro.op.Status = model.OpCancelling
	alreadyPubbed := ro.cancelPubbed
	ro.cancelPubbed = true
	ro.mu.Unlock()

	_ = o.persist(ctx, ro.op)
	if !alreadyPubbed {
		o.bus.Publish(eventbus.TopicOperationCancelling, map[string]any{"operationId": id})
	}
	return nil
}

// ScheduleOnbootCommands writes a .cmd file a host's LINBO client reads
// and executes on its next boot.
// noAuto/disableGUI are emitted as flags ahead of the normalized command
// string.
func (o *Orchestrator) ScheduleOnbootCommands(host, commands string, noAuto, disableGUI bool) error {
	steps, err := ParseCommands(commands)
	if err != nil {
		return fmt.Errorf("invalid commands: %w", err)
	}
	path := filepath.Join(o.linboDir, "linbocmd", host+".cmd")
	body := RenderOnbootCommand(steps, noAuto, disableGUI) + "\n"
	if err := fsutil.WriteFileAtomic(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("writing onboot command file: %w", err)
	}
	o.bus.Publish(eventbus.TopicOnbootScheduled, map[string]any{"host": host})
	return nil
}

// CancelOnbootCommands removes a previously scheduled .cmd file.
func (o *Orchestrator) CancelOnbootCommands(host string) error {
	path := filepath.Join(o.linboDir, "linbocmd", host+".cmd")
	if err := removeIfExists(path); err != nil {
		return fmt.Errorf("removing onboot command file: %w", err)
	}
	o.bus.Publish(eventbus.TopicOnbootCancelled, map[string]any{"host": host})
	return nil
}

func (o *Orchestrator) persist(ctx context.Context, op *model.Operation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshaling operation %s: %w", op.ID, err)
	}
	if err := o.store.SetString(ctx, store.OperationKey(op.ID), string(data)); err != nil {
		return fmt.Errorf("persisting operation %s: %w", op.ID, err)
	}
	if err := o.store.SAdd(ctx, store.OperationIndexKey(), op.ID); err != nil {
		return fmt.Errorf("indexing operation %s: %w", op.ID, err)
	}
	if op.Status.IsTerminal() {
		if err := o.store.Expire(ctx, store.OperationKey(op.ID), OperationTTL); err != nil {
			return fmt.Errorf("setting ttl on operation %s: %w", op.ID, err)
		}
	}
	return nil
}

// GetOperation looks up one Operation by id.
func (o *Orchestrator) GetOperation(ctx context.Context, id string) (*model.Operation, error) {
	data, ok, err := o.store.GetString(ctx, store.OperationKey(id))
	if err != nil {
		return nil, fmt.Errorf("reading operation %s: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("operation %s not found", id)
	}
	var op model.Operation
	if err := json.Unmarshal([]byte(data), &op); err != nil {
		return nil, fmt.Errorf("decoding operation %s: %w", id, err)
	}
	return &op, nil
}

// ListOperations returns every still-live Operation, lazily dropping
// index entries whose record has already expired.
func (o *Orchestrator) ListOperations(ctx context.Context) ([]*model.Operation, error) {
	ids, err := o.store.SMembers(ctx, store.OperationIndexKey())
	if err != nil {
		return nil, fmt.Errorf("listing operation index: %w", err)
	}
	ops := make([]*model.Operation, 0, len(ids))
	for _, id := range ids {
		exists, err := o.store.Exists(ctx, store.OperationKey(id))
		if err != nil {
			return nil, fmt.Errorf("checking operation %s: %w", id, err)
		}
		if !exists {
			_ = o.store.SRem(ctx, store.OperationIndexKey(), id)
			continue
		}
		op, err := o.GetOperation(ctx, id)
		if err != nil {
			continue
		}
		ops = append(ops, op)
	}
	return ops, nil
}
