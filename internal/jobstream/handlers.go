// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package jobstream

import (
	"context"
	"fmt"
	"log"

	"github.com/openchami/linbo-dc/internal/eventbus"
	"github.com/openchami/linbo-dc/internal/model"
)

// ProvisioningConfig gates whether provision_host jobs actually act, and
// whether they act for real or just log what they would do.
type ProvisioningConfig struct {
	Enabled bool
	DryRun  bool
}

// MacctRepairFunc performs the actual machine-account repair for a host,
// e.g. resetting a stale Samba/AD machine trust; it is injected so the
// handler stays testable without a directory-service dependency.
type MacctRepairFunc func(ctx context.Context, host, school string) error

// ProvisionFunc performs the actual host provisioning action.
type ProvisionFunc func(ctx context.Context, host, school, action string) error

// Worker drains jobs from a Queue and dispatches them to the registered
// handlers, retrying through Queue.Retry on failure.
type Worker struct {
	queue         *Queue
	bus           *eventbus.Bus
	logger        *log.Logger
	provisioning  ProvisioningConfig
	macctRepair   MacctRepairFunc
	provisionHost ProvisionFunc
}

// NewWorker constructs a Worker.
func NewWorker(q *Queue, bus *eventbus.Bus, logger *log.Logger, pcfg ProvisioningConfig, macctFn MacctRepairFunc, provisionFn ProvisionFunc) *Worker {
	if logger == nil {
		logger = log.New(log.Writer(), "jobstream: ", log.LstdFlags)
	}
	return &Worker{queue: q, bus: bus, logger: logger, provisioning: pcfg, macctRepair: macctFn, provisionHost: provisionFn}
}

// ProcessOne reads and handles the next available job, returning
// (false, nil) when none is currently available.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	jobs, err := w.queue.ReadNext(ctx, -1)
	if err != nil {
		return false, fmt.Errorf("reading next job: %w", err)
	}
	if len(jobs) == 0 {
		return false, nil
	}
	for _, j := range jobs {
		w.handle(ctx, j)
	}
	return true, nil
}

func (w *Worker) handle(ctx context.Context, j Job) {
	var err error
	switch j.Message.Type {
	case "macct_repair":
		err = w.handleMacctRepair(ctx, j.Message)
	case "provision_host":
		err = w.handleProvisionHost(ctx, j.Message)
	default:
		err = fmt.Errorf("unknown job type: %s", j.Message.Type)
	}

	if err != nil {
		w.logger.Printf("job %s (%s) for host %s failed: %v", j.ID, j.Message.Type, j.Message.Host, err)
		terminal, retryErr := w.queue.Retry(ctx, j.ID, j.Message, err)
		if retryErr != nil {
			w.logger.Printf("retrying job %s: %v", j.ID, retryErr)
		}
		if terminal && j.Message.Type == "provision_host" {
			if relErr := w.queue.ReleaseProvisionDedup(ctx, j.Message.Host); relErr != nil {
				w.logger.Printf("releasing provision dedup for %s: %v", j.Message.Host, relErr)
			}
		}
		return
	}
	if ackErr := w.queue.Ack(ctx, j.ID); ackErr != nil {
		w.logger.Printf("acking job %s: %v", j.ID, ackErr)
	}
}

func (w *Worker) handleMacctRepair(ctx context.Context, msg model.JobMessage) error {
	w.bus.Publish(eventbus.TopicMacctJobUpdated, map[string]any{"host": msg.Host, "status": "running"})
	if w.macctRepair == nil {
		return fmt.Errorf("no macct repair handler configured")
	}
	if err := w.macctRepair(ctx, msg.Host, msg.School); err != nil {
		w.bus.Publish(eventbus.TopicMacctJobFailed, map[string]any{"host": msg.Host})
		return err
	}
	w.bus.Publish(eventbus.TopicMacctJobUpdated, map[string]any{"host": msg.Host, "status": "completed"})
	return nil
}

// handleProvisionHost releases the single-flight dedup flag only on
// outcomes it resolves directly (skipped, dry-run, success): a failure
// here may still be retried by the caller, and the flag must stay held
// until the job reaches an actual terminal state.
func (w *Worker) handleProvisionHost(ctx context.Context, msg model.JobMessage) error {
	if !w.provisioning.Enabled {
		_ = w.queue.ReleaseProvisionDedup(ctx, msg.Host)
		w.bus.Publish(eventbus.TopicProvisionJobUpdated, map[string]any{"host": msg.Host, "status": "skipped-disabled"})
		return nil
	}
	if w.provisioning.DryRun {
		_ = w.queue.ReleaseProvisionDedup(ctx, msg.Host)
		w.logger.Printf("dry-run: would provision host %s (action=%s)", msg.Host, msg.Action)
		w.bus.Publish(eventbus.TopicProvisionJobUpdated, map[string]any{"host": msg.Host, "status": "dry-run"})
		return nil
	}
	if w.provisionHost == nil {
		return fmt.Errorf("no provision handler configured")
	}
	w.bus.Publish(eventbus.TopicProvisionJobUpdated, map[string]any{"host": msg.Host, "status": "running"})
	if err := w.provisionHost(ctx, msg.Host, msg.School, msg.Action); err != nil {
		return err
	}
	_ = w.queue.ReleaseProvisionDedup(ctx, msg.Host)
	w.bus.Publish(eventbus.TopicProvisionJobUpdated, map[string]any{"host": msg.Host, "status": "completed"})
	return nil
}
