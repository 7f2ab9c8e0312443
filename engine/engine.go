// Package engine is the facade that wires objstore, codec, partition,
// planner, and insert into the one entry point spec §2 describes:
// inserts flow in through Insert, queries flow out through Query.
/*
 * Copyright (c) 2024, Thema-AI. All rights reserved.
 */
package engine

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Thema-AI/web-index/cmn"
	"github.com/Thema-AI/web-index/insert"
	"github.com/Thema-AI/web-index/objstore"
	"github.com/Thema-AI/web-index/partition"
	"github.com/Thema-AI/web-index/planner"
	"github.com/Thema-AI/web-index/stats"
)

// Engine is a single configured instance of the store: one backend, one
// partition manager, one query executor, one insert pipeline.
type Engine struct {
	Config   *cmn.Config
	Backend  objstore.Backend
	Manager  *partition.Manager
	Executor *planner.Executor
	Insert   *insert.Pipeline
	Metrics  *planner.Metrics
	Disk     *stats.DiskStats
}

// Open constructs an Engine from a Config, dialing cfg.Bucket through
// the objstore registry.
func Open(cfg *cmn.Config, reg prometheus.Registerer) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	backend, err := objstore.Open(cfg.Bucket)
	if err != nil {
		return nil, err
	}
	mgr, err := partition.NewManager(backend, cfg)
	if err != nil {
		return nil, err
	}
	metrics := planner.NewMetrics(reg)
	exec := planner.NewExecutor(mgr, cfg, metrics)
	pipeline := insert.NewPipeline(mgr, insert.WithPresenceInvalidation(exec.InvalidatePresence))
	disk := stats.NewDiskStats(reg)

	return &Engine{
		Config: cfg, Backend: backend, Manager: mgr, Executor: exec, Insert: pipeline, Metrics: metrics,
		Disk: disk,
	}, nil
}

// SampleDiskStats refreshes the disk-health gauges exposed on e.Disk. The
// engine has no internal scheduler (spec §9 leaves that coordination to
// the caller); an operator wires this into whatever periodic job already
// polls their process, the same way Defrag is an explicit caller-driven
// call rather than a background loop.
func (e *Engine) SampleDiskStats() error {
	return e.Disk.Sample()
}

// Submit is a thin pass-through to the insert pipeline.
func (e *Engine) Submit(ctx context.Context, a insert.Attempt) (*insert.Receipt, error) {
	return e.Insert.Submit(ctx, a)
}

// Query is a thin pass-through to the planner's batch executor.
func (e *Engine) Query(ctx context.Context, queries []planner.Query) []planner.Result {
	return e.Executor.Execute(ctx, queries)
}

// Defrag runs partition coalescence for one (stream, year, month, domain).
func (e *Engine) Defrag(ctx context.Context, key partition.Key) error {
	err := e.Manager.Defrag(ctx, key)
	e.Executor.InvalidatePresence(key)
	return err
}
