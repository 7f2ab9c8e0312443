// Defragment is a short-lived, cancellable unit of work, the same
// Run/Finish shape the reference engine's xaction package gives its
// background jobs (xaction/xrun/bucket.go's bckRename.Run ends by calling
// r.Finish(nil); ec/getxaction.go's XactGet.Run does the same). Unlike the
// reference's xaction, this one has no registry or scheduler behind it: a
// caller constructs one, calls Run, and reads the result back directly,
// matching spec §9's framing of defrag's trigger as an external,
// out-of-band concern this engine does not own.
/*
 * Copyright (c) 2024, Thema-AI. All rights reserved.
 */
package partition

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/Thema-AI/web-index/cmn"
)

// Defragment coalesces every part file of one partition into a single
// canonical file under an exclusive lease.
type Defragment struct {
	mgr   *Manager
	key   Key
	start time.Time

	mu       sync.Mutex
	finished bool
	err      error
}

// NewDefragment constructs the unit of work; it does not touch the
// backend until Run is called.
func NewDefragment(mgr *Manager, key Key) *Defragment {
	return &Defragment{mgr: mgr, key: key, start: time.Now()}
}

func (d *Defragment) String() string {
	return fmt.Sprintf("defrag[%s]", d.key)
}

// Finished reports whether Run has returned.
func (d *Defragment) Finished() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.finished
}

// AbortedError returns the error Run finished with, if any.
func (d *Defragment) AbortedError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Finish marks the unit of work done and records its outcome.
func (d *Defragment) Finish(err error) {
	d.mu.Lock()
	d.finished = true
	d.err = err
	d.mu.Unlock()
	if err != nil {
		glog.Warningf("%s: finished with error: %v", d, err)
	} else {
		glog.V(3).Infof("%s: finished in %s", d, time.Since(d.start))
	}
}

// Run performs the coalescence synchronously and calls Finish with the
// outcome before returning. The partition's lease is taken before the
// files are listed; below mgr.cfg.DefragMinParts fragments Run releases
// it without writing anything and finishes with Finish(nil).
func (d *Defragment) Run(ctx context.Context) error {
	glog.V(4).Infof("%s: starting", d)
	err := d.run(ctx)
	d.Finish(err)
	return err
}

func (d *Defragment) run(ctx context.Context) error {
	m := d.mgr
	key := d.key

	lease, err := m.backend.Lease(ctx, key.String(), m.cfg.LeaseTTL)
	if err != nil {
		return cmn.StorageUnavailf("partition: defrag %s: acquire lease: %v", key, err)
	}
	defer func() {
		if rerr := lease.Release(ctx); rerr != nil {
			glog.Warningf("partition: defrag %s: release lease: %v", key, rerr)
		}
	}()

	m.cache.invalidate(key.MonthDir())
	canonical, parts, err := m.filesFor(ctx, key)
	if err != nil {
		return err
	}
	oldKeys := m.allKeys(canonical, parts)
	if len(oldKeys) < m.cfg.DefragMinParts {
		glog.V(4).Infof("%s: below threshold (%d files), skipping", d, len(oldKeys))
		return nil
	}

	var body []byte
	if key.Stream.IsMetadata() {
		body, err = m.defragMetadata(ctx, oldKeys)
	} else {
		body, err = m.defragData(ctx, oldKeys)
	}
	if err != nil {
		return err
	}

	newKey := key.CanonicalKey()
	if err := m.backend.ReplaceAtomically(ctx, oldKeys, newKey, body); err != nil {
		return cmn.StorageUnavailf("partition: defrag %s: replace: %v", key, err)
	}
	m.cache.invalidate(key.MonthDir())
	glog.V(3).Infof("partition: defragged %s: %d files -> 1", key, len(oldKeys))
	return nil
}
