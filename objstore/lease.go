package objstore

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/Thema-AI/web-index/cmn"
)

// memLease is the in-process, TTL-bounded advisory lease described in
// spec.md §9 ("Exclusive-writer lease"): the engine is single-process,
// multi-task (spec §5), so serializing defragmentation needs nothing more
// than a per-partition mutex with an expiry, not a distributed lock.
type memLeaser struct {
	mu     sync.Mutex
	active map[string]*memLease
}

func newMemLeaser() *memLeaser {
	return &memLeaser{active: make(map[string]*memLease)}
}

type memLease struct {
	name    string
	expires time.Time
	owner   *memLeaser
}

func (l *memLeaser) acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.active[name]; ok && !existing.expired() {
		return nil, cmn.StorageUnavailf("objstore: lease %q already held (expires %s)", name, existing.expires)
	}
	lease := &memLease{name: name, expires: time.Now().Add(ttl), owner: l}
	l.active[name] = lease
	glog.V(4).Infof("[lease] acquired %q ttl=%s", name, ttl)
	return lease, nil
}

func (l *memLeaser) release(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, name)
}

func (ml *memLease) expired() bool { return time.Now().After(ml.expires) }

func (ml *memLease) Name() string { return ml.name }

func (ml *memLease) Expired() bool { return ml.expired() }

func (ml *memLease) Release(ctx context.Context) error {
	ml.owner.release(ml.name)
	glog.V(4).Infof("[lease] released %q", ml.name)
	return nil
}
