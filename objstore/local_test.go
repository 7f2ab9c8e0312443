package objstore

import (
	"context"
	"testing"
	"time"
)

func TestLocalBackendPutGetList(t *testing.T) {
	dir := t.TempDir()
	b, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	key, err := b.PutUnique(ctx, "get/2024/08/example-com", []byte("hello"))
	if err != nil {
		t.Fatalf("PutUnique: %v", err)
	}
	if got, err := b.Get(ctx, key); err != nil || string(got) != "hello" {
		t.Fatalf("Get(%s) = %q, %v", key, got, err)
	}

	infos, err := b.List(ctx, "get/2024/08/example-com")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != key {
		t.Fatalf("List = %+v, want exactly %q", infos, key)
	}

	if _, err := b.Get(ctx, "get/2024/08/does-not-exist.parquet"); err == nil {
		t.Fatalf("Get of missing key should fail")
	}
}

func TestLocalBackendReplaceAtomically(t *testing.T) {
	dir := t.TempDir()
	b, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	k1, _ := b.PutUnique(ctx, "get/2024/08/x", []byte("a"))
	k2, _ := b.PutUnique(ctx, "get/2024/08/x", []byte("b"))
	canonical := "get/2024/08/x.parquet"

	if err := b.ReplaceAtomically(ctx, []string{k1, k2}, canonical, []byte("ab")); err != nil {
		t.Fatalf("ReplaceAtomically: %v", err)
	}
	infos, err := b.List(ctx, "get/2024/08/x")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != canonical {
		t.Fatalf("List after replace = %+v, want only %q", infos, canonical)
	}
}

func TestLocalBackendLeaseExclusive(t *testing.T) {
	dir := t.TempDir()
	b, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	l1, err := b.Lease(ctx, "get/2024/08/x", time.Minute)
	if err != nil {
		t.Fatalf("first Lease: %v", err)
	}
	if _, err := b.Lease(ctx, "get/2024/08/x", time.Minute); err == nil {
		t.Fatalf("second concurrent Lease should fail")
	}
	if err := l1.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := b.Lease(ctx, "get/2024/08/x", time.Minute); err != nil {
		t.Fatalf("Lease after release: %v", err)
	}
}
