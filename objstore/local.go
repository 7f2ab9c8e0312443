// Local filesystem backend: the default backend for tests and for
// single-node deployments. Listing uses github.com/karrick/godirwalk for
// fast recursive enumeration, the same library the reference engine pulls
// in for mountpath scanning (fs/content.go's directory walks).
/*
 * Copyright (c) 2024, Thema-AI. All rights reserved.
 */
package objstore

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/karrick/godirwalk"
	"golang.org/x/sys/unix"

	"github.com/Thema-AI/web-index/cmn"
)

func init() {
	Register("file", func(u *url.URL) (Backend, error) {
		root := u.Path
		if root == "" {
			root = u.Opaque
		}
		return NewLocal(root)
	})
}

// PartFileExt is the fixed extension the engine's columnar files carry
// (spec §4.3 path convention).
const PartFileExt = ".parquet"

type localBackend struct {
	root   string
	leaser *memLeaser
}

var _ Backend = (*localBackend)(nil)

// NewLocal opens a local-filesystem Backend rooted at dir, creating it if
// absent.
func NewLocal(dir string) (Backend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, cmn.StorageUnavailf("local backend: mkdir %s: %v", dir, err)
	}
	return &localBackend{root: dir, leaser: newMemLeaser()}, nil
}

func (b *localBackend) path(key string) string { return filepath.Join(b.root, filepath.FromSlash(key)) }

func (b *localBackend) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	err := godirwalk.Walk(b.root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(b.root, osPathname)
			if err != nil {
				return err
			}
			key := filepath.ToSlash(rel)
			if strings.HasPrefix(key, prefix) {
				fi, err := os.Stat(osPathname)
				if err != nil {
					return nil // raced with a concurrent delete; skip
				}
				out = append(out, ObjectInfo{Key: key, Size: fi.Size()})
			}
			return nil
		},
		ErrorCallback: func(string, error) godirwalk.ErrorAction { return godirwalk.SkipNode },
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, cmn.StorageUnavailf("local backend: list %s: %v", prefix, err)
	}
	return out, nil
}

func (b *localBackend) Get(ctx context.Context, key string) ([]byte, error) {
	body, err := os.ReadFile(b.path(key))
	if os.IsNotExist(err) {
		return nil, cmn.NotFoundf("local backend: %s", key)
	}
	if err != nil {
		return nil, cmn.StorageUnavailf("local backend: get %s: %v", key, err)
	}
	return body, nil
}

func (b *localBackend) PutUnique(ctx context.Context, prefix string, body []byte) (string, error) {
	key := prefix + "." + cmn.GenPartSuffix() + PartFileExt
	if err := b.writeFinal(key, body); err != nil {
		return "", err
	}
	return key, nil
}

func (b *localBackend) writeFinal(key string, body []byte) error {
	full := b.path(key)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return cmn.StorageUnavailf("local backend: mkdir for %s: %v", key, err)
	}
	tmp := full + ".tmp-" + cmn.GenTie()
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		os.Remove(tmp)
		return cmn.StorageUnavailf("local backend: write %s: %v", key, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return cmn.StorageUnavailf("local backend: publish %s: %v", key, err)
	}
	return nil
}

// ReplaceAtomically writes newKey/body, fsyncs its directory so the
// rename is durable, then deletes oldKeys. The local filesystem has no
// multi-object transaction, so this is the write-then-delete fallback
// spec §4.1 explicitly allows; readers of this backend must tolerate
// the transient overlap.
func (b *localBackend) ReplaceAtomically(ctx context.Context, oldKeys []string, newKey string, body []byte) error {
	if err := b.writeFinal(newKey, body); err != nil {
		return err
	}
	if err := fsyncDir(filepath.Dir(b.path(newKey))); err != nil {
		return cmn.StorageUnavailf("local backend: fsync dir for %s: %v", newKey, err)
	}
	for _, k := range oldKeys {
		if k == newKey {
			continue
		}
		if err := b.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (b *localBackend) Delete(ctx context.Context, key string) error {
	err := os.Remove(b.path(key))
	if err != nil && !os.IsNotExist(err) {
		return cmn.StorageUnavailf("local backend: delete %s: %v", key, err)
	}
	return nil
}

func (b *localBackend) Lease(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	return b.leaser.acquire(ctx, name, ttl)
}

func fsyncDir(dir string) error {
	fd, err := unix.Open(dir, unix.O_RDONLY, 0)
	if err != nil {
		if err == unix.ENOENT {
			return nil
		}
		return err
	}
	defer unix.Close(fd)
	return unix.Fsync(fd)
}
