// HDFS backend, on the reference engine's own
// github.com/colinmarc/hdfs/v2 dependency — carried over from the
// reference's go.mod but, in the retrieved pack, never given a caller;
// this is its first one.
/*
 * Copyright (c) 2024, Thema-AI. All rights reserved.
 */
package objstore

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	hdfs "github.com/colinmarc/hdfs/v2"

	"github.com/Thema-AI/web-index/cmn"
)

func init() {
	Register("hdfs", func(u *url.URL) (Backend, error) {
		return NewHDFS(u.Host, strings.TrimPrefix(u.Path, "/"))
	})
}

type hdfsBackend struct {
	client *hdfs.Client
	root   string
	leaser *memLeaser
}

var _ Backend = (*hdfsBackend)(nil)

// NewHDFS opens a Backend against an HDFS namenode at addr, rooted at
// rootDir.
func NewHDFS(addr, rootDir string) (Backend, error) {
	client, err := hdfs.NewClient(hdfs.ClientOptions{Addresses: []string{addr}})
	if err != nil {
		return nil, cmn.StorageUnavailf("hdfs backend: dial %s: %v", addr, err)
	}
	if err := client.MkdirAll(rootDir, 0o755); err != nil && !os.IsExist(err) {
		return nil, cmn.StorageUnavailf("hdfs backend: mkdir %s: %v", rootDir, err)
	}
	return &hdfsBackend{client: client, root: rootDir, leaser: newMemLeaser()}, nil
}

func (b *hdfsBackend) full(key string) string { return path.Join(b.root, key) }

func (b *hdfsBackend) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	dir := path.Dir(b.full(prefix))
	err := b.client.Walk(dir, func(p string, fi os.FileInfo, werr error) error {
		if werr != nil || fi == nil || fi.IsDir() {
			return nil
		}
		rel, rerr := path.Rel(b.root, p)
		if rerr != nil {
			return nil
		}
		if strings.HasPrefix(rel, prefix) {
			out = append(out, ObjectInfo{Key: rel, Size: fi.Size()})
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, cmn.StorageUnavailf("hdfs backend: list %s: %v", prefix, err)
	}
	return out, nil
}

func (b *hdfsBackend) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := b.client.Open(b.full(key))
	if os.IsNotExist(err) {
		return nil, cmn.NotFoundf("hdfs backend: %s", key)
	}
	if err != nil {
		return nil, cmn.StorageUnavailf("hdfs backend: open %s: %v", key, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (b *hdfsBackend) put(key string, body []byte) error {
	full := b.full(key)
	if err := b.client.MkdirAll(path.Dir(full), 0o755); err != nil && !os.IsExist(err) {
		return cmn.StorageUnavailf("hdfs backend: mkdir for %s: %v", key, err)
	}
	tmp := full + ".tmp-" + cmn.GenTie()
	w, err := b.client.Create(tmp)
	if err != nil {
		return cmn.StorageUnavailf("hdfs backend: create %s: %v", key, err)
	}
	if _, err := w.Write(body); err != nil {
		w.Close()
		b.client.Remove(tmp)
		return cmn.StorageUnavailf("hdfs backend: write %s: %v", key, err)
	}
	if err := w.Close(); err != nil {
		return cmn.StorageUnavailf("hdfs backend: close %s: %v", key, err)
	}
	if err := b.client.Rename(tmp, full); err != nil {
		return cmn.StorageUnavailf("hdfs backend: publish %s: %v", key, err)
	}
	return nil
}

func (b *hdfsBackend) PutUnique(ctx context.Context, prefix string, body []byte) (string, error) {
	key := prefix + "." + cmn.GenPartSuffix() + PartFileExt
	if err := b.put(key, body); err != nil {
		return "", err
	}
	return key, nil
}

func (b *hdfsBackend) ReplaceAtomically(ctx context.Context, oldKeys []string, newKey string, body []byte) error {
	if err := b.put(newKey, body); err != nil {
		return err
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

func (b *hdfsBackend) Delete(ctx context.Context, key string) error {
	err := b.client.Remove(b.full(key))
	if err != nil && !os.IsNotExist(err) {
		return cmn.StorageUnavailf("hdfs backend: delete %s: %v", key, err)
	}
	return nil
}

func (b *hdfsBackend) Lease(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	return b.leaser.acquire(ctx, name, ttl)
}
