// Google Cloud Storage backend, on the reference engine's own
// cloud.google.com/go/storage and google.golang.org/api dependencies.
/*
 * Copyright (c) 2024, Thema-AI. All rights reserved.
 */
package objstore

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/Thema-AI/web-index/cmn"
)

func init() {
	Register("gs", func(u *url.URL) (Backend, error) {
		return NewGCS(context.Background(), u.Host, strings.TrimPrefix(u.Path, "/"))
	})
}

type gcsBackend struct {
	bucket *storage.BucketHandle
	prefix string
	leaser *memLeaser
}

var _ Backend = (*gcsBackend)(nil)

// NewGCS opens a Backend against an existing GCS bucket, with all keys
// rooted under rootPrefix.
func NewGCS(ctx context.Context, bucketName, rootPrefix string) (Backend, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, cmn.StorageUnavailf("gcs backend: new client: %v", err)
	}
	return &gcsBackend{
		bucket: client.Bucket(bucketName),
		prefix: rootPrefix,
		leaser: newMemLeaser(),
	}, nil
}

func (b *gcsBackend) fullKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + "/" + key
}

func (b *gcsBackend) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: b.fullKey(prefix)})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, cmn.StorageUnavailf("gcs backend: list %s: %v", prefix, err)
		}
		out = append(out, ObjectInfo{
			Key:  strings.TrimPrefix(attrs.Name, b.prefix+"/"),
			Size: attrs.Size,
		})
	}
	return out, nil
}

func (b *gcsBackend) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := b.bucket.Object(b.fullKey(key)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, cmn.NotFoundf("gcs backend: %s", key)
	}
	if err != nil {
		return nil, cmn.StorageUnavailf("gcs backend: get %s: %v", key, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (b *gcsBackend) put(ctx context.Context, key string, body []byte) error {
	w := b.bucket.Object(b.fullKey(key)).NewWriter(ctx)
	if _, err := w.Write(body); err != nil {
		w.Close()
		return cmn.StorageUnavailf("gcs backend: write %s: %v", key, err)
	}
	if err := w.Close(); err != nil {
		return cmn.StorageUnavailf("gcs backend: close %s: %v", key, err)
	}
	return nil
}

func (b *gcsBackend) PutUnique(ctx context.Context, prefix string, body []byte) (string, error) {
	key := prefix + "." + cmn.GenPartSuffix() + PartFileExt
	if err := b.put(ctx, key, body); err != nil {
		return "", err
	}
	return key, nil
}

func (b *gcsBackend) ReplaceAtomically(ctx context.Context, oldKeys []string, newKey string, body []byte) error {
	if err := b.put(ctx, newKey, body); err != nil {
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

func (b *gcsBackend) Delete(ctx context.Context, key string) error {
	err := b.bucket.Object(b.fullKey(key)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return cmn.StorageUnavailf("gcs backend: delete %s: %v", key, err)
	}
	return nil
}

func (b *gcsBackend) Lease(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	return b.leaser.acquire(ctx, name, ttl)
}
