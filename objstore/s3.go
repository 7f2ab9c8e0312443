// Amazon S3 backend, built on the reference engine's own AWS SDK
// dependency (github.com/aws/aws-sdk-go).
/*
 * Copyright (c) 2024, Thema-AI. All rights reserved.
 */
package objstore

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/Thema-AI/web-index/cmn"
)

func init() {
	Register("s3", func(u *url.URL) (Backend, error) {
		return NewS3(u.Host, strings.TrimPrefix(u.Path, "/"))
	})
}

type s3Backend struct {
	bucket string
	prefix string
	svc    *s3.S3
	leaser *memLeaser
}

var _ Backend = (*s3Backend)(nil)

// NewS3 opens a Backend against an existing S3 bucket, with all keys
// rooted under rootPrefix.
func NewS3(bucket, rootPrefix string) (Backend, error) {
	sess, err := session.NewSession()
	if err != nil {
		return nil, cmn.StorageUnavailf("s3 backend: new session: %v", err)
	}
	return &s3Backend{
		bucket: bucket,
		prefix: rootPrefix,
		svc:    s3.New(sess),
		leaser: newMemLeaser(),
	}, nil
}

func (b *s3Backend) fullKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + "/" + key
}

func (b *s3Backend) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.fullKey(prefix)),
	}
	err := b.svc.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, last bool) bool {
		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.StringValue(obj.Key), b.prefix+"/")
			out = append(out, ObjectInfo{Key: key, Size: aws.Int64Value(obj.Size)})
		}
		return true
	})
	if err != nil {
		return nil, cmn.StorageUnavailf("s3 backend: list %s: %v", prefix, err)
	}
	return out, nil
}

func (b *s3Backend) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := b.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fullKey(key)),
	})
	if isS3NotFound(err) {
		return nil, cmn.NotFoundf("s3 backend: %s", key)
	}
	if err != nil {
		return nil, cmn.StorageUnavailf("s3 backend: get %s: %v", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (b *s3Backend) put(ctx context.Context, key string, body []byte) error {
	_, err := b.svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fullKey(key)),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return cmn.StorageUnavailf("s3 backend: put %s: %v", key, err)
	}
	return nil
}

func (b *s3Backend) PutUnique(ctx context.Context, prefix string, body []byte) (string, error) {
	key := prefix + "." + cmn.GenPartSuffix() + PartFileExt
	if err := b.put(ctx, key, body); err != nil {
		return "", err
	}
	return key, nil
}

// ReplaceAtomically: S3 has no multi-object transaction, so this puts the
// new key first, then deletes the superseded ones, consistent with the
// write-then-delete fallback spec §4.1 allows.
func (b *s3Backend) ReplaceAtomically(ctx context.Context, oldKeys []string, newKey string, body []byte) error {
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

func (b *s3Backend) Delete(ctx context.Context, key string) error {
	_, err := b.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fullKey(key)),
	})
	if err != nil && !isS3NotFound(err) {
		return cmn.StorageUnavailf("s3 backend: delete %s: %v", key, err)
	}
	return nil
}

func (b *s3Backend) Lease(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	// Cross-process leasing over S3 is out of this engine's scope
	// (spec.md §1: "the out-of-band coordination used to serialize
	// defragmentation ... today a human channel"); this backend's Lease
	// is the same in-process advisory lock as the local backend, valid
	// only within a single bucket-serving process.
	return b.leaser.acquire(ctx, name, ttl)
}

func isS3NotFound(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), s3.ErrCodeNoSuchKey) || strings.Contains(err.Error(), "NotFound")
}
