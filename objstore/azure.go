// Azure Blob Storage backend, on the reference engine's own
// github.com/Azure/azure-storage-blob-go dependency.
/*
 * Copyright (c) 2024, Thema-AI. All rights reserved.
 */
package objstore

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"github.com/Thema-AI/web-index/cmn"
)

func init() {
	Register("az", func(u *url.URL) (Backend, error) {
		parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
		container := u.Host
		prefix := ""
		if len(parts) == 2 {
			prefix = parts[1]
		}
		return NewAzure(container, prefix)
	})
}

type azureBackend struct {
	container azblob.ContainerURL
	prefix    string
	leaser    *memLeaser
}

var _ Backend = (*azureBackend)(nil)

// NewAzure opens a Backend against an existing Azure Blob container. The
// account name and key are read from AZURE_STORAGE_ACCOUNT and
// AZURE_STORAGE_KEY, matching the reference engine's own convention of
// sourcing cloud credentials from process environment.
func NewAzure(containerName, rootPrefix string) (Backend, error) {
	account := os.Getenv("AZURE_STORAGE_ACCOUNT")
	key := os.Getenv("AZURE_STORAGE_KEY")
	cred, err := azblob.NewSharedKeyCredential(account, key)
	if err != nil {
		return nil, cmn.StorageUnavailf("azure backend: credential: %v", err)
	}
	p := azblob.NewPipeline(cred, azblob.PipelineOptions{})
	u, err := url.Parse("https://" + account + ".blob.core.windows.net/" + containerName)
	if err != nil {
		return nil, cmn.StorageUnavailf("azure backend: url: %v", err)
	}
	return &azureBackend{
		container: azblob.NewContainerURL(*u, p),
		prefix:    rootPrefix,
		leaser:    newMemLeaser(),
	}, nil
}

func (b *azureBackend) fullKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + "/" + key
}

func (b *azureBackend) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for marker := (azblob.Marker{}); marker.NotDone(); {
		resp, err := b.container.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: b.fullKey(prefix),
		})
		if err != nil {
			return nil, cmn.StorageUnavailf("azure backend: list %s: %v", prefix, err)
		}
		for _, item := range resp.Segment.BlobItems {
			out = append(out, ObjectInfo{
				Key:  strings.TrimPrefix(item.Name, b.prefix+"/"),
				Size: *item.Properties.ContentLength,
			})
		}
		marker = resp.NextMarker
	}
	return out, nil
}

func (b *azureBackend) Get(ctx context.Context, key string) ([]byte, error) {
	blob := b.container.NewBlockBlobURL(b.fullKey(key))
	resp, err := blob.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if isAzureNotFound(err) {
		return nil, cmn.NotFoundf("azure backend: %s", key)
	}
	if err != nil {
		return nil, cmn.StorageUnavailf("azure backend: get %s: %v", key, err)
	}
	body := resp.Body(azblob.RetryReaderOptions{})
	defer body.Close()
	return io.ReadAll(body)
}

func (b *azureBackend) put(ctx context.Context, key string, body []byte) error {
	blob := b.container.NewBlockBlobURL(b.fullKey(key))
	_, err := blob.Upload(ctx, bytes.NewReader(body), azblob.BlobHTTPHeaders{}, azblob.Metadata{},
		azblob.BlobAccessConditions{}, azblob.DefaultAccessTier, nil, azblob.ClientProvidedKeyOptions{}, azblob.ImmutabilityPolicyOptions{})
	if err != nil {
		return cmn.StorageUnavailf("azure backend: put %s: %v", key, err)
	}
	return nil
}

func (b *azureBackend) PutUnique(ctx context.Context, prefix string, body []byte) (string, error) {
	key := prefix + "." + cmn.GenPartSuffix() + PartFileExt
	if err := b.put(ctx, key, body); err != nil {
		return "", err
	}
	return key, nil
}

func (b *azureBackend) ReplaceAtomically(ctx context.Context, oldKeys []string, newKey string, body []byte) error {
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

func (b *azureBackend) Delete(ctx context.Context, key string) error {
	blob := b.container.NewBlockBlobURL(b.fullKey(key))
	_, err := blob.Delete(ctx, azblob.DeleteSnapshotsOptionNone, azblob.BlobAccessConditions{})
	if err != nil && !isAzureNotFound(err) {
		return cmn.StorageUnavailf("azure backend: delete %s: %v", key, err)
	}
	return nil
}

func (b *azureBackend) Lease(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	return b.leaser.acquire(ctx, name, ttl)
}

func isAzureNotFound(err error) bool {
	if err == nil {
		return false
	}
	if sErr, ok := err.(azblob.StorageError); ok {
		return sErr.ServiceCode() == azblob.ServiceCodeBlobNotFound
	}
	return strings.Contains(err.Error(), "BlobNotFound")
}
