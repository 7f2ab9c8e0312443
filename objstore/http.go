// Generic HTTP object-store backend, structured after the reference
// engine's own ais/backend/http.go httpProvider: a thin client wrapper
// around a REST object store, suited to read-only mirrors or a plain REST
// store as a write target. Built on github.com/valyala/fasthttp,
// the reference's own high-throughput HTTP client dependency.
/*
 * Copyright (c) 2024, Thema-AI. All rights reserved.
 */
package objstore

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/Thema-AI/web-index/cmn"
)

func init() {
	Register("http", func(u *url.URL) (Backend, error) { return NewHTTP(u.String()) })
	Register("https", func(u *url.URL) (Backend, error) { return NewHTTP(u.String()) })
}

type httpBackend struct {
	baseURL string
	client  *fasthttp.Client
	leaser  *memLeaser
}

var _ Backend = (*httpBackend)(nil)

// NewHTTP opens a Backend against a REST object store exposing
// GET/PUT/DELETE on baseURL+"/"+key and GET baseURL+"/?prefix=" for
// listing (a JSON array of {key,size}), the same shape the reference's
// httpProvider assumes of an origin server.
func NewHTTP(baseURL string) (Backend, error) {
	return &httpBackend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &fasthttp.Client{ReadTimeout: 30 * time.Second, WriteTimeout: 30 * time.Second},
		leaser:  newMemLeaser(),
	}, nil
}

func (b *httpBackend) do(method, urlStr string, body []byte) (status int, respBody []byte, err error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(urlStr)
	req.Header.SetMethod(method)
	if body != nil {
		req.SetBody(body)
	}
	if err := b.client.Do(req, resp); err != nil {
		return 0, nil, err
	}
	return resp.StatusCode(), append([]byte(nil), resp.Body()...), nil
}

func (b *httpBackend) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	status, body, err := b.do(fasthttp.MethodGet, b.baseURL+"/?prefix="+url.QueryEscape(prefix), nil)
	if err != nil {
		return nil, cmn.StorageUnavailf("http backend: list %s: %v", prefix, err)
	}
	if status != fasthttp.StatusOK {
		return nil, cmn.StorageUnavailf("http backend: list %s: status %d", prefix, status)
	}
	var out []ObjectInfo
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, cmn.StorageUnavailf("http backend: list %s: decode: %v", prefix, err)
	}
	return out, nil
}

func (b *httpBackend) Get(ctx context.Context, key string) ([]byte, error) {
	status, body, err := b.do(fasthttp.MethodGet, b.baseURL+"/"+key, nil)
	if err != nil {
		return nil, cmn.StorageUnavailf("http backend: get %s: %v", key, err)
	}
	if status == fasthttp.StatusNotFound {
		return nil, cmn.NotFoundf("http backend: %s", key)
	}
	if status != fasthttp.StatusOK {
		return nil, cmn.StorageUnavailf("http backend: get %s: status %d", key, status)
	}
	return body, nil
}

func (b *httpBackend) put(key string, body []byte) error {
	status, _, err := b.do(fasthttp.MethodPut, b.baseURL+"/"+key, body)
	if err != nil {
		return cmn.StorageUnavailf("http backend: put %s: %v", key, err)
	}
	if status != fasthttp.StatusOK && status != fasthttp.StatusCreated && status != fasthttp.StatusNoContent {
		return cmn.StorageUnavailf("http backend: put %s: status %d", key, status)
	}
	return nil
}

func (b *httpBackend) PutUnique(ctx context.Context, prefix string, body []byte) (string, error) {
	key := prefix + "." + cmn.GenPartSuffix() + PartFileExt
	if err := b.put(key, body); err != nil {
		return "", err
	}
	return key, nil
}

func (b *httpBackend) ReplaceAtomically(ctx context.Context, oldKeys []string, newKey string, body []byte) error {
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

func (b *httpBackend) Delete(ctx context.Context, key string) error {
	status, _, err := b.do(fasthttp.MethodDelete, b.baseURL+"/"+key, nil)
	if err != nil {
		return cmn.StorageUnavailf("http backend: delete %s: %v", key, err)
	}
	if status != fasthttp.StatusOK && status != fasthttp.StatusNoContent && status != fasthttp.StatusNotFound {
		return cmn.StorageUnavailf("http backend: delete %s: status %d", key, status)
	}
	return nil
}

func (b *httpBackend) Lease(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	return b.leaser.acquire(ctx, name, ttl)
}
