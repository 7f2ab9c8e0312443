/*
 * Copyright (c) 2024, Thema-AI. All rights reserved.
 */
package partition

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/Thema-AI/web-index/cmn"
)

// Domain derives the partition-bucketing domain for a URL: the
// registrable domain (eTLD+1) for ordinary hostnames, the literal host
// for IP addresses, and a sanitized opaque token for anything else, so
// that spec §4.3's "domain(url)" is total over every URL the insert
// pipeline can be asked to accept.
func Domain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", cmn.Structuralf("partition: invalid url %q: %v", rawURL, err)
	}
	host := u.Hostname()
	if host == "" {
		return sanitize(rawURL), nil
	}
	if net.ParseIP(host) != nil {
		return sanitize(host), nil
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// Not under a known public suffix (e.g. a bare single-label
		// host, or an internal TLD) — fall back to the full host.
		return sanitize(host), nil
	}
	return sanitize(etld1), nil
}

// sanitize maps a domain string onto a token safe as a single path
// segment across every Backend (local fs, S3, GCS, Azure, HDFS): lower
// case, and every byte outside [a-z0-9.-] replaced with "_".
func sanitize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" {
		return "_"
	}
	return out
}
