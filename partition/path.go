// Package partition owns the path convention, domain extraction, and
// part-file/defragmentation lifecycle of spec §4.3: the path convention
// "{stream}/{YYYY}/{MM}/{domain}[.{uuid}].parquet", the canonical-vs-part
// file distinction, and the multiset-union read contract across them.
/*
 * Copyright (c) 2024, Thema-AI. All rights reserved.
 */
package partition

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thema-AI/web-index/cmn"
	"github.com/Thema-AI/web-index/objstore"
	"github.com/Thema-AI/web-index/schema"
)

// Key identifies one partition: (stream, year, month, domain).
type Key struct {
	Stream schema.Stream
	Year   int
	Month  int // 1-12
	Domain string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%04d/%02d/%s", k.Stream, k.Year, k.Month, k.Domain)
}

// MonthDir is the prefix under which every partition for one
// (stream, year, month) lives, regardless of domain.
func (k Key) MonthDir() string {
	return fmt.Sprintf("%s/%04d/%02d/", k.Stream, k.Year, k.Month)
}

// PartPrefix is the prefix passed to Backend.PutUnique; the backend
// appends ".{uuid}" + objstore.PartFileExt, yielding exactly
// "{domain}.{uuid}.parquet" in MonthDir.
func (k Key) PartPrefix() string {
	return k.MonthDir() + k.Domain
}

// CanonicalKey is the one canonical file for this partition.
func (k Key) CanonicalKey() string {
	return k.PartPrefix() + objstore.PartFileExt
}

// KeyForAttempt computes the partition for an attempt, per spec §3
// ("Attempt key"): timestamp.year, timestamp.month, domain(url).
func KeyForAttempt(stream schema.Stream, url string, timestamp time.Time) (Key, error) {
	domain, err := Domain(url)
	if err != nil {
		return Key{}, err
	}
	return Key{Stream: stream, Year: timestamp.Year(), Month: int(timestamp.Month()), Domain: domain}, nil
}

// FileKind distinguishes a partition's canonical file from its part files
// when classifying entries returned by a MonthDir listing.
type FileKind int

const (
	FileUnrelated FileKind = iota
	FileCanonical
	FilePart
)

// ClassifyFile determines whether key (a full object-store key already
// known to live under a MonthDir listing) belongs to domain's partition,
// and if so whether it is the canonical file or a part file. Matching is
// done on the base name so that "example" and "example2" partitions in
// the same month never collide on a naive string-prefix check.
func ClassifyFile(domain, key string) FileKind {
	base := key
	if i := strings.LastIndex(key, "/"); i >= 0 {
		base = key[i+1:]
	}
	if !strings.HasSuffix(base, objstore.PartFileExt) {
		return FileUnrelated
	}
	stem := strings.TrimSuffix(base, objstore.PartFileExt)
	if stem == domain {
		return FileCanonical
	}
	prefix := domain + "."
	if !strings.HasPrefix(stem, prefix) {
		return FileUnrelated
	}
	// Remainder must be exactly one dot-free component: a part file is
	// "{domain}.{uuid}.parquet", never "{domain}.{uuid}.{extra}.parquet".
	// The component is not checked to be a UUID.
	rest := stem[len(prefix):]
	if strings.Contains(rest, ".") {
		return FileUnrelated
	}
	return FilePart
}

// MonthRange enumerates the (year, month) pairs, in descending order,
// from `from` back through `to` inclusive (spec §4.4.2's "present back to
// the epoch of the store" walk).
func MonthRange(from, to time.Time) []YearMonth {
	cur := YearMonth{Year: from.Year(), Month: int(from.Month())}
	stop := YearMonth{Year: to.Year(), Month: int(to.Month())}
	var out []YearMonth
	for {
		out = append(out, cur)
		if cur == stop {
			break
		}
		cur = cur.prev()
	}
	return out
}

// YearMonth is a calendar month, comparable and orderable.
type YearMonth struct {
	Year  int
	Month int
}

func (ym YearMonth) prev() YearMonth {
	if ym.Month == 1 {
		return YearMonth{Year: ym.Year - 1, Month: 12}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month - 1}
}

func (ym YearMonth) next() YearMonth {
	if ym.Month == 12 {
		return YearMonth{Year: ym.Year + 1, Month: 1}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month + 1}
}

// Start returns the first instant of the month, in UTC.
func (ym YearMonth) Start() time.Time {
	return time.Date(ym.Year, time.Month(ym.Month), 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant of the following month, in UTC (an
// exclusive upper bound).
func (ym YearMonth) End() time.Time {
	return ym.next().Start()
}

// OverlappingMonths enumerates every (year, month) whose [Start, End)
// range intersects [notBefore, notAfter], ascending, for spec §4.4.3's
// time-bounded query.
func OverlappingMonths(notBefore, notAfter time.Time) []YearMonth {
	if notAfter.Before(notBefore) {
		return nil
	}
	cur := YearMonth{Year: notBefore.Year(), Month: int(notBefore.Month())}
	last := YearMonth{Year: notAfter.Year(), Month: int(notAfter.Month())}
	var out []YearMonth
	for {
		out = append(out, cur)
		if cur == last {
			break
		}
		cur = cur.next()
	}
	return out
}

// ValidateCalendar guards against month/year drift bugs in callers.
func ValidateCalendar(ym YearMonth) error {
	if ym.Month < 1 || ym.Month > 12 {
		return cmn.Structuralf("partition: invalid month %d", ym.Month)
	}
	return nil
}
