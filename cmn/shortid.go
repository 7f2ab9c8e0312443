// Package cmn provides common low-level types, configuration, and error
// kinds shared by every package in the web-index engine.
/*
 * Copyright (c) 2024, Thema-AI. All rights reserved.
 */
package cmn

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/teris-io/shortid"
)

const (
	// Alphabet for short, human-readable batch-trace IDs.
	traceABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"
)

var (
	sid  *shortid.Shortid
	rtie int32
)

func init() {
	sid = shortid.MustNew(4 /*worker*/, traceABC, 0)
}

// GenRequestID returns a fresh, globally unique, opaque request_id: a
// version-4 UUID rendered as a string (spec.md Open Question 1). Callers
// must not parse its structure (invariant D2).
func GenRequestID() string {
	return uuid.New().String()
}

// GenPartSuffix returns the UUID suffix used for a part file's
// "{domain}.{uuid}.parquet" name (spec §4.3).
func GenPartSuffix() string {
	return uuid.New().String()
}

// GenTraceID returns a short, human-readable correlation ID for tagging a
// query/insert batch's log lines without the opaque request_id leaking any
// structure. The planner and the insert pipeline do not call it; their
// log lines carry no trace ID. This is the
// reference engine's own GenUUID/GenTie idea (cmn/shortid.go), repurposed:
// the opaque identifiers themselves are now real UUIDs (above), and
// shortid is kept for exactly this lighter, human-facing role.
func GenTraceID() string {
	return sid.MustGenerate()
}

// GenTie returns a short, monotonically-varying string useful for
// disambiguating temp-file names created in the same process tick.
func GenTie() string {
	tie := atomic.AddInt32(&rtie, 1)
	b0 := traceABC[tie&0x3f]
	b1 := traceABC[-tie&0x3f]
	b2 := traceABC[(tie>>2)&0x3f]
	return string([]byte{b0, b1, b2})
}
