// Package cmn provides common low-level types, configuration, and error
// kinds shared by every package in the web-index engine.
/*
 * Copyright (c) 2024, Thema-AI. All rights reserved.
 */
package cmn

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel error kinds, per the error taxonomy of the engine's design:
// not-found, structural, storage-unavailable, corrupt-partition,
// malformed-chain, cancelled. Callers match with errors.Is; wrapped
// context (key, partition, request_id) travels alongside via
// github.com/pkg/errors so a %+v dump still carries a stack.
var (
	ErrNotFound         = errors.New("no match")
	ErrStructural       = errors.New("structural error")
	ErrStorageUnavail   = errors.New("storage unavailable")
	ErrCorruptPartition = errors.New("corrupt partition")
	ErrMalformedChain   = errors.New("malformed chain")
	ErrCancelled        = errors.New("cancelled")
)

// NotFoundf wraps ErrNotFound with a formatted, slot-specific reason.
func NotFoundf(format string, a ...interface{}) error {
	return errors.Wrap(ErrNotFound, fmt.Sprintf(format, a...))
}

// Structuralf wraps ErrStructural with a formatted reason; returned from
// the insert pipeline when D1/D2/M1 is violated at submission time.
func Structuralf(format string, a ...interface{}) error {
	return errors.Wrap(ErrStructural, fmt.Sprintf(format, a...))
}

// StorageUnavailf wraps ErrStorageUnavail, naming the backend call that failed.
func StorageUnavailf(format string, a ...interface{}) error {
	return errors.Wrap(ErrStorageUnavail, fmt.Sprintf(format, a...))
}

// CorruptPartitionf wraps ErrCorruptPartition, naming the offending key.
func CorruptPartitionf(key string, cause error) error {
	return errors.Wrapf(ErrCorruptPartition, "key %q: %v", key, cause)
}

// MalformedChainf wraps ErrMalformedChain, naming the offending request_id.
func MalformedChainf(requestID string, reason string) error {
	return errors.Wrapf(ErrMalformedChain, "request_id %q: %s", requestID, reason)
}

// Cancelledf wraps ErrCancelled with a formatted reason.
func Cancelledf(format string, a ...interface{}) error {
	return errors.Wrap(ErrCancelled, fmt.Sprintf(format, a...))
}
