// Package debug provides cheap, togglable internal-invariant assertions,
// mirroring the reference engine's own cmn/debug package. Asserts fire
// only when the Assert* family detects a broken invariant that indicates
// a bug in this engine, never on bad caller input (that is a structural
// error, returned normally).
/*
 * Copyright (c) 2024, Thema-AI. All rights reserved.
 */
package debug

import (
	"fmt"
	"os"

	"github.com/golang/glog"
)

// Enabled gates the cost of Assert in hot paths. It is a runtime switch,
// true at startup when WEBINDEX_DEBUG is non-empty; while it is false the
// Assert* calls never fail.
var Enabled = os.Getenv("WEBINDEX_DEBUG") != ""

func Assert(cond bool, a ...interface{}) {
	if Enabled && !cond {
		fail(a...)
	}
}

func Assertf(cond bool, format string, a ...interface{}) {
	if Enabled && !cond {
		fail(fmt.Sprintf(format, a...))
	}
}

func AssertNoErr(err error) {
	if Enabled && err != nil {
		fail(err)
	}
}

func fail(a ...interface{}) {
	msg := fmt.Sprint(a...)
	glog.Errorf("[assert] %s", msg)
	glog.Flush()
	panic("web-index: " + msg)
}
