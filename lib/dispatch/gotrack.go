// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"bytes"
	"runtime"
	"strconv"
)

// curGoroutineID extracts the running goroutine's id from the first
// line of its stack trace ("goroutine 123 [running]:"). The runtime
// deliberately offers no API for this; parsing the stack header is the
// established workaround for ownership checks of this sort. The cost
// (one small runtime.Stack call) is paid once per Invoke/VerifyAccess,
// not per queued operation.
func curGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header := buf[:n]

	const prefix = "goroutine "
	if !bytes.HasPrefix(header, []byte(prefix)) {
		panic("dispatch: unexpected runtime.Stack header: " + string(header))
	}
	header = header[len(prefix):]
	end := bytes.IndexByte(header, ' ')
	if end < 0 {
		panic("dispatch: unexpected runtime.Stack header: " + string(buf[:n]))
	}
	id, err := strconv.ParseUint(string(header[:end]), 10, 64)
	if err != nil {
		panic("dispatch: cannot parse goroutine id: " + err.Error())
	}
	return id
}
