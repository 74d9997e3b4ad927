// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Writer is the Record Emitter's output side: a newline-delimited
// JSON stream, flushed after every record so a consumer tailing the
// result file sees time-slices as they're produced, matching spec
// §7's "the collector writes a complete result stream... before
// exiting on any non-Interrupt error."
type Writer struct {
	mu  sync.Mutex
	w   *bufio.Writer
	enc *json.Encoder
}

// NewWriter wraps w, typically the opened COLLECTOR_RESULT_FILE.
func NewWriter(w io.Writer) *Writer {
	bw := bufio.NewWriter(w)
	return &Writer{w: bw, enc: json.NewEncoder(bw)}
}

// WriteHeader emits the stream's Header record.
func (rw *Writer) WriteHeader(h Header) error {
	return rw.writeAndFlush(h)
}

// WriteTimeslice emits one Timeslice record.
func (rw *Writer) WriteTimeslice(ts Timeslice) error {
	return rw.writeAndFlush(ts)
}

// WriteError emits one Error record, used both inline (if a caller
// chooses to stream them) and for the trailing errors tail.
func (rw *Writer) WriteError(e Error) error {
	return rw.writeAndFlush(e)
}

// WriteSummary emits the closing Summary record.
func (rw *Writer) WriteSummary(s Summary) error {
	return rw.writeAndFlush(s)
}

func (rw *Writer) writeAndFlush(v any) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if err := rw.enc.Encode(v); err != nil {
		return fmt.Errorf("trace: encode record: %w", err)
	}
	return rw.w.Flush()
}
