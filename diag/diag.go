// Copyright 2015 Google Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package diag wraps the standard log.Logger with the leveled helpers
// the driver writes progress and diagnostics through, and renders a
// build's accumulated berr.Diagnostics as the single ordered,
// severity-prefixed list the user sees on failure.
package diag

import (
	"log"

	"github.com/klswkj/buildtarget/berr"
)

// Logger is a leveled wrapper over log.Logger. Verbose output is
// dropped unless verbosity was requested, everything else is forwarded
// unconditionally.
type Logger struct {
	out     *log.Logger
	verbose bool
}

func New(out *log.Logger, verbose bool) *Logger {
	return &Logger{out: out, verbose: verbose}
}

// Printf forwards to the underlying logger. It satisfies the driver's
// Logger seam so a *diag.Logger can be wired in directly.
func (l *Logger) Printf(format string, args ...interface{}) {
	l.out.Printf(format, args...)
}

// Verbose logs only when verbosity was requested at construction.
func (l *Logger) Verbose(format string, args ...interface{}) {
	if l.verbose {
		l.out.Printf(format, args...)
	}
}

// Warn logs with the "warning: " severity prefix used across the
// diagnostics list.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.out.Printf("warning: "+format, args...)
}

// Error logs with the "error: " severity prefix.
func (l *Logger) Error(format string, args ...interface{}) {
	l.out.Printf("error: "+format, args...)
}

// Emit renders every accumulated diagnostic in order, each with its
// severity prefix, and reports whether any was fatal.
func (l *Logger) Emit(d *berr.Diagnostics) bool {
	for _, line := range d.Strings() {
		l.out.Printf("%s", line)
	}
	return d.HasFatal()
}
