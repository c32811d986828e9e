// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package testutils holds helpers shared by the cindex tests.
package testutils

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

// Logger is a logger that writes to a testing.TB and keeps every message so
// that tests can assert on what was logged.
type Logger struct {
	T testing.TB

	mu    sync.Mutex
	lines []string
}

// NewLogger returns a Logger writing to t.
func NewLogger(t testing.TB) *Logger {
	return &Logger{T: t}
}

func (l *Logger) record(level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.mu.Lock()
	l.lines = append(l.lines, level+": "+msg)
	l.mu.Unlock()
	l.T.Log(level + ": " + msg)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.record("I", format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.record("E", format, args...)
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.T.Helper()
	l.T.Fatalf(format, args...)
}

// Lines returns the messages logged so far, each prefixed by its level.
func (l *Logger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// Contains returns true if any logged message contains substr.
func (l *Logger) Contains(substr string) bool {
	for _, line := range l.Lines() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}
