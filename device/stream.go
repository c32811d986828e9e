// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package device

import (
	"context"
	"runtime"
	"sync"

	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/gbdtkit/cindex/internal/invariants"
)

type streamTask struct {
	name string
	fn   func(ctx context.Context) error
	// done is closed once the task has been processed. Only barriers set it.
	done chan struct{}
}

// Stream runs the transfers and kernels issued to one device, one at a time
// and in issue order, on a dedicated goroutine.
//
// Once a task fails, the stream records the error and skips every task issued
// after it; the error is returned by every later Synchronize. Issuing work is
// safe from multiple goroutines, but the relative order of tasks issued
// concurrently is unspecified.
type Stream struct {
	dev   *Device
	tasks chan streamTask
	wg    sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	// closeMu serializes sends on tasks with closing it.
	closeMu struct {
		sync.RWMutex
		closed bool
	}
	errMu struct {
		sync.Mutex
		err error
	}

	// kernels is only touched by the worker goroutine.
	kernels invariants.KernelChecker
}

func newStream(dev *Device, queueDepth int) *Stream {
	s := &Stream{
		dev:   dev,
		tasks: make(chan streamTask, queueDepth),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.wg.Add(1)
	go s.runWorker()
	return s
}

func (s *Stream) runWorker() {
	defer s.wg.Done()
	for t := range s.tasks {
		if t.fn != nil && s.Err() == nil {
			start := crtime.NowMono()
			s.kernels.Enter()
			err := t.fn(s.ctx)
			s.kernels.Exit()
			s.dev.metrics.observeTask(start.Elapsed())
			if err != nil {
				err = errors.Wrapf(err, "device %d: %s", s.dev.id, errors.Safe(t.name))
				s.dev.logger.Errorf("%v", err)
				s.errMu.Lock()
				s.errMu.err = err
				s.errMu.Unlock()
			}
		}
		if t.done != nil {
			close(t.done)
		}
	}
}

func (s *Stream) enqueue(t streamTask) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closeMu.closed {
		return errors.Wrapf(ErrStreamClosed, "device %d", s.dev.id)
	}
	// Occasionally let the worker run ahead of the host.
	if invariants.Sometimes(10) {
		runtime.Gosched()
	}
	s.tasks <- t
	return nil
}

// Enqueue issues fn to the stream. It returns an error only if the stream is
// closed; failures of fn are reported by Synchronize.
func (s *Stream) Enqueue(name string, fn func(ctx context.Context) error) error {
	return s.enqueue(streamTask{name: name, fn: fn})
}

// Synchronize blocks until every task issued before the call has been
// processed and returns the stream's sticky error, if any.
func (s *Stream) Synchronize() error {
	done := make(chan struct{})
	if err := s.enqueue(streamTask{name: "synchronize", done: done}); err != nil {
		return err
	}
	<-done
	return s.Err()
}

// Err returns the stream's sticky error without waiting for pending tasks.
func (s *Stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.errMu.err
}

// close drains the pending tasks, stops the worker and returns the sticky
// error. Calling close more than once is allowed.
func (s *Stream) close() error {
	s.closeMu.Lock()
	if !s.closeMu.closed {
		s.closeMu.closed = true
		close(s.tasks)
	}
	s.closeMu.Unlock()
	s.wg.Wait()
	s.cancel()
	return s.Err()
}
