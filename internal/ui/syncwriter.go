package ui

import (
	"io"
	"sync"
	"time"
)

const defaultSyncInterval = 200 * time.Millisecond

type syncWriteCloser interface {
	io.WriteCloser
	syncer
}

// SyncWriter flushes the full log to disk on a ticker, so a runner killed
// mid-build (job timeout, cancelled workflow) still leaves a readable log.
type SyncWriter struct {
	f        syncWriteCloser
	mu       sync.Mutex
	dirty    bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewSyncWriter(f syncWriteCloser, interval time.Duration) *SyncWriter {
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	sw := &SyncWriter{
		f:      f,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go sw.loop(interval)
	return sw
}

func (sw *SyncWriter) loop(interval time.Duration) {
	defer close(sw.doneCh)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sw.Sync()
		case <-sw.stopCh:
			sw.Sync()
			return
		}
	}
}

func (sw *SyncWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	n, err := sw.f.Write(p)
	if n > 0 {
		sw.dirty = true
	}
	return n, err
}

// Sync flushes now if anything was written since the last flush.
func (sw *SyncWriter) Sync() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if !sw.dirty {
		return nil
	}
	sw.dirty = false
	return sw.f.Sync()
}

// Close stops the ticker, flushes, and closes the file. Extra calls only
// report the close error again.
func (sw *SyncWriter) Close() error {
	var err error
	sw.stopOnce.Do(func() {
		close(sw.stopCh)
		<-sw.doneCh
		err = sw.f.Close()
	})
	return err
}
