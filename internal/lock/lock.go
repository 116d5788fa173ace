// Package lock serializes bookings that compete for the same clock hour.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"clinicbook/internal/model"
)

// ErrLockTimeout is returned, together with model.ErrTransient, when the
// lock could not be acquired within the wait bound.
var ErrLockTimeout = errors.New("slot lock wait exceeded")

// Locker acquires a named lock. The returned func releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// HourKey names the lock guarding one clock hour of a doctor's day. Every
// slot that may conflict with clock, its half-hour sibling included, maps
// to the same key.
func HourKey(doctorID int64, date, clock string) (string, error) {
	m, err := model.ParseClock(clock)
	if err != nil {
		return "", err
	}
	top, _ := model.HourSiblings(m)
	return fmt.Sprintf("slot:%d:%s:%02d", doctorID, date, top/60), nil
}

func timeoutErr(key string) error {
	return fmt.Errorf("lock %s: %w: %w", key, model.ErrTransient, ErrLockTimeout)
}

// LocalLocker is an in-process Locker.
type LocalLocker struct {
	wait time.Duration

	mu    sync.Mutex
	slots map[string]*localSlot
}

type localSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates a locker that waits at most wait for a held key.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{wait: wait, slots: make(map[string]*localSlot)}
}

// Lock waits for key until it is free or the wait bound passes. The
// returned func may be called more than once.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &localSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
	case <-timer.C:
		l.release(key, s)
		return nil, timeoutErr(key)
	case <-ctx.Done():
		l.release(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(key, s)
		})
	}, nil
}

func (l *LocalLocker) release(key string, s *localSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// held reports how many keys have holders or waiters.
func (l *LocalLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
