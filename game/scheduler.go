package game

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// alarmScheduler keeps one durable alarm per room plus the in-process timer
// that wakes the room. Firing only enqueues the fire time; the room decides
// what it means.
type alarmScheduler struct {
	key     string
	alarms  AlarmStore
	clock   Clock
	fire    chan<- time.Time
	done    <-chan struct{}
	pending time.Time

	mu    sync.Mutex
	timer *time.Timer
}

func NewAlarmScheduler(key string, alarms AlarmStore, clock Clock, fire chan<- time.Time, done <-chan struct{}) *alarmScheduler {
	return &alarmScheduler{
		key:    key,
		alarms: alarms,
		clock:  clock,
		fire:   fire,
		done:   done,
	}
}

// Arm replaces any pending deadline with at.
func (s *alarmScheduler) Arm(ctx context.Context, at time.Time) error {
	if err := s.alarms.SetAlarm(ctx, s.key, at); err != nil {
		return fmt.Errorf("arming alarm for %s: %w", s.key, err)
	}
	s.pending = at
	s.resetTimer(at.Sub(s.clock.Now()))
	return nil
}

func (s *alarmScheduler) Cancel(ctx context.Context) error {
	s.stopTimer()
	if s.pending.IsZero() {
		return nil
	}
	s.pending = time.Time{}
	if err := s.alarms.DeleteAlarm(ctx, s.key); err != nil {
		return fmt.Errorf("deleting alarm for %s: %w", s.key, err)
	}
	return nil
}

func (s *alarmScheduler) Pending() time.Time {
	return s.pending
}

// Stop drops the in-process timer but keeps the durable alarm, so another
// process (or a later actor) still picks the deadline up.
func (s *alarmScheduler) Stop() {
	s.stopTimer()
}

func (s *alarmScheduler) resetTimer(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	if d < 0 {
		d = 0
	}
	s.timer = time.AfterFunc(d, func() {
		select {
		case s.fire <- s.clock.Now():
		case <-s.done:
		}
	})
}

func (s *alarmScheduler) stopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
