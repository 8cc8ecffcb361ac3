package service

import (
	"context"
	"time"

	"captchahub/internal/platform/logger"
)

// Run sweeps timed out tasks out of the registry until ctx ends
func (s *Svc) Run(ctx context.Context) error {
	log := logger.Named("captcha-sweeper")
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := s.sweep(); n > 0 {
				log.Info().Int("removed", n).Int("registered", s.mgr.Len()).Msg("swept expired captcha tasks")
			}
		}
	}
}

// sweep removes tasks timed out for longer than the retention and forgets old settled ones
func (s *Svc) sweep() int {
	now := s.now()
	removed := 0

	for _, v := range s.mgr.Snapshot() {
		if !v.TimedOut {
			s.mu.Lock()
			delete(s.expiring, v.ID)
			s.mu.Unlock()
			continue
		}
		s.mu.Lock()
		since, seen := s.expiring[v.ID]
		if !seen {
			since = now
			s.expiring[v.ID] = now
		}
		s.mu.Unlock()
		if v.WaitUntil.After(since) {
			since = v.WaitUntil
		}
		if now.Sub(since) < s.cfg.Retention {
			continue
		}

		t := s.mgr.GetTaskByID(v.ID)
		if t == nil {
			continue
		}
		if t.Failure() == "" && !t.HasResult() {
			t.Fail("timed out")
		}
		s.settle(t)
		removed++
	}

	s.mu.Lock()
	for id, st := range s.settled {
		if now.Sub(st.at) >= s.cfg.Retention {
			delete(s.settled, id)
		}
	}
	s.mu.Unlock()
	return removed
}
