package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stasyk411/gbr/core/dispatch"
	coremetrics "github.com/stasyk411/gbr/core/metrics"
	coremon "github.com/stasyk411/gbr/core/monitoring"
)

// RecordRoster counts units and calls by status and hands the snapshot to
// rec.
func RecordRoster(ctx context.Context, e *Engine, rec coremetrics.RosterRecorder) error {
	st, err := dispatch.Snapshot(ctx, e.Store)
	if err != nil {
		return err
	}
	return rec.RecordRoster(coremetrics.RosterSnapshot{Units: st.Units, Calls: st.Calls, Time: st.At})
}

func (s *Service) startRoster(ctx context.Context, spec string) error {
	rec, ok := s.sink.(coremetrics.RosterRecorder)
	if !ok {
		s.log.Warnf("metrics sink does not record roster snapshots")
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		jctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := RecordRoster(jctx, s.Engine, rec); err != nil {
			s.log.Errorf("roster snapshot: %v", err)
			coremon.CaptureException(err, map[string]string{"module": "roster"})
		}
	})
	if err != nil {
		return fmt.Errorf("schedule roster job: %w", err)
	}
	c.Start()
	s.cron = c
	s.log.Infof("roster snapshots scheduled: %s", spec)
	return nil
}
