package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stasyk411/gbr/config"
	"github.com/stasyk411/gbr/core/dispatch"
	"github.com/stasyk411/gbr/core/journal"
	coremetrics "github.com/stasyk411/gbr/core/metrics"
	"github.com/stasyk411/gbr/infra/store"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Store:   store.Config{Backend: store.BackendMemory},
		Journal: config.JournalConfig{Backend: backend, Path: filepath.Join(t.TempDir(), "journal")},
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestEngineJournalsLifecycle(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "jsonl")
	e, err := Open(ctx, cfg, nil)
	require.NoError(t, err)

	u, err := e.Units.CreateUnit(ctx, dispatch.UnitInput{Name: "Crew-A"})
	require.NoError(t, err)
	c, err := e.Calls.CreateCall(ctx, dispatch.CallInput{ObjectName: "Store X", Address: "Lenina 5"})
	require.NoError(t, err)
	_, err = e.Coordinator.Assign(ctx, c.ID, u.ID)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	js, err := OpenJournal(cfg.Journal)
	require.NoError(t, err)
	defer js.Close()
	recs, err := js.Query(ctx, journal.Query{CallID: c.ID})
	require.NoError(t, err)
	var kinds []string
	for _, r := range recs {
		kinds = append(kinds, r.Kind)
	}
	assert.Contains(t, kinds, "call_created")
	assert.Contains(t, kinds, "call_assigned")
	assert.Contains(t, kinds, "call_status")
}

func TestOpenJournalBackends(t *testing.T) {
	for _, backend := range []string{"jsonl", "rotating", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, backend)
			js, err := OpenJournal(cfg.Journal)
			require.NoError(t, err)
			require.NoError(t, js.Close())
		})
	}
}

func TestEngineWithoutJournal(t *testing.T) {
	e, err := Open(context.Background(), testConfig(t, "none"), nil)
	require.NoError(t, err)
	assert.Nil(t, e.Journal)
	require.NoError(t, e.Close())
}

type rosterSink struct {
	coremetrics.NopSink
	snaps []coremetrics.RosterSnapshot
}

func (s *rosterSink) RecordRoster(snap coremetrics.RosterSnapshot) error {
	s.snaps = append(s.snaps, snap)
	return nil
}

func TestRecordRoster(t *testing.T) {
	ctx := context.Background()
	e, err := Open(ctx, testConfig(t, "none"), nil)
	require.NoError(t, err)
	defer e.Close()
	_, err = e.Units.CreateUnit(ctx, dispatch.UnitInput{Name: "Crew-A"})
	require.NoError(t, err)
	_, err = e.Calls.CreateCall(ctx, dispatch.CallInput{ObjectName: "Store X", Address: "Lenina 5"})
	require.NoError(t, err)

	sink := &rosterSink{}
	require.NoError(t, RecordRoster(ctx, e, sink))
	require.Len(t, sink.snaps, 1)
	assert.Equal(t, 1, sink.snaps[0].Units["free"])
	assert.Equal(t, 1, sink.snaps[0].Calls["pending"])
	assert.Equal(t, 0, sink.snaps[0].Calls["completed"])
}
