package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/stasyk411/gbr/config"
	"github.com/stasyk411/gbr/core/dispatch"
	"github.com/stasyk411/gbr/core/events"
	coregeo "github.com/stasyk411/gbr/core/geocode"
	"github.com/stasyk411/gbr/core/journal"
	coremon "github.com/stasyk411/gbr/core/monitoring"
	"github.com/stasyk411/gbr/core/notify"
	corestore "github.com/stasyk411/gbr/core/store"
	"github.com/stasyk411/gbr/infra/geocode"
	"github.com/stasyk411/gbr/infra/logger"
	"github.com/stasyk411/gbr/infra/store"
	"github.com/stasyk411/gbr/internal/eventbus"
)

// journalBuffer bounds the events queued for the journal writer.
const journalBuffer = 256

// Engine is the dispatch core bound to its store, event bus and journal. The
// CLI uses it directly; Service adds the transports.
type Engine struct {
	Store       corestore.Store
	Units       *dispatch.UnitManager
	Calls       *dispatch.CallManager
	Coordinator *dispatch.Coordinator
	Journal     journal.Store
	Geocoder    coregeo.Geocoder
	Bus         *eventbus.TypedBus[events.Event]

	journalDone chan struct{}
}

// Open builds the engine from cfg. notifier may be nil.
func Open(ctx context.Context, cfg *config.Config, notifier notify.Notifier) (*Engine, error) {
	log := logger.New("engine")
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	gc, err := geocode.New(cfg.Geocode)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("geocoder: %w", err)
	}
	e := &Engine{Store: st, Geocoder: gc, Bus: eventbus.NewTyped[events.Event]()}
	if e.Units, err = dispatch.NewUnitManager(st, e.Bus, logger.New("units")); err != nil {
		return nil, e.fail(err)
	}
	if e.Calls, err = dispatch.NewCallManager(st, gc, cfg.Dispatch, e.Bus, logger.New("calls")); err != nil {
		return nil, e.fail(err)
	}
	if e.Coordinator, err = dispatch.NewCoordinator(st, notifier, cfg.Dispatch, e.Bus, logger.New("coordinator")); err != nil {
		return nil, e.fail(err)
	}
	if cfg.Journal.Enabled() {
		if e.Journal, err = OpenJournal(cfg.Journal); err != nil {
			return nil, e.fail(fmt.Errorf("open journal: %w", err))
		}
		rec := journal.NewRecorder(e.Journal, logger.New("journal"))
		sub := e.Bus.SubscribeBuffered(journalBuffer)
		e.journalDone = make(chan struct{})
		coremon.Go("journal", func() {
			defer close(e.journalDone)
			rec.Run(context.Background(), sub)
		})
	}
	log.Infof("engine ready: store=%s journal=%s", cfg.Store.Backend, cfg.Journal.Backend)
	return e, nil
}

func (e *Engine) fail(err error) error {
	_ = e.Store.Close()
	return err
}

// OpenJournal returns the journal store selected by cfg.
func OpenJournal(cfg config.JournalConfig) (journal.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return journal.NewSQLiteStore(cfg.Path)
	case "rotating":
		return journal.NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	default:
		return journal.NewJSONLStore(cfg.Path)
	}
}

// Close stops the event bus, drains the journal and closes the stores.
func (e *Engine) Close() error {
	e.Bus.Close()
	var errs []error
	if e.Journal != nil {
		<-e.journalDone
		if err := e.Journal.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.Store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
