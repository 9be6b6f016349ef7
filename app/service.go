package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stasyk411/gbr/api/crew"
	"github.com/stasyk411/gbr/api/dispatcher"
	"github.com/stasyk411/gbr/config"
	coremetrics "github.com/stasyk411/gbr/core/metrics"
	coremon "github.com/stasyk411/gbr/core/monitoring"
	"github.com/stasyk411/gbr/core/notify"
	"github.com/stasyk411/gbr/infra/logger"
	"github.com/stasyk411/gbr/infra/metrics"
	"github.com/stasyk411/gbr/infra/monitoring"
	"github.com/stasyk411/gbr/infra/mqtt"
)

// Service runs the engine with its transports: the dispatcher HTTP API, the
// crew MQTT channel, metrics and the roster job.
type Service struct {
	*Engine
	cfg  *config.Config
	sink coremetrics.MetricsSink
	mqtt *mqtt.Client
	cron *cron.Cron
	log  logger.Logger
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	svc := &Service{cfg: cfg, sink: sink, log: logg}
	var notifier notify.Notifier
	if cfg.MQTT.Enabled() {
		client, err := mqtt.NewClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.mqtt = client
		n, err := mqtt.NewNotifier(client)
		if err != nil {
			client.Disconnect()
			return nil, fmt.Errorf("crew notifier: %w", err)
		}
		notifier = n
	} else {
		logg.Warnf("mqtt disabled: crews will not be notified")
	}

	if svc.Engine, err = Open(ctx, cfg, notifier); err != nil {
		svc.closeTransports()
		return nil, err
	}
	if svc.mqtt != nil {
		h := crew.NewHandler(svc.Units, logger.New("crew"))
		if _, err := mqtt.ListenCrewCommands(svc.mqtt, h.Command); err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("crew listener: %w", err)
		}
	}
	return svc, nil
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.Bus, s.sink, logger.New("metrics"))
	if addr := s.cfg.Metrics.PrometheusAddress; addr != "" {
		coremon.Go("prom-server", func() {
			if err := metrics.StartPromServer(ctx, addr, s.log); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		})
	}
	if spec := s.cfg.Metrics.RosterSchedule; spec != "" {
		if err := s.startRoster(ctx, spec); err != nil {
			return err
		}
	}
	if !s.cfg.API.Enabled() {
		<-ctx.Done()
		return nil
	}
	srv := dispatcher.NewServer(dispatcher.Deps{
		Units:       s.Units,
		Calls:       s.Calls,
		Coordinator: s.Coordinator,
		Store:       s.Store,
		Geocoder:    s.Geocoder,
		Journal:     s.Journal,
		Log:         logger.New("api"),
	}, dispatcher.Identity{UserID: s.cfg.Dispatcher.ID, Token: s.cfg.Dispatcher.Token})
	return dispatcher.ListenAndServe(ctx, s.cfg.API.Address, srv.Handler(s.cfg.API.CORSOrigins), s.log)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.closeTransports()
	var err error
	if s.Engine != nil {
		err = s.Engine.Close()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	coremon.Flush(2 * time.Second)
	return err
}

func (s *Service) closeTransports() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.cron = nil
	}
	if s.mqtt != nil {
		s.mqtt.Disconnect()
		s.mqtt = nil
	}
}
