package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mcdev12/quizclient/go/internal/models"
	"github.com/mcdev12/quizclient/go/internal/quiz/config"
	"github.com/mcdev12/quizclient/go/internal/quiz/machine"
	"github.com/mcdev12/quizclient/go/internal/quiz/metrics"
	"github.com/mcdev12/quizclient/go/internal/quiz/session"
	"github.com/mcdev12/quizclient/go/internal/quiz/status"
	"github.com/mcdev12/quizclient/go/internal/quiz/view"
)

type Services struct {
	Metrics metrics.Collector
	Options []session.Option

	archive archiveStore
}

func setupServices(ctx context.Context, cfg config.Config, identity models.SessionIdentity) (*Services, error) {
	// Registry → collector → optional status server → optional archive

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	collector, err := metrics.NewPrometheusCollector(reg, machine.Phases())
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	s := &Services{
		Metrics: collector,
		Options: []session.Option{
			session.WithRenderer(session.RendererFunc(func(m view.Model) {
				fmt.Print("\n" + view.Text(m))
			})),
		},
	}

	if cfg.Status.Addr != "" {
		srv := status.New(cfg.Status.Addr, reg)
		s.Options = append(s.Options, session.WithRenderer(srv), session.WithService(srv.Run))
	}

	if cfg.Archive.Enabled && identity.IsHost() {
		a, err := setupArchive(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.archive = a
		s.Options = append(s.Options, session.WithArchiver(a))
	}

	return s, nil
}

func (s *Services) Close() {
	if s.archive != nil {
		s.archive.Close()
	}
}
