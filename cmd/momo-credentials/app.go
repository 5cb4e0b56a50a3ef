package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alexjbarnes/momo-credentials/internal/config"
	"github.com/alexjbarnes/momo-credentials/internal/metrics"
	"github.com/alexjbarnes/momo-credentials/internal/state"
	"github.com/alexjbarnes/momo-credentials/momo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// app is the wired credential stack for one integration.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   *momo.Client
	store    momo.CredentialStore
	manager  *momo.Manager
	registry *prometheus.Registry

	health       func(ctx context.Context) error
	forget       func(ctx context.Context) error
	integrations func(ctx context.Context) ([]string, error)
	closers      []func() error
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	client, err := momo.NewClient(momo.ClientConfig{
		BaseURL:      cfg.BaseURL,
		Product:      momo.Product(cfg.Product),
		CallbackHost: cfg.CallbackHost,
	})
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, client: client}

	if err := a.openStore(); err != nil {
		return nil, err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	manager, err := momo.NewManager(momo.ManagerConfig{
		Integration:     cfg.Integration,
		SubscriptionKey: cfg.SubscriptionKey,
		Client:          client,
		Store:           a.store,
		SafetyMargin:    cfg.SafetyMargin,
		IssueTimeout:    cfg.IssueTimeout,
		Observer:        metrics.New(a.registry),
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating manager: %w", err)
	}

	a.manager = manager

	return a, nil
}

func (a *app) openStore() error {
	var sealer *state.Sealer

	if a.cfg.Passphrase != "" {
		s, err := state.NewSealer(a.cfg.Passphrase)
		if err != nil {
			return fmt.Errorf("creating sealer: %w", err)
		}

		sealer = s
	}

	integration := a.cfg.Integration

	switch a.cfg.Store {
	case config.StoreStatic:
		a.store = state.NewStatic(a.cfg.PinnedCredentials())
		a.forget = func(context.Context) error {
			return errors.New("pinned credentials live in the environment; unset MOMO_API_USER_ID and MOMO_API_KEY instead")
		}
		a.integrations = func(context.Context) ([]string, error) { return []string{integration}, nil }

	case config.StoreRedis:
		r, err := state.NewRedis(&state.RedisConfig{
			Address:  a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
		}, sealer)
		if err != nil {
			return fmt.Errorf("opening redis store: %w", err)
		}

		a.store = r.Credentials(integration)
		a.health = r.Health
		a.forget = func(ctx context.Context) error { return r.Forget(ctx, integration) }
		a.integrations = r.Integrations
		a.closers = append(a.closers, r.Close)

	default:
		s, err := state.LoadAt(a.cfg.DBPath, sealer)
		if err != nil {
			return fmt.Errorf("opening credential db: %w", err)
		}

		a.store = s.Credentials(integration)
		a.forget = func(context.Context) error { return s.Forget(integration) }
		a.integrations = func(context.Context) ([]string, error) { return s.Integrations() }
		a.closers = append(a.closers, s.Close)
	}

	a.logger.Debug("credential store ready",
		slog.String("store", a.cfg.Store),
		slog.Bool("sealed", sealer != nil),
	)

	return nil
}

// Close releases the store.
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("closing store", slog.String("error", err.Error()))
		}
	}
}

// transport returns a RoundTripper that authenticates product calls.
func (a *app) transport() *momo.Transport {
	return &momo.Transport{
		Source:            a.manager,
		SubscriptionKey:   a.cfg.SubscriptionKey,
		TargetEnvironment: a.cfg.TargetEnvironment,
	}
}
