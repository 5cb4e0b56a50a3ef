package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alexjbarnes/momo-credentials/internal/config"
	"github.com/alexjbarnes/momo-credentials/internal/logging"
	"github.com/alexjbarnes/momo-credentials/internal/server"
	"github.com/alexjbarnes/momo-credentials/momo"
	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/sync/errgroup"
)

var Version = "dev"

// warmInterval is how often serve checks the cached token.
const warmInterval = 30 * time.Second

// maxGetBody caps what the get command prints.
const maxGetBody = 1 << 20

const usage = `usage: momo-credentials <command> [args]

commands:
  provision   create and store the API user and key if none exist
  token       print a valid bearer token to stdout
  user        show the stored API user as registered with MoMo
  get <path>  send an authenticated GET to a product endpoint
  status      show configuration and stored credentials
  forget      delete the stored credentials of the integration
  serve       keep a token warm and serve /healthz, /status and /metrics

Configuration is read from the environment and an optional .env file.
`

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"serve"}
	}

	switch args[0] {
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	case "version":
		fmt.Println(Version)
		return
	}

	if err := run(args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	switch cmd {
	case "provision":
		return runProvision(ctx, a, os.Stdout)
	case "token":
		return runToken(ctx, a, os.Stdout)
	case "user":
		return runUser(ctx, a, os.Stdout)
	case "get":
		if len(args) != 1 {
			return fmt.Errorf("get takes exactly one path argument")
		}

		return runGet(ctx, a, args[0], os.Stdout)
	case "status":
		return runStatus(ctx, a, os.Stdout)
	case "forget":
		if err := a.forget(ctx); err != nil {
			return fmt.Errorf("forgetting credentials: %w", err)
		}

		logger.Info("stored credentials removed; the API user stays registered with MoMo")

		return nil
	case "serve":
		return runServe(ctx, a)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
}

func runProvision(ctx context.Context, a *app, out io.Writer) error {
	creds, err := a.manager.EnsureCredentials(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, creds.User.ReferenceID)

	return nil
}

func runToken(ctx context.Context, a *app, out io.Writer) error {
	token, err := a.manager.GetToken(ctx)
	if err != nil {
		return err
	}

	a.logger.Debug("token ready", slog.Time("expires_at", token.ExpiresAt))
	fmt.Fprintln(out, token.Value)

	return nil
}

func runUser(ctx context.Context, a *app, out io.Writer) error {
	creds, err := a.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading stored credentials: %w", err)
	}

	if creds == nil {
		return fmt.Errorf("no stored credentials for %q; run provision first", a.cfg.Integration)
	}

	info, err := a.client.GetAPIUser(ctx, creds.User.ReferenceID, a.cfg.SubscriptionKey)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "reference id\t%s\n", creds.User.ReferenceID)
	fmt.Fprintf(tw, "callback host\t%s\n", info.ProviderCallbackHost)
	fmt.Fprintf(tw, "target environment\t%s\n", info.TargetEnvironment)

	return tw.Flush()
}

func runGet(ctx context.Context, a *app, path string, out io.Writer) error {
	httpClient := cleanhttp.DefaultClient()
	httpClient.Timeout = 30 * time.Second
	httpClient.Transport = a.transport()

	target := strings.TrimRight(a.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	a.logger.Info("product call", slog.String("path", path), slog.Int("status", resp.StatusCode))

	if _, err := io.Copy(out, io.LimitReader(resp.Body, maxGetBody)); err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	fmt.Fprintln(out)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}

	return nil
}

func runStatus(ctx context.Context, a *app, out io.Writer) error {
	creds, err := a.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading stored credentials: %w", err)
	}

	ref := "none"
	if creds != nil {
		ref = creds.User.ReferenceID.String()
	}

	stored, err := a.integrations(ctx)
	if err != nil {
		return fmt.Errorf("listing stored integrations: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "integration\t%s\n", a.cfg.Integration)
	fmt.Fprintf(tw, "environment\t%s\n", a.cfg.TargetEnvironment)
	fmt.Fprintf(tw, "product\t%s\n", a.client.Product())
	fmt.Fprintf(tw, "store\t%s\n", a.cfg.Store)
	fmt.Fprintf(tw, "reference id\t%s\n", ref)
	fmt.Fprintf(tw, "stored integrations\t%s\n", strings.Join(stored, ", "))
	fmt.Fprintf(tw, "token\t%s\n", a.manager.Status().State)

	return tw.Flush()
}

// runServe keeps a token warm and serves the status endpoints until ctx
// is cancelled.
func runServe(ctx context.Context, a *app) error {
	a.logger.Info("momo-credentials starting",
		slog.String("version", Version),
		slog.String("integration", a.cfg.Integration),
		slog.String("environment", a.cfg.TargetEnvironment),
		slog.String("product", a.cfg.Product),
		slog.String("store", a.cfg.Store),
	)

	mux := server.NewMux(server.MuxConfig{
		Managers: []server.StatusReporter{a.manager},
		Gatherer: a.registry,
		Logger:   a.logger,
		Health:   a.health,
	})

	srv := &http.Server{
		Addr:         a.cfg.MetricsListenAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		keepWarm(gctx, a.manager, a.logger)
		return nil
	})

	g.Go(func() error {
		a.logger.Info("starting status server", slog.String("listen", srv.Addr))

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("status server error: %w", err)
		}

		return nil
	})

	// Shutdown when context is cancelled.
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down status server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// keepWarm fetches a token now and then on every tick, so the first real
// caller after an expiry rarely waits on issuance. Failures are logged and
// retried on the next tick.
func keepWarm(ctx context.Context, m *momo.Manager, logger *slog.Logger) {
	ticker := time.NewTicker(warmInterval)
	defer ticker.Stop()

	for {
		if _, err := m.GetToken(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("keeping token warm failed",
				slog.String("error", err.Error()),
				slog.Bool("transient", momo.IsTransient(err)),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
