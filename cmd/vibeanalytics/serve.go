package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ttracx/vibeanalytics/internal/billing"
	"github.com/ttracx/vibeanalytics/internal/geo"
	"github.com/ttracx/vibeanalytics/internal/ingest"
	transport "github.com/ttracx/vibeanalytics/internal/transport/http"
)

var skipMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply migrations on start")
	rootCmd.AddCommand(serveCmd)
}

// billingProvider picks the Stripe mode the credentials allow. It returns a
// nil interface when billing is not configured at all.
func billingProvider() billing.Provider {
	switch {
	case cfg.StripeSecretKey != "":
		return billing.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	case cfg.StripeWebhookSecret != "":
		log.Warn("Stripe secret key not set; webhooks are verified but plan changes that need the API will fail.")
		return billing.NewStripeVerifier(cfg.StripeWebhookSecret)
	default:
		log.Warn("Stripe is not configured; billing endpoints are disabled.")
		return nil
	}
}

func locator() geo.Locator {
	if cfg.GeoIPPath == "" {
		return geo.Nop{}
	}
	m, err := geo.Open(cfg.GeoIPPath)
	if err != nil {
		log.WithError(err).Warn("GeoIP database unavailable; country and city stay empty.")
		return geo.Nop{}
	}
	return m
}

func serve() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("Connected to database.")

	if !skipMigrate {
		if err := db.Migrate(); err != nil {
			return err
		}
	}

	loc := locator()
	if m, ok := loc.(*geo.MaxMind); ok {
		defer m.Close()
	}

	now := func() time.Time { return time.Now().UTC() }
	deps := &transport.ServerDeps{
		Cfg:      cfg,
		Ingestor: ingest.NewIngestor(db, loc, now),
		Billing:  billing.NewService(billingProvider(), db, cfg.AppURL),
		Store:    db,
		Now:      now,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           deps.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("Listening.")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down.")
	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel2()
	return srv.Shutdown(shutdownCtx)
}
