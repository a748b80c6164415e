/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Save-a-Penny procurement server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse flags (env fallback)
  2. Initialize SQLite store
  3. Wire identity directory, workflow services, metrics
  4. Configure HTTP router
  5. Serve with graceful shutdown

CONFIGURATION:
  -port / PORT              HTTP server port (default: 8080)
  -db   / DATABASE_PATH     SQLite database path (default: saveapenny.db,
                            ":memory:" for in-memory)
  JWT_SIGNING_KEY           Token signing key (required outside dev)
  OPENAI_API_KEY            Enables proforma/receipt text extraction
  PRICE_TOLERANCE           Absolute unit-price tolerance for receipt
                            validation (default: 0, exact match)
  LOG_PRETTY                Console log output instead of JSON

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/saveapenny.db"

  # Run with in-memory database
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Nsarob/Save-a-penny/api"
	"github.com/Nsarob/Save-a-penny/extract"
	"github.com/Nsarob/Save-a-penny/identity"
	"github.com/Nsarob/Save-a-penny/metrics"
	"github.com/Nsarob/Save-a-penny/procure"
	"github.com/Nsarob/Save-a-penny/store/sqlite"
)

const tokenTTL = 24 * time.Hour

func main() {
	// Flags with env fallback
	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DATABASE_PATH", "saveapenny.db"), "SQLite database path")
	flag.Parse()

	log := newLogger()

	signingKey := envStr("JWT_SIGNING_KEY", "")
	if signingKey == "" {
		signingKey = "dev-signing-key-do-not-use-in-production"
		log.Warn().Msg("JWT_SIGNING_KEY not set, using insecure dev key")
	}

	tolerance := decimal.Zero
	if s := envStr("PRICE_TOLERANCE", ""); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			log.Fatal().Str("value", s).Msg("invalid PRICE_TOLERANCE")
		}
		tolerance = d
	}

	// Store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	// Services
	directory := identity.NewDirectory(store)
	tokens := identity.NewTokenService(signingKey, "save-a-penny", tokenTTL)
	authz := procure.NewAuthorizer(directory)
	m := metrics.New()

	var extractor extract.Extractor
	if key := envStr("OPENAI_API_KEY", ""); key != "" {
		extractor = extract.NewOpenAIExtractor(key, envStr("OPENAI_MODEL", ""))
		log.Info().Msg("document extraction enabled")
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, document extraction disabled")
	}

	handler := &api.Handler{
		Ledger:    procure.NewLedger(store, authz, log),
		Workflow:  procure.NewWorkflow(store, authz, log),
		Validator: procure.NewReceiptValidator(tolerance),
		Store:     store,
		Directory: directory,
		Users:     store,
		Tokens:    tokens,
		Extractor: extractor,
		Metrics:   m,
		Log:       log,
		Resetter:  store,
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Int("port", *port).Str("db", *dbPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("server stopped")
}

func newLogger() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if envStr("LOG_PRETTY", "") != "" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}
