// Package main is the entry point for zonewarden, the DNS-as-a-service
// control plane that mediates authenticated, authorized, auditable
// changes to authoritative DNS zones.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zonewarden/zonewarden/internal/config"
	"github.com/zonewarden/zonewarden/internal/crypto"
	"github.com/zonewarden/zonewarden/internal/logging"
	"github.com/zonewarden/zonewarden/internal/metrics"
	"github.com/zonewarden/zonewarden/internal/server"
	"github.com/zonewarden/zonewarden/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	port := flag.Int("port", 0, "override listening port (default: from config or 8443)")
	host := flag.String("host", "", "override listening host (default: from config or 0.0.0.0)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	algebra, err := buildAlgebra(cfg.Auth)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize crypto algebra: %v\n", err)
		os.Exit(1)
	}

	zones, principals, closer, err := buildRepositories(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize repository: %v\n", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer()
	}

	if cfg.Observability.Metrics {
		metrics.Register()
	}

	srv := server.New(cfg, zones, principals, algebra)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("zonewarden listening on %s", addr)
		if err := srv.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	select {
	case sig := <-sigCh:
		log.Printf("received signal %v, shutting down...", sig)

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		log.Printf("server stopped.")

	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}
}

// buildAlgebra selects the crypto.Algebra implementation named by
// cfg.CryptoAlgebra. It is composed once at startup and passed explicitly
// into the server, rather than looked up from a process-wide global.
func buildAlgebra(cfg config.AuthConfig) (crypto.Algebra, error) {
	switch cfg.CryptoAlgebra {
	case "", "noop":
		return crypto.Noop{}, nil
	case "aesgcm", "aes-gcm":
		key, err := hex.DecodeString(cfg.EncryptionKeyHex)
		if err != nil {
			return nil, fmt.Errorf("decoding auth.encryption_key_hex: %w", err)
		}
		return crypto.NewAESGCM(key)
	default:
		return nil, fmt.Errorf("unknown auth.crypto_algebra %q", cfg.CryptoAlgebra)
	}
}

// buildRepositories constructs the ZoneRepository and PrincipalStore
// named by cfg.Repository.Engine, returning an optional close function the
// caller must invoke on shutdown.
func buildRepositories(ctx context.Context, cfg *config.Config) (store.ZoneRepository, store.PrincipalStore, func(), error) {
	switch cfg.Repository.Engine {
	case "", "memory":
		return store.NewMemoryZoneRepository(), store.NewMemoryPrincipalStore(), nil, nil

	case "sqlite":
		zones, err := store.NewSQLiteZoneRepository(cfg.Repository.SQLite.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		principals := store.NewSQLitePrincipalStore(zones)
		return zones, principals, func() { zones.Close() }, nil

	case "dynamodb":
		zones, err := store.NewDynamoDBZoneRepository(ctx, &cfg.Repository.DynamoDB)
		if err != nil {
			return nil, nil, nil, err
		}
		principals := store.NewDynamoDBPrincipalStore(zones)
		return zones, principals, nil, nil

	case "firestore":
		zones, err := store.NewFirestoreZoneRepository(ctx, &cfg.Repository.Firestore)
		if err != nil {
			return nil, nil, nil, err
		}
		principals := store.NewFirestorePrincipalStore(zones)
		return zones, principals, func() { zones.Close() }, nil

	case "cosmos":
		zones, err := store.NewCosmosZoneRepository(ctx, &cfg.Repository.Cosmos)
		if err != nil {
			return nil, nil, nil, err
		}
		principals := store.NewCosmosPrincipalStore(zones)
		return zones, principals, nil, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown repository.engine %q", cfg.Repository.Engine)
	}
}
