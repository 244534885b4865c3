// Copyright 2025 Certen Protocol

package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sandhi-labs/aapi-vac/pkg/adapter"
	"github.com/sandhi-labs/aapi-vac/pkg/config"
	"github.com/sandhi-labs/aapi-vac/pkg/database"
	"github.com/sandhi-labs/aapi-vac/pkg/evidencelog"
	"github.com/sandhi-labs/aapi-vac/pkg/gateway"
	"github.com/sandhi-labs/aapi-vac/pkg/policy"
	"github.com/sandhi-labs/aapi-vac/pkg/signing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	log.Printf("Starting AAPI gateway (listen=%s)", cfg.ListenAddr)

	keyStore := signing.NewKeyStore()

	receiptKey, err := loadOrGenerateReceiptKey(cfg, keyStore)
	if err != nil {
		log.Fatal("Failed to load or generate receipt signing key:", err)
	}
	log.Printf("Receipt signing key ready: %s", receiptKey.ID)

	var (
		logStore evidencelog.Store
		repos    *database.Repositories
		dbClient *database.Client
	)
	if cfg.DatabaseURL != "" {
		dbClient, err = database.NewClient(cfg)
		if err != nil {
			if cfg.DatabaseRequired {
				log.Fatal("Failed to connect to database:", err)
			}
			log.Printf("Database connection failed, falling back to in-memory evidence log: %v", err)
		} else {
			if err := dbClient.MigrateUp(context.Background()); err != nil {
				log.Printf("Database migration failed: %v", err)
			}
			repos = database.NewRepositories(dbClient)
			logStore = evidencelog.NewPostgresStore(dbClient)
			log.Println("Connected to database, evidence log backed by postgres")
		}
	}
	if logStore == nil {
		log.Println("No database configured, evidence log backed by memory")
		logStore = evidencelog.NewMemoryStore()
	}

	engine := policy.NewEngine()
	if cfg.DefaultPolicyDecision == "allow" {
		engine.WithDefaultAllow()
	}
	if cfg.PolicyBundlePath != "" {
		bundle, err := policy.LoadBundleFile(cfg.PolicyBundlePath)
		if err != nil {
			log.Fatal("Failed to load policy bundle:", err)
		}
		bundle.Register(engine)
		log.Printf("Loaded %d polic%s from %s", len(bundle.Policies), pluralY(len(bundle.Policies)), cfg.PolicyBundlePath)
	}

	registryBuilder := adapter.NewRegistryBuilder().WithHTTPAdapter()
	fileAdapter := adapter.NewFileAdapter().WithMaxReadSize(cfg.FileAdapterMaxReadSize)
	if cfg.FileAdapterBaseDir != "" {
		fileAdapter = fileAdapter.WithBaseDir(cfg.FileAdapterBaseDir)
	}
	registryBuilder = registryBuilder.WithFileAdapterConfig(fileAdapter)
	registry := registryBuilder.Build()
	dispatcher := adapter.NewDispatcher(registry)

	metrics := gateway.NewMetrics(prometheus.DefaultRegisterer)

	pipelineCfg := gateway.DefaultConfig()
	pipelineCfg.RequireCapabilities = cfg.RequireCapabilities
	pipelineCfg.GatewayID = "aapi-gateway"

	pipeline := gateway.NewPipeline(
		logStore,
		keyStore,
		gateway.NewMapCapabilityResolver(),
		engine,
		dispatcher,
		receiptKey,
		metrics,
		pipelineCfg,
	)

	handlers := gateway.NewHandlers(pipeline, repos, logStore, registry, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.Handle("/metrics", gateway.MetricsHandler())
	mux.HandleFunc("/v1/envelopes", handlers.HandleSubmit)
	mux.HandleFunc("/v1/envelopes/", routeEnvelopeSubpath(handlers))
	mux.HandleFunc("/v1/merkle/root", handlers.HandleMerkleRoot)
	mux.HandleFunc("/v1/merkle/proof", handlers.HandleMerkleProof)
	mux.HandleFunc("/v1/adapters", handlers.HandleAdapters)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("AAPI gateway listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start HTTP server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("Shutting down AAPI gateway...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if dbClient != nil {
		if err := dbClient.Close(); err != nil {
			log.Printf("database close error: %v", err)
		}
	}

	log.Printf("AAPI gateway stopped")
}

// routeEnvelopeSubpath dispatches GET /v1/envelopes/{id}, /receipt and
// /effects to their respective handlers based on the path suffix, since
// http.ServeMux does not support wildcard path segments on this Go version.
func routeEnvelopeSubpath(h *gateway.Handlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/receipt"):
			h.HandleGetReceipt(w, r)
		case strings.HasSuffix(r.URL.Path, "/effects"):
			h.HandleGetEffects(w, r)
		default:
			h.HandleGetEnvelope(w, r)
		}
	}
}

// loadOrGenerateReceiptKey loads the gateway's Ed25519 receipt-signing key
// from cfg.GatewaySigningKeyPath, generating and persisting a new one the
// first time the gateway starts.
func loadOrGenerateReceiptKey(cfg *config.Config, keyStore *signing.KeyStore) (*signing.KeyPair, error) {
	keyPath := cfg.GatewaySigningKeyPath
	if keyPath == "" {
		dataDir := cfg.DataDir
		if dataDir == "" {
			dataDir = "./data"
		}
		keyPath = filepath.Join(dataDir, "receipt_signing_key.hex")
	}

	keyDir := filepath.Dir(keyPath)
	if err := os.MkdirAll(keyDir, 0700); err != nil {
		return nil, fmt.Errorf("create key directory %s: %w", keyDir, err)
	}

	var seed []byte

	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		log.Printf("Generating new receipt signing key...")
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate ed25519 key: %w", err)
		}
		seed = priv.Seed()

		keyHex := hex.EncodeToString(seed)
		if err := os.WriteFile(keyPath, []byte(keyHex), 0600); err != nil {
			return nil, fmt.Errorf("save receipt signing key to %s: %w", keyPath, err)
		}
		log.Printf("Generated and saved new receipt signing key: %s", keyPath)
	} else {
		log.Printf("Loading existing receipt signing key from %s...", keyPath)
		data, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("read receipt signing key from %s: %w", keyPath, err)
		}
		seed, err = hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("decode receipt signing key from %s: %w", keyPath, err)
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("invalid receipt signing key size: expected %d, got %d", ed25519.SeedSize, len(seed))
		}
	}

	kid := signing.NewKeyID()
	kp, err := signing.KeyPairFromSeed(kid, seed, signing.KeyPurposeReceiptSigning)
	if err != nil {
		return nil, fmt.Errorf("derive key pair from seed: %w", err)
	}
	if err := keyStore.StoreKey(kp); err != nil {
		return nil, fmt.Errorf("store receipt signing key: %w", err)
	}
	return kp, nil
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
