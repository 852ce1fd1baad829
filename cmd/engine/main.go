package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quickexpert/internal/config"
	"quickexpert/internal/database"
	"quickexpert/internal/directory"
	"quickexpert/internal/engine"
	"quickexpert/internal/handlers"
	"quickexpert/internal/identity"
	"quickexpert/internal/utils"
	"quickexpert/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
)

// application is the assembled server and everything it must release on exit.
type application struct {
	handler http.Handler
	engine  *engine.Engine
	store   database.KVStore
	stopHub context.CancelFunc
	detach  func()
}

func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	metrics := utils.NewMetricsCollector()

	store, err := database.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %v", cfg.Storage.Type, err)
	}
	log.Printf("Using %s storage", cfg.Storage.Type)

	var (
		verifier identity.Verifier
		local    *identity.LocalProvider
	)
	switch cfg.Auth.Provider {
	case config.AuthFirebase:
		app, err := identity.SetupFirebase(ctx, cfg.Auth.ProjectID, cfg.Auth.CredentialsFile)
		if err != nil {
			store.Close(ctx)
			return nil, err
		}
		firebaseVerifier, err := identity.NewFirebaseVerifier(ctx, app)
		if err != nil {
			store.Close(ctx)
			return nil, err
		}
		verifier = firebaseVerifier
	default:
		local = identity.NewLocalProvider(store, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		verifier = local
	}

	dir, err := directory.Load()
	if err != nil {
		store.Close(ctx)
		return nil, err
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := websocket.NewHub()
	go hub.Run(hubCtx)

	system := actor.NewActorSystem()
	eng := engine.NewEngine(system, database.NewInboxRepository(store), metrics, engine.Options{
		DeliveryDelay:  cfg.Messaging.DeliveryDelay,
		RequestTimeout: cfg.Server.RequestTimeout,
		Notifier:       hub,
	})

	session := identity.NewSession()
	detach := eng.AttachIdentity(session)

	server := handlers.NewServer(eng, session, verifier, local, dir, hub, metrics)
	server.AllowedOrigins = cfg.AllowedOrigins
	server.MetricsEnabled = cfg.Server.MetricsEnabled

	return &application{
		handler: server.Routes(),
		engine:  eng,
		store:   store,
		stopHub: stopHub,
		detach:  detach,
	}, nil
}

func (a *application) Close(ctx context.Context) {
	a.detach()
	a.engine.Stop()
	a.stopHub()
	if err := a.store.Close(ctx); err != nil {
		log.Printf("Error closing storage: %v", err)
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := newApplication(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{Addr: serverAddr, Handler: app.handler}

	// Server run context
	serverCtx, serverStopCtx := context.WithCancel(context.Background())

	// Listen for syscall signals for process to interrupt/quit
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig
		log.Println("Shutting down...")

		// Shutdown signal with grace period of 30 seconds
		shutdownCtx, cancelFunc := context.WithTimeout(serverCtx, 30*time.Second)
		defer cancelFunc()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
		}
		app.Close(shutdownCtx)
		serverStopCtx()
	}()

	log.Printf("Starting server on %s", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}

	<-serverCtx.Done()
	log.Println("Server stopped")
}
