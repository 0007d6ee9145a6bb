package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-club-go/internal/cache"
	"github.com/ovaphlow/pitchfork/service-club-go/internal/member"
	"github.com/ovaphlow/pitchfork/service-club-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-club-go/internal/session"
	"github.com/ovaphlow/pitchfork/service-club-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-club-go/pkg/utilities"
)

func main() {
	// best-effort: without a .env file the real environment is used
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting club member service")

	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	sessionCfg, err := session.ConfigFromEnv()
	if err != nil {
		sugar.Fatalf("session config: %v", err)
	}
	if os.Getenv("SESSION_SECRET") == "" {
		sugar.Warn("SESSION_SECRET not set; sessions end when the process does")
	}
	sessions := session.NewService(sessionCfg)

	// one lookup cache for the lifetime of the process
	lookups := cache.New()
	svc := member.NewService(database.NewGateway(db), lookups, member.BcryptHasher{Cost: bcryptCost()}, sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.EnsureSchema(ctx); err != nil {
		sugar.Fatalf("ensure schema: %v", err)
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.RegisterRoutes(sugar, member.NewHandler(svc, sessions, sugar), sessions),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("listening", "addr", addr)

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	if err := db.PingContext(doneCtx); err != nil {
		sugar.Warnf("db ping on shutdown failed: %v", err)
	}

	sugar.Infow("goodbye", "cached_lookups", lookups.Len())
}

func bcryptCost() int {
	if v, err := strconv.Atoi(os.Getenv("BCRYPT_COST")); err == nil {
		return v
	}
	return 12
}
