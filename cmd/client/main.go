package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"securedeal-client/internal/apiclient"
	"securedeal-client/internal/cache"
	"securedeal-client/internal/chains/solana"
	"securedeal-client/internal/config"
	"securedeal-client/internal/gateway"
	"securedeal-client/internal/payment"
	"securedeal-client/internal/session"
	"securedeal-client/internal/store"
	"securedeal-client/internal/upload"
	"securedeal-client/internal/wizard"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	// Warm-start cache; a missing redis degrades to in-process memory so the
	// client still runs, just without restart persistence.
	var kv cache.Store
	rdb := cache.NewRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx); err != nil {
		logger.Warn("redis unavailable, using in-memory cache", zap.Error(err))
		kv = cache.NewMemory()
	} else {
		kv = rdb
		defer rdb.Close()
	}
	cancel()

	sess := session.New(kv)
	if err := sess.Load(context.Background()); err != nil {
		logger.Warn("session restore failed", zap.Error(err))
	}

	api := apiclient.New(cfg.APIBaseURL, cfg.RequestTimeout, sess, logger)
	deals := store.New(kv, logger)

	media := upload.NewMediaClient(cfg.MediaUploadURL, cfg.MediaDeleteURL, cfg.MediaPreset, cfg.RequestTimeout, logger)
	wiz := wizard.New(kv, api, media, logger)
	wiz.Load(context.Background())

	wallet, err := solana.New(cfg.SolanaRPCURL, cfg.USDCMint, cfg.WalletSecretKey, cfg.ConfirmTimeout, logger)
	if err != nil {
		logger.Fatal("failed to initialize wallet gateway", zap.Error(err))
	}
	payments := payment.NewOrchestrator(wallet, cfg.RecipientAddress, cfg.PaymentAmount, logger)

	handler := gateway.NewHandler(api, sess, deals, wiz, payments, logger)

	// Session restore: paint cached deals, then fire the two independent
	// revalidation fetches.
	if user := sess.CurrentUser(); user != nil && sess.Valid(time.Now()) {
		deals.WarmStart(context.Background(), user.ID)
		go func() {
			fresh, err := api.GetCurrentUser(context.Background())
			if err != nil {
				logger.Warn("current user refresh failed", zap.Error(err))
				return
			}
			if err := sess.SetUser(context.Background(), fresh); err != nil {
				logger.Warn("user cache write failed", zap.Error(err))
			}
		}()
		go func() {
			fetch := gateway.NewFetcher(api)
			if err := deals.Refresh(context.Background(), fetch, user); err != nil {
				logger.Warn("deal list refresh failed", zap.Error(err))
			}
		}()
	}

	r := chi.NewRouter()
	gateway.SetupRoutes(r, handler)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		logger.Info("securedeal client gateway listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("gateway server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("gateway shutdown failed", zap.Error(err))
	}
	logger.Info("securedeal client stopped")
}
