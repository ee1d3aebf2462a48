// Command aurarouter wires the compute fabric and its collaborators into
// a running process: domain config, usage/privacy stores, the optional
// Redis-backed session manager, and (if AURAROUTER_ADMIN_ADDR is set) the
// read-only admin HTTP surface. Shutdown drains in-flight requests under
// a bounded context after SIGINT/SIGTERM.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/auracore/aurarouter/admin"
	"github.com/auracore/aurarouter/advisor"
	"github.com/auracore/aurarouter/config"
	"github.com/auracore/aurarouter/fabric"
	"github.com/auracore/aurarouter/logger"
	"github.com/auracore/aurarouter/privacy"
	"github.com/auracore/aurarouter/procconfig"
	"github.com/auracore/aurarouter/session"
	"github.com/auracore/aurarouter/usage"
)

var log = logger.New("main")

func main() {
	os.Exit(run())
}

func run() int {
	pc := procconfig.Load()
	log.Info().Str("env", pc.Env).Msg("aurarouter starting")

	domainCfg, err := config.Load(pc.DomainConfigPath)
	if err != nil {
		log.Error().Err(err).Msg("domain configuration not found")
		return 1
	}

	if err := os.MkdirAll(pc.DataDir, 0o755); err != nil {
		log.Error().Err(err).Str("dir", pc.DataDir).Msg("failed to create data directory")
		return 1
	}

	usageStore, err := usage.Open(filepath.Join(pc.DataDir, "usage.db"))
	if err != nil {
		log.Error().Err(err).Msg("failed to open usage store")
		return 1
	}
	defer usageStore.Close()

	privacyStore, err := privacy.OpenWith(usageStore.DB())
	if err != nil {
		log.Error().Err(err).Msg("failed to open privacy store")
		return 1
	}

	advisors := advisor.NewRegistry()
	f := fabric.New(domainCfg, usageStore, privacyStore, advisors)

	var redisClient *redis.Client
	if pc.SessionsEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     pc.RedisAddr,
			Password: pc.RedisPassword,
			DB:       pc.RedisDB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Warn().Err(err).Msg("redis ping failed; sessions will be unavailable")
		} else {
			sessionStore := session.NewStore(redisClient)
			f.EnableSessions(sessionStore, session.Config{
				AutoGist:              pc.AutoGist,
				CondensationThreshold: pc.CondensationThreshold,
			})
			log.Info().Msg("session manager enabled")
		}
	}

	var srv *http.Server
	if pc.AdminAddr != "" {
		srv = &http.Server{
			Addr:         pc.AdminAddr,
			Handler:      admin.NewRouter(f),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Info().Str("addr", pc.AdminAddr).Msg("admin surface listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("admin server failed")
			}
		}()
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done
	log.Info().Msg("shutdown signal received")

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), pc.GracefulTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("graceful admin shutdown failed")
		}
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	log.Info().Msg("aurarouter stopped")
	return 0
}
