package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cards-chaos/internal/config"
	"cards-chaos/internal/db"
	"cards-chaos/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var conn *gorm.DB
	if cfg.DatabaseURL != "" {
		conn, err = db.Open(cfg)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		if cfg.AutoMigrate {
			if err := db.Migrate(conn); err != nil {
				log.Fatalf("database migration failed: %v", err)
			}
		}
	} else {
		log.Printf("DATABASE_URL not set, rooms are kept in memory")
	}

	srv := server.New(conn, cfg)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis url invalid: %v", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		srv.UseRedis(client)
		log.Printf("broadcast relay using redis")
	}
	if cfg.CardsCSV != "" {
		loaded, err := srv.SeedCards(ctx, cfg.CardsCSV)
		if err != nil {
			log.Fatalf("card seed failed path=%s: %v", cfg.CardsCSV, err)
		}
		log.Printf("card seed loaded path=%s cards=%d", cfg.CardsCSV, loaded)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Printf("cards-chaos server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		return srv.RunTimeoutSweeper(groupCtx)
	})
	group.Go(func() error {
		return srv.RunVideoSweeper(groupCtx)
	})
	group.Go(func() error {
		return srv.RunRelay(groupCtx)
	})

	if err := group.Wait(); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
	log.Printf("server stopped")
}
