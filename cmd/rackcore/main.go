package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"rackcore/config"
	"rackcore/engine"
	"rackcore/messaging"
	"rackcore/racklock"
	"rackcore/rackstate"
	"rackcore/report"
	"rackcore/store"
	"rackcore/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "rackcore.yaml", "path to config file")
	writeConfig := flag.Bool("write-config", false, "write the effective config to -config and exit")
	hashPassword := flag.String("hash-password", "", "print a bcrypt hash for web.admin_password_hash and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("rackcore", Version)
		return
	}
	if *hashPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*hashPassword), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		fmt.Println(string(hash))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *writeConfig {
		if err := cfg.Save(*configPath); err != nil {
			log.Fatalf("write config: %v", err)
		}
		log.Printf("rackcore: config written to %s", *configPath)
		return
	}

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("rackcore: database open (%s)", cfg.Database.Driver)

	// Redis: rack summary cache and, optionally, the migration lock
	var rackCache *rackstate.RedisStore
	var locker racklock.Locker = racklock.NewLocal()
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := redisClient.Ping(ctx).Err()
		cancel()
		switch {
		case err == nil:
			log.Printf("rackcore: redis connected (%s)", cfg.Redis.Address)
			rackCache = rackstate.NewRedisStore(redisClient)
		case cfg.Capacity.LockBackend == "redis":
			log.Fatalf("redis required for lock backend: %v", err)
		default:
			log.Printf("rackcore: redis not available (%v), running without cache", err)
		}
		if cfg.Capacity.LockBackend == "redis" {
			locker = racklock.NewRedis(redisClient, cfg.Capacity.LockTTL)
			log.Printf("rackcore: migrations serialized through redis locks")
		}
	}

	// Messaging client
	msgClient := messaging.NewClient(&cfg.Messaging)
	if err := msgClient.Connect(); err != nil {
		log.Printf("rackcore: messaging connect failed (%v)", err)
	} else if cfg.Messaging.Backend != "none" {
		log.Printf("rackcore: messaging connected (%s)", cfg.Messaging.Backend)
	}
	defer msgClient.Close()

	// Engine
	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: *configPath,
		DB:         db,
		Locker:     locker,
		RackCache:  rackCache,
		MsgClient:  msgClient,
	})
	eng.Start()
	defer eng.Stop()

	// Outbox drainer (outbound events)
	drainer := messaging.NewOutboxDrainer(db, msgClient, cfg.Messaging.OutboxDrainInterval)
	drainer.Start()
	defer drainer.Stop()

	// Utilization report archive
	if cfg.Reports.Archive {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		objects, err := report.NewMinIOClient(ctx, &cfg.Reports.MinIO)
		cancel()
		if err != nil {
			log.Printf("rackcore: report archive disabled (%v)", err)
		} else {
			archiver := report.NewArchiver(eng.Planner(), objects, cfg.Reports.MinIO.Bucket, cfg.SiteID, cfg.Reports.Interval)
			archiver.Start()
			defer archiver.Stop()
			log.Printf("rackcore: archiving utilization reports to %s/%s every %s",
				cfg.Reports.MinIO.Endpoint, cfg.Reports.MinIO.Bucket, cfg.Reports.Interval)
		}
	}

	// Web server
	handler, stopWeb := www.NewRouter(eng)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("rackcore: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("rackcore: ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("rackcore: shutting down...")
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Printf("rackcore: stopped")
}
