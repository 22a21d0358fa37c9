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

	"binwatch/config"
	"binwatch/engine"
	"binwatch/events"
	"binwatch/livestate"
	"binwatch/messaging"
	"binwatch/store"
	"binwatch/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "binwatch.yaml", "path to config file")
	flag.Parse()

	if *showVersion {
		fmt.Println("binwatch", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("binwatch: database open (%s)", db.Name())

	ctx := context.Background()
	if err := store.RunMigrations(ctx, db, cfg); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	if err := store.SeedDefaultBins(ctx, db, &cfg.Alerts); err != nil {
		log.Printf("binwatch: seed default bins: %v", err)
	}

	// Redis live-state mirror
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	var mirror *livestate.Mirror
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Printf("binwatch: redis not available (%v), running without cache", err)
	} else {
		log.Printf("binwatch: redis connected (%s)", cfg.Redis.Address)
		mirror = livestate.NewMirror(redisClient)
	}
	cancel()
	defer redisClient.Close()

	// Messaging (MQTT readings in, Kafka alerts out)
	msgClient := messaging.NewClient(&cfg.Messaging)
	if err := msgClient.Connect(); err != nil {
		log.Printf("binwatch: messaging connect failed (%v)", err)
	}
	defer msgClient.Close()

	// Engine
	bus := events.NewBus()
	eng := engine.New(cfg, db, bus, mirror, msgClient)
	if err := eng.Start(ctx); err != nil {
		log.Fatalf("engine start: %v", err)
	}
	defer eng.Stop()

	// Web server
	handler, _ := www.NewRouter(eng)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		log.Printf("binwatch: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("binwatch: ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("binwatch: shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Printf("binwatch: stopped")
}
