package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"quizdesk/internal/app"
	"quizdesk/internal/auth"
	"quizdesk/internal/cache"
	"quizdesk/internal/db"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Printf("config error: %v", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbConn, err := db.OpenPostgresWithConfig(ctx, cfg.DBDSN, db.PostgresConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifeMins) * time.Minute,
	})
	if err != nil {
		log.Printf("database error: %v", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := db.Migrate(ctx, dbConn); err != nil {
		log.Printf("migration error: %v", err)
		os.Exit(1)
	}

	rdb, err := cache.OpenRedis(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Printf("redis error: %v", err)
		os.Exit(1)
	}
	defer rdb.Close()

	if cfg.AdminPassword != "" {
		authSvc := auth.NewService(dbConn, auth.ServiceConfig{BcryptCost: cfg.BcryptCost})
		if err := authSvc.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Printf("admin bootstrap error: %v", err)
			os.Exit(1)
		}
	}

	r := app.NewRouter(cfg, dbConn, rdb)

	log.Printf("quizdesk web listening on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
