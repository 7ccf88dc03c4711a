package main // Entry point package

import (
	"log" // Logging library

	"github.com/labstack/echo/v4"            // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // Echo's built-in middleware

	"github.com/iliyamo/snippet-vault/internal/config"
	"github.com/iliyamo/snippet-vault/internal/database"
	"github.com/iliyamo/snippet-vault/internal/handler"
	"github.com/iliyamo/snippet-vault/internal/repository"
	"github.com/iliyamo/snippet-vault/internal/router"
	queuepub "github.com/iliyamo/snippet-vault/internal/service"
)

func main() {
	cfg := config.Load() // Load environment config (.env honored in dev)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer func() { _ = db.Close() }()

	// Redis is optional: a nil client disables rate limiting.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	sessions := repository.NewSessionRepo(db)
	subs := repository.NewSubscriptionRepo(db)

	auth := handler.NewAuthHandler(cfg, users, sessions, subs, queuepub.Publish)

	e := echo.New()
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	router.RegisterRoutes(e)
	router.RegisterAuth(e, auth, subs, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
