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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/skillbay/marketplace/internal/config"
	"github.com/skillbay/marketplace/internal/es"
	"github.com/skillbay/marketplace/internal/handlers"
	"github.com/skillbay/marketplace/internal/handlers/auth"
	"github.com/skillbay/marketplace/internal/logging"
	"github.com/skillbay/marketplace/internal/mykafka"
	"github.com/skillbay/marketplace/internal/payfast"
	"github.com/skillbay/marketplace/internal/service/token"
	"github.com/skillbay/marketplace/internal/store"
	httpserver "github.com/skillbay/marketplace/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	jwtSecret := []byte(configuration.JWT_SECRET)
	refreshSecret := []byte(configuration.REFRESH_SECRET)

	prod, err := mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
	if err != nil {
		log.Fatal(err)
	}

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	pfConfig := payfast.Config{
		MerchantID:  configuration.PAYFAST_MERCHANT_ID,
		MerchantKey: configuration.PAYFAST_MERCHANT_KEY,
		Passphrase:  configuration.PAYFAST_PASSPHRASE,
		BaseURL:     configuration.APP_BASE_URL,
		Sandbox:     !configuration.Production(),
	}

	orderStore := store.NewOrderStore(db)

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), logging.RequestLogger(logger))

	deps := httpserver.Deps{
		DB:                db,
		AuthHandler:       &auth.AuthHandler{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret, Producer: prod},
		ProductHandler:    &handlers.ProductHandler{DB: db, Producer: prod, JWTSecret: jwtSecret},
		CheckoutHandler:   &handlers.CheckoutHandler{DB: db, Orders: orderStore, Producer: prod, JWTSecret: jwtSecret, PayFast: pfConfig},
		NotifyHandler:     &handlers.NotifyHandler{DB: db, Orders: orderStore, Producer: prod, PayFast: pfConfig},
		OrderHandler:      &handlers.OrderHandler{DB: db, Orders: orderStore, JWTSecret: jwtSecret},
		FreelancerHandler: &handlers.FreelancerHandler{DB: db},
		SearchHandler:     handlers.NewSearchHandler(esClient, "product"),
		ServiceHandler:    &token.TokenService{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
