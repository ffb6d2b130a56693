package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/skillbay/marketplace/internal/models"
)

type Config struct {
	APP_ENV      string
	APP_BASE_URL string
	LOG_LEVEL    string

	DB_HOST     string
	DB_PORT     string
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string

	ES_URL      string
	ES_USER     string
	ES_PASSWORD string

	JWT_SECRET     string
	REFRESH_SECRET string

	KAFKA_ADDRESS string

	PAYFAST_MERCHANT_ID  string
	PAYFAST_MERCHANT_KEY string
	PAYFAST_PASSPHRASE   string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		APP_ENV:      os.Getenv("APP_ENV"),
		APP_BASE_URL: os.Getenv("APP_BASE_URL"),
		LOG_LEVEL:    os.Getenv("LOG_LEVEL"),

		DB_HOST:     os.Getenv("DB_HOST"),
		DB_PORT:     os.Getenv("DB_PORT"),
		DB_USER:     os.Getenv("DB_USER"),
		DB_PASSWORD: os.Getenv("DB_PASSWORD"),
		DB_NAME:     os.Getenv("DB_NAME"),

		ES_URL:      os.Getenv("ES_URL"),
		ES_USER:     os.Getenv("ES_USER"),
		ES_PASSWORD: os.Getenv("ES_PASSWORD"),

		JWT_SECRET:     os.Getenv("JWT_SECRET"),
		REFRESH_SECRET: os.Getenv("REFRESH_SECRET"),

		KAFKA_ADDRESS: os.Getenv("KAFKA_ADDRESS"),

		PAYFAST_MERCHANT_ID:  os.Getenv("PAYFAST_MERCHANT_ID"),
		PAYFAST_MERCHANT_KEY: os.Getenv("PAYFAST_MERCHANT_KEY"),
		PAYFAST_PASSPHRASE:   os.Getenv("PAYFAST_PASSPHRASE"),
	}

	return config, nil
}

// Production reports whether the server should talk to the live gateway
// instead of the sandbox.
func (c *Config) Production() bool {
	return c.APP_ENV == "production"
}

// InitDB opens the postgres handle for the given configuration and migrates
// the schema. The handle is passed down explicitly; nothing caches it in a
// package-level variable.
func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DB_USER, cfg.DB_PASSWORD, cfg.DB_HOST, cfg.DB_PORT, cfg.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to database: %w", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
	); err != nil {
		return nil, fmt.Errorf("cannot run migrations: %w", err)
	}
	return db, nil
}
