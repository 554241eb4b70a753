package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"tripwatch-bot/internal/models"
)

type Config struct {
	// Telegram Bot
	TelegramBotToken string
	AdminChatID      int64

	// PostgreSQL
	DatabaseURL string

	// GeoNames timezone resolver
	GeoNamesUser string
	GeoNamesURL  string

	// Scheduler
	SweepInterval time.Duration
	TripDayMode   models.DayMode // which zone "today" is evaluated in

	// Registration sessions
	SessionTTL time.Duration
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("godotenv.Load() error: %v", err)
	}

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var adminChatID int64
	if raw := os.Getenv("ADMIN_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_CHAT_ID %q: %w", raw, err)
		}
		adminChatID = id
	}

	sweep := 30 * time.Minute
	if raw := os.Getenv("SWEEP_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SWEEP_INTERVAL %q: %w", raw, err)
		}
		sweep = d
	}

	sessionTTL := time.Hour
	if raw := os.Getenv("SESSION_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TTL %q: %w", raw, err)
		}
		sessionTTL = d
	}

	mode := models.DayModeTrip
	switch os.Getenv("TRIP_DAY_MODE") {
	case "", string(models.DayModeTrip):
	case string(models.DayModeHost):
		mode = models.DayModeHost
	default:
		return nil, fmt.Errorf("TRIP_DAY_MODE must be %q or %q", models.DayModeTrip, models.DayModeHost)
	}

	geoURL := os.Getenv("GEONAMES_URL")
	if geoURL == "" {
		geoURL = "http://api.geonames.org"
	}

	return &Config{
		TelegramBotToken: token,
		AdminChatID:      adminChatID,
		DatabaseURL:      dbURL,
		GeoNamesUser:     os.Getenv("GEONAMES_USERNAME"),
		GeoNamesURL:      geoURL,
		SweepInterval:    sweep,
		TripDayMode:      mode,
		SessionTTL:       sessionTTL,
	}, nil
}
