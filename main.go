package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tripwatch-bot/bot"
	"tripwatch-bot/config"
	"tripwatch-bot/internal/geo"
	"tripwatch-bot/internal/repository"
	"tripwatch-bot/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Config loaded successfully")

	// Create application context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutdown signal received, initiating graceful shutdown...")
		cancel()
	}()

	// Connect to PostgreSQL
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize Telegram Bot
	if err := bot.Init(cfg.TelegramBotToken, cfg.AdminChatID); err != nil {
		log.Fatalf("Failed to init Telegram Bot: %v", err)
	}

	scheduler, sessions := initApplication(cfg, pool)

	bot.StartPolling(ctx)
	log.Println("Telegram Bot Initialized")

	// Run the compliance sweep and the session cleanup
	go scheduler.Run(ctx)
	go runSessionCleanup(ctx, sessions)

	// Setup HTTP server
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         ":8080",
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Println("Server starting on :8080")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped gracefully")
}

// initApplication initializes all application dependencies
func initApplication(cfg *config.Config, pool *pgxpool.Pool) (*services.Scheduler, *services.SessionStore) {
	employeeRepo := repository.NewPostgresEmployeeRepository(pool)
	tripRepo := repository.NewPostgresTripRepository(pool)
	checkinRepo := repository.NewPostgresCheckinRepository(pool)
	notificationRepo := repository.NewPostgresNotificationLogRepository(pool)
	registrar := repository.NewPostgresRegistrar(pool)

	resolver := geo.NewGeoNamesResolver(cfg.GeoNamesURL, cfg.GeoNamesUser)
	dispatcher := services.NewDispatcher(bot.NewNotifier())
	sessions := services.NewSessionStore(cfg.SessionTTL)

	registrationService := services.NewRegistrationService(
		sessions, employeeRepo, tripRepo, registrar, resolver, dispatcher, cfg.TripDayMode)
	checkinService := services.NewCheckinService(
		sessions, employeeRepo, tripRepo, checkinRepo, dispatcher, cfg.TripDayMode)
	adminService := services.NewAdminService(employeeRepo, tripRepo, checkinRepo, cfg.TripDayMode)
	bot.SetServices(registrationService, checkinService, adminService)

	scheduler := services.NewScheduler(
		employeeRepo, tripRepo, checkinRepo, notificationRepo, dispatcher,
		cfg.TripDayMode, cfg.SweepInterval)

	return scheduler, sessions
}

func runSessionCleanup(ctx context.Context, sessions *services.SessionStore) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Cleanup(); n > 0 {
				log.Printf("Expired %d idle sessions", n)
			}
		}
	}
}
