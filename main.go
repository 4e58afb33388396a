// main.go
package main

import (
	"log"
	"os"
	"strconv"
	"time"
	"typerush/database"
	"typerush/handlers"
	"typerush/middleware"
	"typerush/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	auth, err := middleware.NewWhopAuthFromEnv()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	db, err := database.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL database: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("❌ Failed to run migrations: %v", err)
	}

	tiers, err := services.LoadRewardTiers(getEnv("REWARD_CONFIG_PATH", "./config/rewards.json"))
	if err != nil {
		log.Fatalf("Failed to load reward tiers: %v", err)
	}
	log.Printf("Loaded %d reward tiers", len(tiers))

	bank, err := services.LoadPromptBank(getEnv("WORD_BANK_PATH", "./config/words.txt"))
	if err != nil {
		log.Fatalf("Failed to load word bank: %v", err)
	}

	// Wire services explicitly; handles are created once and torn down on exit.
	whop := services.NewWhopClientFromEnv()
	ledger := services.NewCreditLedger(db)
	feed := services.NewRunFeed()
	players := services.NewPlayerService(db, whop, getEnvInt("INITIAL_CREDITS", 0), os.Getenv("WHOP_COMPANY_ID"))
	recorder := services.NewRunRecorder(db, ledger, tiers, getEnvInt("TEST_DURATION_SECONDS", services.DefaultTestDurationSeconds), feed)

	playerHandler := handlers.NewPlayerHandler(players, os.Getenv("WHOP_COMPANY_ID"))
	creditsHandler := handlers.NewCreditsHandler(ledger)
	runsHandler := handlers.NewRunsHandler(db, players, recorder)
	promptHandler := handlers.NewPromptHandler(bank)
	checkoutHandler := handlers.NewCheckoutHandler(whop)
	webhookHandler := handlers.NewWebhookHandler(db, ledger, players, whop, getEnvInt("CREDITS_PER_PURCHASE", 5))
	feedHandler := handlers.NewFeedHandler(feed)

	cleanup := services.NewCleanupService(db, time.Duration(getEnvInt("PAYMENT_EVENT_RETENTION_DAYS", 90))*24*time.Hour)
	cleanup.Start()
	defer cleanup.Stop()

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    1 * 1024 * 1024, // 1MB
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))

	generalLimiter := middleware.NewRateLimiter(
		getEnvInt("RATE_LIMIT_MAX_REQUESTS", 100),
		getEnvInt("RATE_LIMIT_WINDOW_MS", 900000)/1000,
	)
	app.Use(generalLimiter.Handler())

	corsOrigins := os.Getenv("CORS_ORIGINS")
	if corsOrigins == "" {
		corsOrigins = "http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, " + middleware.UserTokenHeader,
		AllowCredentials: true,
	}))

	// API Routes
	api := app.Group("/api")

	api.Get("/player", auth.RequireUser, playerHandler.GetPlayer)
	api.Post("/credits/consume", auth.RequireUser, creditsHandler.Consume)
	api.Post("/runs", auth.RequireUser, runsHandler.Record)
	api.Get("/runs/history", runsHandler.History)
	api.Get("/runs/best", auth.RequireUser, runsHandler.Best)
	api.Get("/prompt", promptHandler.Generate)
	api.Post("/checkout", auth.RequireUser, checkoutHandler.Create)

	// The webhook authenticates by signature, not user token.
	api.Post("/webhooks", webhookHandler.Receive)

	// Live run feed
	app.Get("/ws/feed", feedHandler.Upgrade, feedHandler.Stream())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"version":   "1.0.0",
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	log.Printf("🚀 HTTP server starting on port %s", port)
	log.Printf("📊 Environment: %s", getEnv("APP_ENV", "development"))

	if err := app.Listen(":" + port); err != nil {
		log.Fatal("Failed to start HTTP server:", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Don't expose internal errors in production
	if os.Getenv("APP_ENV") == "production" && code == 500 {
		message = "An error occurred. Please try again later."
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", key, val, defaultVal)
		return defaultVal
	}
	return n
}
