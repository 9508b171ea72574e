package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"nhatro_app/internal/handlers"
	appMiddleware "nhatro_app/internal/middleware"
	"nhatro_app/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Redis is optional; the billing core degrades to DB-only idempotency
	// checks without it.
	var cache *services.RedisCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err = services.NewRedisCache(redisURL)
		if err != nil {
			logger.Warn("redis unavailable, continuing without cache", zap.Error(err))
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	// Billing core
	ledger := services.NewLedgerService(db, logger)
	rules := services.NewRuleEngine()
	history := services.NewHistoryRecorder(db, cache, logger)
	interest := services.NewInterestCalculator(logger)
	vnpay := services.NewVNPayService()
	email := services.NewEmailService()
	notify := services.NewNotificationSender(db, email, logger)
	payments := services.NewPaymentService(ledger, rules, history, vnpay, logger)
	cash := services.NewCashPaymentService(ledger, rules, history, interest, logger)
	reconciler := services.NewReconciler(ledger, history, vnpay, interest, cache, notify, logger)
	exporter := services.NewPDFExportClient()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Validator = handlers.NewRequestValidator()
	e.HTTPErrorHandler = appMiddleware.CustomErrorHandler

	billingHandler := handlers.NewBillingHandler(db, ledger, payments, cash, interest, exporter)
	vnpayHandler := handlers.NewVNPayHandler(reconciler)
	historyHandler := handlers.NewHistoryHandler(history)

	// Public routes: health and the gateway callbacks (VNPAY authenticates
	// with its secure hash, not a bearer token)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/vnpay/return", vnpayHandler.Return)
	e.GET("/vnpay/ipn", vnpayHandler.IPN)

	// Protected API
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}
	api := e.Group("/api")
	api.Use(appMiddleware.RequireAuth(jwtSecret))

	api.GET("/bills/:id", billingHandler.GetBill)
	api.POST("/bills/partial-payment", billingHandler.InitiatePartialPayment)
	api.POST("/bills/cash-partial-payment", billingHandler.RequestCashPayment)
	api.POST("/bills/:billId/confirm-cash-payment/:historyId", billingHandler.ConfirmCashPayment)
	api.POST("/bills/:billId/reject-cash-payment/:historyId", billingHandler.RejectCashPayment)
	api.POST("/bills/:id/penalty", billingHandler.GeneratePenalty)
	api.GET("/bills/:id/export", billingHandler.ExportBill)
	api.GET("/bills/:id/payments", historyHandler.ListBillPayments)
	api.GET("/bills/:id/payment-stats", historyHandler.BillPaymentStats)
	api.GET("/rooms/:id/payments", historyHandler.ListRoomPayments)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
