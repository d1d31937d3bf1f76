package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"go-pos-ledger/internal/handler"
	"go-pos-ledger/internal/middleware"
	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/internal/service"
	"go-pos-ledger/internal/ws"
	"go-pos-ledger/pkg/database"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	// 1. Load Env
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// 2. Setup Database
	db := database.ConnectDB()
	// The ledger entities are a mandatory part of the schema; migration runs
	// unconditionally so the engine never has to probe for them at runtime.
	if err := db.AutoMigrate(
		&model.Product{}, &model.Category{},
		&model.Sale{}, &model.StockMovement{},
		&model.VoidRequest{},
		&model.User{}, &model.Role{},
	); err != nil {
		log.Fatal("Schema migration failed: ", err)
	}

	// 3. Seed default roles and admin user
	seedRolesAndAdmin(db)

	// 4. Setup WebSocket Hub for stock alerts
	wsHub := ws.NewHub()
	go wsHub.Run()
	notifier := ws.NewStockAlertBroadcaster(wsHub)

	// 5. Dependency Injection (Wiring Layers)
	productRepo := repository.NewProductRepo(db)
	categoryRepo := repository.NewCategoryRepo(db)
	saleRepo := repository.NewSaleRepo(db)
	movementRepo := repository.NewStockMovementRepo(db)
	voidRepo := repository.NewVoidRequestRepo(db)
	userRepo := repository.NewUserRepo(db)

	engine := service.NewTransactionEngine(productRepo, saleRepo, movementRepo, db, notifier)
	voidService := service.NewVoidRequestService(voidRepo, engine, db, notifier)
	catalogService := service.NewCatalogService(productRepo, categoryRepo)
	reportService := service.NewReportService(saleRepo, movementRepo)
	authService := service.NewAuthService(userRepo)

	checkoutHandler := handler.NewCheckoutHandler(engine)
	voidHandler := handler.NewVoidRequestHandler(voidService)
	catalogHandler := handler.NewCatalogHandler(catalogService)
	reportHandler := handler.NewReportHandler(reportService)
	authHandler := handler.NewAuthHandler(authService)

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: "POS Ledger v1.0",
	})

	// Middleware
	app.Use(logger.New())  // Logging request
	app.Use(recover.New()) // Panic recovery
	app.Use(cors.New())    // CORS

	// 7. Routes
	api := app.Group("/api/v1")

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/login", authHandler.Login)
	auth.Post("/reset-password", authHandler.ResetPassword)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", middleware.RequireAuth(userRepo))

	// Catalog
	protected.Get("/products", catalogHandler.GetProducts)
	protected.Post("/products", catalogHandler.CreateProduct)
	protected.Put("/products/:id", catalogHandler.UpdateProduct)
	protected.Delete("/products/:id", catalogHandler.DeleteProduct)
	protected.Get("/products/barcode/:code", catalogHandler.GetProductByBarcode)
	protected.Get("/products/:id/movements", reportHandler.GetProductMovements)
	protected.Get("/categories", catalogHandler.GetCategories)
	protected.Post("/categories", catalogHandler.CreateCategory)

	// Transaction engine
	protected.Post("/checkout", checkoutHandler.Checkout)
	protected.Post("/returns", checkoutHandler.Return)

	// Void-request workflow (resolution and listing are admin only)
	protected.Post("/void-requests", voidHandler.Create)
	protected.Get("/void-requests", middleware.RequireRole(model.RoleAdmin), voidHandler.List)
	protected.Patch("/void-requests/:id", middleware.RequireRole(model.RoleAdmin), voidHandler.Resolve)

	// Reporting projections
	protected.Get("/sales", reportHandler.GetSales)
	protected.Get("/receipts/:transactionNo", reportHandler.GetReceipt)
	protected.Get("/dashboard/stats", reportHandler.GetDashboardStats)
	protected.Get("/dashboard/stock-movement", reportHandler.GetStockMovement)
	protected.Get("/reports/sales-by-product", reportHandler.GetSalesByProduct)
	protected.Get("/reports/revenue", reportHandler.GetRevenueTrend)
	protected.Get("/reports/profit", middleware.RequireRole(model.RoleAdmin), reportHandler.GetProfitMargins)

	// WebSocket Route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		wsHub.Register <- c
		defer func() { wsHub.Unregister <- c }()

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 8. Graceful Shutdown
	go func() {
		port := os.Getenv("PORT")
		if port == "" {
			port = "3000"
		}
		if err := app.Listen(":" + port); err != nil {
			log.Panic(err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

// seedRolesAndAdmin creates default roles and an admin user if they don't exist
func seedRolesAndAdmin(db *gorm.DB) {
	userRepo := repository.NewUserRepo(db)
	roleRepo := repository.NewRoleRepo(db)

	if err := roleRepo.SeedDefaults(); err != nil {
		log.Printf("Warning: Failed to seed roles: %v", err)
	}

	_, err := userRepo.FindByEmail("admin@example.com")
	if err != nil {
		adminRole, err := roleRepo.FindByCode(model.RoleAdmin)
		if err != nil {
			log.Printf("Warning: Admin role missing: %v", err)
			return
		}

		admin := &model.User{
			Email:    "admin@example.com",
			FullName: "Administrator",
			RoleID:   &adminRole.ID,
			IsActive: true,
		}
		admin.CreatedBy = "system"
		admin.UpdatedBy = "system"

		if err := admin.SetPassword("admin123"); err != nil {
			log.Printf("Warning: Failed to hash admin password: %v", err)
			return
		}

		if err := userRepo.Create(admin); err != nil {
			log.Printf("Warning: Failed to create admin user: %v", err)
		} else {
			log.Println("Admin user created: admin@example.com / admin123 (change the password)")
		}
	}
}
