package main

import (
	"strings"

	"imalat-backend/internal/apperror"
	"imalat-backend/internal/audit"
	"imalat-backend/internal/auth"
	"imalat-backend/internal/bom"
	"imalat-backend/internal/config"
	"imalat-backend/internal/database"
	"imalat-backend/internal/ledger"
	"imalat-backend/internal/models"
	"imalat-backend/internal/production"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	cfg := config.Load()
	database.Init(cfg)
	logger := config.GetLogger()

	// Dağıtık kilit opsiyonel; Redis yoksa satır kilitleri yeterli
	var locker ledger.Locker
	rdb, err := config.ConnectRedis(cfg)
	if err != nil {
		logger.Fatalf("Redis: %v", err)
	}
	if rdb != nil {
		defer rdb.Close()
		locker = ledger.NewRedisLocker(rdb, cfg.LockTTL)
	}

	resolver := bom.NewResolver(cfg.BOMMaxDepth)
	productionSvc := production.NewService(database.DB, production.NewEngine(resolver), production.Options{
		Locker:     locker,
		Timeout:    cfg.ProductionTimeout,
		MaxRetries: cfg.ProductionMaxRetries,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: apperror.FiberErrorHandler,
		BodyLimit:    10 * 1024 * 1024, // xlsx yükleme
	})

	app.Use(requestID())
	app.Use(requestLogger())

	// CORS origins'i virgülle ayrılmış string'den array'e çevir
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-admin", auth.RegisterAdminHandler(database.DB))
	api.Post("/auth/login", auth.LoginHandler(cfg, database.DB))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler(database.DB))

	adminOnly := auth.RequireRole(models.RoleAdmin)

	protected.Post("/users", adminOnly, auth.CreateUserHandler(database.DB))

	// Kalemler (sadece okuma)
	protected.Get("/items", ledger.ListItemsHandler(database.DB))
	protected.Get("/items/:id", ledger.GetItemHandler(database.DB))

	// BOM master
	protected.Get("/bom", bom.ListHandler(database.DB))
	protected.Get("/bom/export", bom.ExportHandler(database.DB, resolver))
	protected.Get("/bom/explosion/:parent_item_id", bom.ExplosionHandler(database.DB, resolver))
	protected.Get("/bom/where-used/:child_item_id", bom.WhereUsedHandler(database.DB, resolver))
	protected.Post("/bom", adminOnly, bom.CreateHandler(database.DB))
	protected.Post("/bom/upload", adminOnly, bom.UploadHandler(database.DB))
	protected.Put("/bom/:id", adminOnly, bom.UpdateHandler(database.DB))
	protected.Delete("/bom/:id", adminOnly, bom.DeleteHandler(database.DB))

	// Stok hareketleri
	protected.Get("/inventory/transactions", ledger.ListMovementsHandler(database.DB))
	protected.Post("/inventory/transactions", ledger.CreateMovementHandler(database.DB, locker))

	// Üretim
	protected.Get("/inventory/production/bom-check", production.CheckHandler(productionSvc))
	protected.Post("/inventory/production/batch", production.BatchHandler(productionSvc))
	protected.Post("/inventory/production", production.CreateHandler(productionSvc))
	protected.Get("/inventory/production", production.ListHandler(productionSvc))
	protected.Get("/inventory/production/:id", production.GetHandler(productionSvc))

	// Audit log
	protected.Get("/audit-logs", adminOnly, audit.ListAuditLogsHandler(database.DB))

	logger.Infof("Sunucu %s portunda başlıyor", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		logger.Fatal(err)
	}
}
