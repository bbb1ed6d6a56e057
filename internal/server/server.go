package server

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mansoorceksport/recgetup/internal/config"
	"github.com/mansoorceksport/recgetup/internal/domain"
	"github.com/mansoorceksport/recgetup/internal/handler"
	"github.com/mansoorceksport/recgetup/internal/middleware"
	"github.com/mansoorceksport/recgetup/internal/repository"
	"github.com/mansoorceksport/recgetup/internal/service"
	"github.com/mansoorceksport/recgetup/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// AppDependencies holds the dependencies required to start the application
type AppDependencies struct {
	Config      *config.Config
	MongoDB     *mongo.Database
	RedisClient *redis.Client
	Gateway     service.PaymentGateway
	Dispatcher  service.NotificationDispatcher
	Mailer      service.AccountMailer
	Files       domain.FileRepository // nil disables avatar uploads
	Clock       domain.Clock          // defaults to the system clock
}

// NewApp creates and configures the Fiber application with the given dependencies
func NewApp(deps AppDependencies) *fiber.App {
	cfg := deps.Config
	clock := deps.Clock
	if clock == nil {
		clock = domain.SystemClock{}
	}

	// Repositories
	userRepo := repository.NewMongoUserRepository(deps.MongoDB)
	refreshRepo := repository.NewMongoRefreshTokenRepository(deps.MongoDB)
	packageRepo := repository.NewMongoPackageRepository(deps.MongoDB)
	paymentRepo := repository.NewMongoPaymentRepository(deps.MongoDB)
	subscriptionRepo := repository.NewMongoSubscriptionRepository(deps.MongoDB)
	cacheRepo := repository.NewRedisCacheRepository(deps.RedisClient)
	classRepo := repository.NewCachedClassRepository(repository.NewMongoClassRepository(deps.MongoDB), cacheRepo)

	// Services
	tokenService := service.NewTokenService(cfg.JWT, refreshRepo, userRepo, clock)
	authService := service.NewAuthService(userRepo, tokenService, deps.Mailer, deps.Dispatcher, cfg.JWT, cfg.App)
	profileService := service.NewProfileService(userRepo, deps.Files, clock)
	catalogService := service.NewCatalogService(packageRepo, classRepo)
	scheduleService := service.NewScheduleService(classRepo, subscriptionRepo, packageRepo, clock)
	paymentService := service.NewPaymentService(
		packageRepo,
		paymentRepo,
		subscriptionRepo,
		userRepo,
		deps.Gateway,
		deps.Dispatcher,
		clock,
		cfg.Razorpay.Currency,
		cfg.App.BaseURL+"/v1/payments/verify",
	)

	// Handlers
	authHandler := handler.NewAuthHandler(authService, tokenService, cfg.App)
	profileHandler := handler.NewProfileHandler(profileService, cfg.Server.MaxUploadSizeMB)
	paymentHandler := handler.NewPaymentHandler(paymentService, catalogService, cfg.App.FrontendURL)
	scheduleHandler := handler.NewScheduleHandler(scheduleService)
	adminHandler := handler.NewAdminHandler(catalogService)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name + " API",
		BodyLimit:    int(cfg.Server.MaxUploadSizeMB * 1024 * 1024),
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(telemetry.FiberMiddleware())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.FrontendURL,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Correlation-ID",
		AllowMethods:     "GET, POST, PUT, OPTIONS",
		AllowCredentials: true,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "recgetup-api",
		})
	})

	requireAuth := middleware.VerifyAccessToken(cfg.JWT.Secret)
	idempotent := middleware.IdempotencyMiddleware(deps.RedisClient, cfg.Server.IdempotencyTTL)

	v1 := app.Group("/v1")

	// Public
	v1.Get("/packages", paymentHandler.ListPackages)

	auth := v1.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Get("/activate", authHandler.Activate)
	auth.Post("/activate/resend", authHandler.ResendActivation)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.RefreshToken)
	auth.Post("/logout", authHandler.Logout)
	auth.Post("/password/reset", authHandler.RequestPasswordReset)
	auth.Post("/password/reset/confirm", authHandler.ResetPassword)

	// Gateway callback: no auth, the signature is the proof
	v1.Post("/payments/verify", paymentHandler.Verify)

	// ===========================================
	// STUDENT API (any signed-in user)
	// ===========================================
	me := v1.Group("/me", requireAuth)
	me.Get("/profile", profileHandler.Get)
	me.Put("/profile", profileHandler.Update)
	me.Post("/profile/avatar", profileHandler.UploadAvatar)
	me.Post("/password", authHandler.ChangePassword)
	me.Get("/dashboard", scheduleHandler.Dashboard)

	v1.Post("/payments/initiate/:package_id", requireAuth, idempotent, paymentHandler.Initiate)
	v1.Get("/payments/history", requireAuth, paymentHandler.History)

	v1.Get("/schedule", requireAuth, scheduleHandler.Schedule)
	v1.Get("/classes/:id/join", requireAuth, scheduleHandler.Join)

	// ===========================================
	// ADMIN API - /v1/admin/* (requires 'admin' role)
	// ===========================================
	admin := v1.Group("/admin", requireAuth, middleware.AuthorizeRole(domain.RoleAdmin))
	admin.Post("/packages", idempotent, adminHandler.CreatePackage)
	admin.Put("/packages/:id", adminHandler.UpdatePackage)
	admin.Post("/classes", idempotent, adminHandler.CreateClass)
	admin.Put("/classes/:id", adminHandler.UpdateClass)

	return app
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	message := err.Error()
	if code == fiber.StatusInternalServerError {
		log.Printf("Error: %s %s: %v", c.Method(), c.Path(), err)
		message = "internal server error"
	}
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
