// Package httpapi exposes the ledger services over a JSON HTTP API.
package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"coins-catcher/internal/config"
	"coins-catcher/internal/metrics"
	"coins-catcher/internal/repository"
	"coins-catcher/internal/service"
)

// Server is the HTTP front of the ledger.
type Server struct {
	app     *fiber.App
	svc     *service.Services
	store   repository.Store
	limiter *RateLimiter

	// ctx outlives individual requests so event streams end on Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds the fiber app and registers every route.
func New(cfg *config.Config, svc *service.Services, store repository.Store) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		svc:     svc,
		store:   store,
		limiter: NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		ctx:     ctx,
		cancel:  cancel,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "coins-catcher",
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})

	s.app.Use(recover.New())
	s.app.Use(requestLogger())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, PATCH, OPTIONS",
	}))

	s.app.Get("/healthz", s.health)
	s.app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := s.app.Group("/api/v1", Authenticate([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer), s.limiter.Handler())
	s.routes(api)

	s.limiter.StartCleanup(ctx, 10*time.Minute)
	return s
}

func (s *Server) routes(api fiber.Router) {
	api.Post("/accounts", s.register)
	api.Get("/leaderboard", s.leaderboard)

	me := api.Group("/me")
	me.Get("", s.me)
	me.Patch("/profile", s.updateProfile)
	me.Get("/transactions", s.transactions)
	me.Get("/rewards", s.rewardStatus)
	me.Post("/rewards/:type/claim", s.claim)
	me.Post("/game/claim", s.claimGame)
	me.Post("/convert", s.convert)
	me.Post("/withdrawals", s.createWithdrawal)
	me.Get("/withdrawals", s.myWithdrawals)
	me.Post("/friends", s.sendFriendRequest)
	me.Post("/friends/:id/respond", s.respondFriendRequest)
	me.Get("/friends", s.incomingFriendRequests)
	me.Get("/events", s.events)

	wallet := api.Group("/wallet")
	wallet.Get("/quote", s.quote)
	wallet.Get("/catalog/:kind", s.catalog)
	wallet.Post("/estimate", s.estimate)

	admin := api.Group("/admin")
	admin.Get("/withdrawals", s.adminWithdrawals)
	admin.Post("/withdrawals/:id/approve", s.approveWithdrawal)
	admin.Post("/withdrawals/:id/reject", s.rejectWithdrawal)
	admin.Get("/accounts", s.adminAccounts)
	admin.Get("/accounts/:id/reconcile", s.reconcile)
	admin.Post("/accounts/:id/bonus", s.giveBonus)
	admin.Post("/accounts/:id/block", s.setBlocked)
	admin.Post("/accounts/:id/logout-disabled", s.setLogoutDisabled)
	admin.Post("/accounts/:id/admin", s.setAdmin)
	admin.Put("/wallet", s.setWalletConfig)
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops event streams and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
