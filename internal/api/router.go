package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/carbidx/auction-engine/docs"
	"github.com/carbidx/auction-engine/internal/api/handler"
	"github.com/carbidx/auction-engine/internal/api/middleware"
	"github.com/carbidx/auction-engine/internal/core/domain"
	"github.com/carbidx/auction-engine/internal/core/ports"
)

// Deps are the collaborators the HTTP layer is wired to.
type Deps struct {
	JWTSecret string
	Log       zerolog.Logger
	Clock     ports.Clock

	Auth     ports.AuthService
	Users    ports.UserService
	Auctions ports.AuctionService
	Stats    ports.StatsService

	Push   handler.Subscriber
	Conns  handler.ConnectionCounter
	Checks map[string]handler.Check
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddleware("auction_engine"))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.Auth, d.Users)
	auctionHandler := handler.NewAuctionHandler(d.Auctions)
	adminHandler := handler.NewAdminHandler(d.Auctions, d.Users, d.Stats)
	healthHandler := handler.NewHealthHandler(d.Checks, d.Conns, d.Clock)
	pushHandler := handler.NewPushHandler(d.Auctions, d.Push, d.Log)

	authenticated := []echo.MiddlewareFunc{middleware.Auth(d.JWTSecret), middleware.LoadIdentity(d.Users)}

	// --- Health probes, metrics and docs (no auth required) ---
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	me := e.Group("/me", authenticated...)
	me.GET("", authHandler.Me)
	me.PUT("", authHandler.UpdateMe)

	// --- Auctions and bids ---
	auctions := e.Group("/auctions", authenticated...)
	auctions.POST("", auctionHandler.Create, middleware.RBAC(domain.RoleBuyer))
	auctions.GET("", auctionHandler.List)
	auctions.GET("/:id", auctionHandler.Get)
	auctions.POST("/:id/bids", auctionHandler.SubmitBid, middleware.RBAC(domain.RoleDealer))
	auctions.GET("/:id/bids", auctionHandler.ListBids)
	auctions.POST("/:id/cancel", auctionHandler.Cancel, middleware.RBAC(domain.RoleBuyer, domain.RoleAdmin))

	e.GET("/dealers/:id/bids", auctionHandler.DealerBids, authenticated...)

	// --- Push channel ---
	e.GET("/ws/auctions/:id", pushHandler.Subscribe, authenticated...)

	// --- Admin ---
	admin := e.Group("/admin", append(authenticated, middleware.RBAC(domain.RoleAdmin))...)
	admin.GET("/auctions", adminHandler.Auctions)
	admin.PUT("/auctions/:id/status", adminHandler.SetStatus)
	admin.GET("/stats", adminHandler.Stats)
	admin.GET("/system/health", healthHandler.System)
	admin.GET("/users", adminHandler.Users)
	admin.PUT("/users/:id", adminHandler.UpdateUser)
	admin.PUT("/dealers/:id/verify", adminHandler.VerifyDealer)

	return e
}

// requestLogger feeds echo's request logger into zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil || v.Status >= 500 {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
