package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/bruinsplit/bruinsplit/internal/call"
	"github.com/bruinsplit/bruinsplit/internal/config"
	"github.com/bruinsplit/bruinsplit/internal/database"
	"github.com/bruinsplit/bruinsplit/internal/handlers"
	"github.com/bruinsplit/bruinsplit/internal/middleware"
	"github.com/bruinsplit/bruinsplit/internal/rides"
	"github.com/bruinsplit/bruinsplit/internal/turn"

	"github.com/gin-gonic/gin"
)

const AppVersion = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info(fmt.Sprintf("BruinSplit Server v%s", AppVersion))

	db, err := database.Initialize(cfg.DBPath)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.UploadsDir, 0o755); err != nil {
		logger.Error("failed to create uploads directory", "error", err)
		os.Exit(1)
	}

	var turnServer *turn.Server
	if cfg.TURNEnabled {
		turnServer, err = turn.Initialize(cfg.TURNPort, cfg.TURNRealm, logger)
		if err != nil {
			logger.Error("failed to initialize TURN server", "error", err)
			os.Exit(1)
		}
		defer turnServer.Close()
		logger.Info(fmt.Sprintf("TURN server started at port %d", cfg.TURNPort))
	}

	rideStore := rides.NewStore(db)
	signaling := call.NewService(call.NewRegistry(), rideStore)

	h := handlers.New(db, cfg, signaling, rideStore, turnServer, logger)
	router := setupRouter(h, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("Starting HTTP server", "port", cfg.HTTPPort)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Failed to start HTTP server", "error", err)
		os.Exit(1)
	}
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// CORS middleware (for the web app)
	router.Use(func(c *gin.Context) {
		origin := "*"
		if cfg.FrontendURI != "" {
			origin = cfg.FrontendURI
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.Static("/uploads", cfg.UploadsDir)

	api := router.Group("/api")
	{
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)
		api.GET("/turn-config", h.GetTURNConfig)
		api.GET("/push/vapid-public-key", h.GetVAPIDPublicKey)
	}

	auth := api.Group("", middleware.JWTAuth(cfg.JWTSecret))
	{
		auth.GET("/me", h.GetMe)
		auth.PUT("/me", h.UpdateProfile)
		auth.POST("/me/photo", h.UploadPhoto)
		auth.GET("/users/:user_id", h.GetProfile)

		auth.POST("/rides", h.CreateRide)
		auth.GET("/rides", h.ListRides)
		auth.GET("/rides/:ride_id", h.GetRide)
		auth.DELETE("/rides/:ride_id", h.DeleteRide)
		auth.POST("/rides/:ride_id/join", h.RequestJoinRide)
		auth.DELETE("/rides/:ride_id/leave", h.LeaveRide)
		auth.GET("/rides/:ride_id/members", h.ListRideMembers)
		auth.POST("/rides/:ride_id/members/:user_id", h.ConfirmMember)
		auth.POST("/rides/:ride_id/messages", h.PostMessage)
		auth.GET("/rides/:ride_id/messages", h.ListMessages)

		auth.POST("/friends", h.RequestFriend)
		auth.GET("/friends", h.ListFriends)
		auth.POST("/friends/:friendship_id/respond", h.RespondFriend)
		auth.DELETE("/friends/:friendship_id", h.RemoveFriend)

		auth.POST("/events", h.CreateEvent)
		auth.GET("/events", h.ListEvents)
		auth.GET("/events/:event_id", h.GetEvent)

		auth.POST("/calls/:ride_id/join", h.JoinCall)
		auth.POST("/calls/:ride_id/offer/:target_id", h.SendOffer)
		auth.POST("/calls/:ride_id/answer/:target_id", h.SendAnswer)
		auth.POST("/calls/:ride_id/ice-candidate/:target_id", h.SendIceCandidate)
		auth.GET("/calls/:ride_id/status", h.CallStatus)
		auth.GET("/calls/:ride_id/info", h.CallInfo)
		auth.DELETE("/calls/:ride_id/leave", h.LeaveCall)

		auth.POST("/push/subscribe", h.SubscribePush)
		auth.POST("/push/unsubscribe", h.UnsubscribePush)

		auth.GET("/ws", h.HandleRideEvents)
	}

	return router
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
