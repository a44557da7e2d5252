package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bruinsplit/bruinsplit/internal/call"
	"github.com/bruinsplit/bruinsplit/internal/config"
	"github.com/bruinsplit/bruinsplit/internal/rides"
	"github.com/bruinsplit/bruinsplit/internal/turn"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

type Handlers struct {
	db         *gorm.DB
	config     *config.Config
	signaling  *call.Service
	rideStore  *rides.Store
	hub        *EventHub
	turnServer *turn.Server
	logger     *slog.Logger
	wsUpgrader websocket.Upgrader
	nowFn      func() time.Time
}

func New(db *gorm.DB, cfg *config.Config, signaling *call.Service, rideStore *rides.Store, turnServer *turn.Server, logger *slog.Logger) *Handlers {
	return &Handlers{
		db:         db,
		config:     cfg,
		signaling:  signaling,
		rideStore:  rideStore,
		hub:        NewEventHub(),
		turnServer: turnServer,
		logger:     logger,
		wsUpgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		nowFn: time.Now,
	}
}

// currentUserID pulls the authenticated user out of the gin context set by
// the JWT middleware.
func currentUserID(c *gin.Context) string {
	v, _ := c.Get("user_id")
	id, _ := v.(string)
	return id
}
