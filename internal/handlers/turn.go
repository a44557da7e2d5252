package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// GetTURNConfig hands the frontend its ICE server list. The embedded TURN
// server doubles as STUN, so both URLs point at the same port. When TURN is
// disabled the client falls back to direct connectivity.
func (h *Handlers) GetTURNConfig(c *gin.Context) {
	if h.turnServer == nil {
		c.JSON(http.StatusOK, gin.H{"iceServers": []gin.H{}})
		return
	}

	host := c.Request.Host
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}

	creds := h.turnServer.GetCredentials()
	stunURL := fmt.Sprintf("stun:%s:%d", host, h.config.TURNPort)
	turnURL := fmt.Sprintf("turn:%s:%d", host, h.config.TURNPort)

	iceServers := []map[string]interface{}{
		{
			"urls": stunURL,
		},
		{
			"urls":       turnURL,
			"username":   creds.Username,
			"credential": creds.Password,
		},
	}

	c.JSON(http.StatusOK, gin.H{"iceServers": iceServers})
}
