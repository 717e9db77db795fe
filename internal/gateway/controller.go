package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"parlor/internal/bridge"
)

// Controller is the HTTP-side entry point: it verifies the handshake
// credential, upgrades the connection and hands it to the router. A failed
// verification is a transport-level rejection; no events are ever processed
// for that attempt.
type Controller struct {
	Registry *Registry
	Router   *Router
	Verifier TokenVerifier
	Store    bridge.Store

	PingPeriod time.Duration
	ReadLimit  int64

	upgrader websocket.Upgrader
}

func NewController(reg *Registry, router *Router, verifier TokenVerifier, store bridge.Store, allowedOrigins []string) *Controller {
	return &Controller{
		Registry:   reg,
		Router:     router,
		Verifier:   verifier,
		Store:      store,
		PingPeriod: 54 * time.Second,
		ReadLimit:  512 * 1024,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowedOrigins) == 0 {
					return true
				}
				return lo.Contains(allowedOrigins, origin)
			},
		},
	}
}

func (ctl *Controller) HandleWS(c *gin.Context) {
	token := handshakeToken(c)
	user, err := ctl.Verifier.Verify(c.Request.Context(), token)
	if err != nil {
		log.Warn().Err(err).Str("module", "gateway").Msg("handshake rejected")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "gateway").Msg("ws upgrade")
		return
	}

	conn := NewConn(user, ws)
	ctl.Registry.Add(conn)
	log.Info().Str("module", "gateway").Str("conn", string(conn.ID)).Str("user", string(user.ID)).Msg("connection admitted")

	ctx, cancel := context.WithTimeout(context.Background(), bridgeTimeout)
	if err := ctl.Store.SetOnlineStatus(ctx, user.ID, true); err != nil {
		log.Warn().Err(err).Str("module", "gateway").Str("user", string(user.ID)).Msg("mark online")
	}
	cancel()

	go conn.writePump(ctl.PingPeriod)
	go conn.readPump(ctl.ReadLimit, ctl.Router)
}

func handshakeToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
