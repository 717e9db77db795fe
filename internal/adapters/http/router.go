package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"parlor/internal/bridge"
	"parlor/internal/config"
	"parlor/internal/gateway"
)

func SetupRouter(cfg *config.Config, ctl *gateway.Controller, store bridge.Store) *gin.Engine {
	if cfg.Release() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if !cfg.Release() {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(cfg.AllowedOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"store_available": store.Available(),
			"connections":     ctl.Registry.Len(),
		})
	})

	api := r.Group("/api")
	api.GET("/ws", ctl.HandleWS)
	api.POST("/rooms", createRoomHandler(store))
	api.GET("/rooms/:id", getRoomHandler(store))

	log.Info().Str("module", "adapters.http").Strs("origins", cfg.AllowedOrigins).Msg("router setup")
	return r
}

// corsMiddleware enforces the deployment-mode allowlist; an empty list
// (debug convenience) allows any origin.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if len(allowed) == 0 || lo.Contains(allowed, origin) {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Allow-Methods", "GET, POST")
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
				c.Header("Access-Control-Allow-Credentials", "true")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
