// Package httpapi wires the relay's HTTP surface: the signaling
// WebSocket endpoint, TURN credential minting, and the cookie-session
// plumbing that carries the authenticated principal.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/peerline/peerline/internal/adapters/signal"
	"github.com/peerline/peerline/internal/config"
	"github.com/peerline/peerline/internal/domain"
)

const (
	principalKey   = "principal"
	sessionUserKey = "uid"
)

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// PrincipalMiddleware copies the authenticated user id from the cookie
// session into the request context. Token issuance and verification
// belong to the external auth collaborator; only the established
// principal travels here.
func PrincipalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		if uid, ok := sess.Get(sessionUserKey).(string); ok {
			c.Set(principalKey, uid)
		}
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("PeerlineSessions", store))
	r.Use(ClientTokenMiddleware())
	r.Use(PrincipalMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	log.Info().Str("module", "httpapi").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")
	api.POST("/session", handleSession)
	api.GET("/ws/signal", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})
	api.GET("/turn-credentials", TurnCredentialsHandler(cfg.Turn))

	return r
}

// handleSession binds a verified user id to the cookie session. The
// verification itself is the auth collaborator's job; this endpoint
// only records the outcome so the signaling endpoint can enforce the
// principal match.
func handleSession(c *gin.Context) {
	var req struct {
		UserID   string `json:"userId" binding:"required"`
		Username string `json:"username"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid userId"})
		return
	}
	if err := domain.ValidateUserID(domain.UserID(req.UserID)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess := sessions.Default(c)
	sess.Set(sessionUserKey, req.UserID)
	if err := sess.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": req.UserID})
}
