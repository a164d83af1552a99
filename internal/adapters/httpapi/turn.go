package httpapi

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/peerline/peerline/internal/config"
	"github.com/peerline/peerline/internal/domain"
)

// MintTurnCredentials derives a time-limited TURN credential: the
// username carries the expiry, the credential is an HMAC-SHA1 of the
// username under the shared TURN secret (coturn's long-term credential
// mechanism).
func MintTurnCredentials(cfg config.TurnConfig, uid domain.UserID, now time.Time) domain.RelayCredentials {
	expiry := now.Unix() + int64(cfg.TTL)
	username := fmt.Sprintf("%d:%s", expiry, uid)

	mac := hmac.New(sha1.New, []byte(cfg.Secret))
	mac.Write([]byte(username))
	credential := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return domain.RelayCredentials{
		Username:   username,
		Credential: credential,
		TTL:        cfg.TTL,
		URIs: []string{
			cfg.URL + "?transport=tcp",
			cfg.URL + "?transport=udp",
		},
	}
}

func TurnCredentialsHandler(cfg config.TurnConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := c.GetString(principalKey)
		if principal == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.JSON(http.StatusOK, MintTurnCredentials(cfg, domain.UserID(principal), time.Now()))
	}
}
