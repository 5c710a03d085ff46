package webserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/stake-plus/bobu-forum/src/forum/types"
)

const sessionTTL = time.Hour

func JWTMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "missing bearer token"})
			return
		}
		tok, err := jwt.Parse(h[7:], func(t *jwt.Token) (interface{}, error) { return secret, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !tok.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "invalid session"})
			return
		}
		addr, _ := tok.Claims.(jwt.MapClaims)["addr"].(string)
		if _, err := types.ParseAddress(addr); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "invalid session"})
			return
		}
		c.Set("addr", addr)
		c.Next()
	}
}

func issueJWT(addr string, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"addr": addr,
		"exp":  time.Now().Add(sessionTTL).Unix(),
	})
	return token.SignedString(secret)
}

// actor is the signed-in address. Only valid behind JWTMiddleware.
func actor(c *gin.Context) types.Address {
	addr, _ := types.ParseAddress(c.GetString("addr"))
	return addr
}

// clientKey identifies the caller for rate limiting and request tracking.
func clientKey(c *gin.Context) string {
	if a := c.GetString("addr"); a != "" {
		return a
	}
	return c.ClientIP()
}
