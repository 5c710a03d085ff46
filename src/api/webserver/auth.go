package webserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/stake-plus/bobu-forum/src/forum/types"
)

// NonceStore keeps one pending sign-in challenge per address. Take
// consumes it. data.Nonces is the Redis implementation.
type NonceStore interface {
	Set(ctx context.Context, addr, nonce string) error
	Take(ctx context.Context, addr string) (string, error)
}

type Auth struct {
	nonces    NonceStore
	jwtSecret []byte
}

func NewAuth(nonces NonceStore, secret []byte) Auth {
	return Auth{nonces: nonces, jwtSecret: secret}
}

func (a Auth) Challenge(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	addr, err := types.ParseAddress(req.Address)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	nonce := uuid.NewString()
	if err := a.nonces.Set(c.Request.Context(), addr.Hex(), nonce); err != nil {
		log.Errorf("store nonce for %s: %v", addr.Hex(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "could not issue challenge"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": nonce, "message": signInMessage(nonce)})
}

func (a Auth) Verify(c *gin.Context) {
	var req struct {
		Address   string `json:"address"   binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	addr, err := types.ParseAddress(req.Address)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	nonce, err := a.nonces.Take(c.Request.Context(), addr.Hex())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "challenge expired"})
		return
	}
	if err := verifySignature(addr, req.Signature, signInMessage(nonce)); err != nil {
		log.Infof("sign-in rejected for %s: %v", addr.Hex(), err)
		c.JSON(http.StatusUnauthorized, gin.H{"err": "bad signature"})
		return
	}
	token, err := issueJWT(addr.Hex(), a.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "address": addr.Hex()})
}
