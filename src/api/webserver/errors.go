package webserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/stake-plus/bobu-forum/src/forum/ledger"
	"github.com/stake-plus/bobu-forum/src/forum/service"
	"github.com/stake-plus/bobu-forum/src/logging"
)

var writeStatus = map[logging.WriteKind]int{
	logging.KindCancelled:         http.StatusConflict,
	logging.KindInsufficientFunds: http.StatusPaymentRequired,
	logging.KindPermission:        http.StatusForbidden,
	logging.KindTokenRequired:     http.StatusForbidden,
	logging.KindUnclassified:      http.StatusBadGateway,
}

// errorResponse maps a service error onto a status and a body with a
// machine-readable kind.
func errorResponse(err error) (int, gin.H) {
	var we *logging.WriteError
	switch {
	case service.IsValidation(err):
		return http.StatusBadRequest, gin.H{"err": err.Error(), "kind": "validation"}
	case ledger.IsConfigError(err):
		return http.StatusServiceUnavailable, gin.H{"err": err.Error(), "kind": "config"}
	case errors.Is(err, ledger.ErrNoSigner):
		return http.StatusServiceUnavailable, gin.H{"err": err.Error(), "kind": "config"}
	case errors.Is(err, ledger.ErrMintDisabled):
		return http.StatusForbidden, gin.H{"err": err.Error(), "kind": "mint_disabled"}
	case errors.As(err, &we):
		return writeStatus[we.Kind], gin.H{"err": we.Message, "kind": string(we.Kind)}
	case errors.Is(err, context.Canceled):
		return http.StatusConflict, gin.H{"err": "request superseded", "kind": "superseded"}
	}
	return http.StatusBadGateway, gin.H{"err": err.Error(), "kind": "ledger"}
}

func abortWithError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		log.WithField("path", c.FullPath()).Errorf("request failed: %v", err)
	}
	c.AbortWithStatusJSON(status, body)
}
