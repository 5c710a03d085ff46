package webserver

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/stake-plus/bobu-forum/src/forum/types"
)

// AdminMiddleware admits configured admins. With no admins configured,
// any signed-in address is admitted when open is set (testnet) and nobody
// otherwise.
func AdminMiddleware(admins []types.Address, open bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		who := actor(c)
		allowed := slices.Contains(admins, who) || (len(admins) == 0 && open)
		if !allowed {
			log.Warnf("admin access denied for %s on %s", who.Hex(), c.FullPath())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"err": "admin access required"})
			return
		}
		c.Next()
	}
}
