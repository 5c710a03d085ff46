package webserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/stake-plus/bobu-forum/src/forum/logscan"
	"github.com/stake-plus/bobu-forum/src/forum/service"
)

// Settings serves the account, contract-address and legacy endpoints.
type Settings struct {
	svc *service.Service
}

func NewSettings(svc *service.Service) Settings {
	return Settings{svc: svc}
}

func (s Settings) ContractAddress(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"address": s.svc.ContractAddress()})
}

func (s Settings) SetContractAddress(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	addr, err := s.svc.SetContractAddress(req.Address)
	if err != nil {
		abortWithError(c, err)
		return
	}
	log.Infof("admin %s set legacy contract address to %s", c.GetString("addr"), addr.Hex())
	c.JSON(http.StatusOK, gin.H{"address": addr.Hex()})
}

func (s Settings) Access(c *gin.Context) {
	access, err := s.svc.Access(c.Request.Context(), actor(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, access)
}

func (s Settings) Mint(c *gin.Context) {
	tx, err := s.svc.Mint(c.Request.Context(), actor(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"tx": tx.Hash.Hex()})
}

// Legacy serves one block window of legacy submissions, ending at
// endBlock (default: the latest block). With lookback (or all=1) it scans
// that many blocks back from the latest block instead.
func (s Settings) Legacy(c *gin.Context) {
	ctx := c.Request.Context()
	if raw := c.Query("lookback"); raw != "" || c.Query("all") == "1" {
		var lookback uint64
		if raw != "" {
			n, err := strconv.ParseUint(raw, 10, 64)
			if err != nil || n == 0 {
				c.JSON(http.StatusBadRequest, gin.H{"err": "lookback must be a positive number"})
				return
			}
			lookback = n
		}
		page, err := s.svc.LegacyRecent(ctx, lookback)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
		return
	}

	var end *uint64
	if raw := c.Query("endBlock"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"err": "endBlock must be a block number"})
			return
		}
		end = &n
	}
	blocks, err := strconv.ParseUint(c.DefaultQuery("blocks", strconv.Itoa(logscan.DefaultPageBlocks)), 10, 64)
	if err != nil || blocks == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "blocks must be a positive number"})
		return
	}
	page, err := s.svc.Legacy(ctx, end, blocks)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
