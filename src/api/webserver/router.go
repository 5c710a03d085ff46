package webserver

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/stake-plus/bobu-forum/src/config"
	"github.com/stake-plus/bobu-forum/src/forum/pager"
	"github.com/stake-plus/bobu-forum/src/forum/service"
)

// New builds the HTTP API over svc. Sign-in challenges are kept in nonces.
func New(cfg config.Config, svc *service.Service, nonces NonceStore) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	attachRoutes(r, cfg, svc, nonces)
	return r
}

func attachRoutes(r *gin.Engine, cfg config.Config, svc *service.Service, nonces NonceStore) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "If-None-Match"},
		ExposeHeaders:    []string{"Content-Length", "ETag"},
		AllowCredentials: true,
	}))

	secret := []byte(cfg.JWTSecret)
	authH := NewAuth(nonces, secret)
	propH := NewProposals(svc, pager.NewTracker())
	settingsH := NewSettings(svc)
	readLimit := NewRateLimiter(120, time.Minute)
	writeLimit := NewRateLimiter(20, time.Minute)

	v1 := r.Group("/v1")
	{
		v1.POST("/auth/challenge", RateLimitMiddleware(writeLimit), authH.Challenge)
		v1.POST("/auth/verify", RateLimitMiddleware(writeLimit), authH.Verify)

		public := v1.Group("", RateLimitMiddleware(readLimit))
		public.GET("/proposals", propH.List)
		public.GET("/proposals/counts", propH.Counts)
		public.GET("/proposals/:addr", propH.Detail)
		public.GET("/proposals/:addr/comments", propH.Comments)
		public.POST("/preview", propH.Preview)
		public.GET("/legacy/proposals", settingsH.Legacy)
		public.GET("/settings/contract-address", settingsH.ContractAddress)

		secured := v1.Group("", JWTMiddleware(secret), RateLimitMiddleware(writeLimit))
		secured.POST("/proposals", propH.Create)
		secured.POST("/proposals/:addr/window", propH.SetWindow)
		secured.POST("/proposals/:addr/activate", propH.Activate)
		secured.POST("/proposals/:addr/sync", propH.Sync)
		secured.POST("/proposals/:addr/comments", propH.AddComment)
		secured.GET("/access", settingsH.Access)
		secured.POST("/dev/mint", settingsH.Mint)
	}

	admin := v1.Group("/settings")
	admin.Use(JWTMiddleware(secret), AdminMiddleware(cfg.Admins, cfg.Testnet()))
	{
		admin.PUT("/contract-address", settingsH.SetContractAddress)
	}
}
