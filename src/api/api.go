package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/stake-plus/bobu-forum/src/api/webserver"
	"github.com/stake-plus/bobu-forum/src/config"
	"github.com/stake-plus/bobu-forum/src/data"
	"github.com/stake-plus/bobu-forum/src/forum/ledger"
	"github.com/stake-plus/bobu-forum/src/forum/service"
	"github.com/stake-plus/bobu-forum/src/forum/types"
	"github.com/stake-plus/bobu-forum/src/logging"
	"github.com/stake-plus/bobu-forum/src/notify"
)

// contractSetting resolves the legacy contract address: the stored
// setting first, then PROPOSAL_CONTRACT_ADDRESS.
func contractSetting(cfg config.Config) types.Address {
	def := ""
	if !types.IsZeroAddress(cfg.ProposalContract) {
		def = cfg.ProposalContract.Hex()
	}
	v := config.GetSetting(data.SettingContractAddress, "PROPOSAL_CONTRACT_ADDRESS", def)
	if v == "" {
		return types.Address{}
	}
	addr, err := types.ParseAddress(v)
	if err != nil {
		log.Warnf("ignoring stored contract address %q: %v", v, err)
		return cfg.ProposalContract
	}
	return addr
}

func sinks(cfg config.Config, events data.Events) notify.Sink {
	out := notify.Multi{notify.Stream{Pub: events}}
	if cfg.DiscordToken != "" && cfg.DiscordChannelID != "" {
		d, err := notify.NewDiscord(cfg.DiscordToken, cfg.DiscordChannelID, cfg.PublicURL)
		if err != nil {
			log.Warnf("discord announcements disabled: %v", err)
		} else {
			out = append(out, d)
		}
	}
	return out
}

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.Env)

	var db *gorm.DB
	if cfg.MySQLDSN != "" {
		db = data.MustMySQL(cfg.MySQLDSN)
		if err := data.LoadSettings(db); err != nil {
			log.Fatalf("load settings: %v", err)
		}
	} else {
		log.Warn("MYSQL_DSN not set; settings are kept in memory")
	}

	rdb := data.MustRedis(cfg.RedisURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := ledger.Dial(ctx, cfg.RPCURL, ledger.Options{
		ChainID:          cfg.ChainID,
		Hub:              cfg.HubAddress,
		ProposalContract: contractSetting(cfg),
		SignerKey:        cfg.SignerKey,
		Testnet:          cfg.Testnet(),
	})
	if err != nil {
		log.Fatalf("ledger: %v", err)
	}
	if signer, ok := client.SignerAddress(); ok {
		log.Infof("relaying writes from %s", signer.Hex())
	} else {
		log.Warn("SIGNER_KEY not set; write endpoints are disabled")
	}
	if types.IsZeroAddress(cfg.HubAddress) {
		log.Warn("HUB_ADDRESS not set; proposal endpoints will report a configuration error")
	}

	svc := service.New(service.Options{
		Reader:           client,
		Writer:           client,
		Logs:             client,
		PageSize:         cfg.PageSize,
		Events:           sinks(cfg, data.NewEvents(rdb)),
		Contract:         data.NewSettingStore(db, data.SettingContractAddress),
		Configured:       cfg.ProposalContract,
		OnContractChange: client.SetProposalContract,
	})

	router := webserver.New(cfg, svc, data.NewNonces(rdb))
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	tlsOn := cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""
	if tlsOn {
		reloader, err := webserver.NewTLSReloader(ctx, cfg.TLSCertFile, cfg.TLSKeyFile, 5*time.Minute)
		if err != nil {
			log.Fatalf("tls: %v", err)
		}
		httpSrv.TLSConfig = reloader.Config()
	}

	go func() {
		var err error
		if tlsOn {
			err = httpSrv.ListenAndServeTLS("", "")
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: %v", err)
		}
	}()
	log.Infof("forum API listening on %s (%s)", cfg.Port, cfg.Env)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	cancel()

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)
	_ = rdb.Close()
}
