package config

import (
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/stake-plus/bobu-forum/src/data"
	"github.com/stake-plus/bobu-forum/src/forum/types"
)

const (
	EnvTestnet = "testnet"
	EnvMainnet = "mainnet"
)

type Config struct {
	Env              string
	RPCURL           string
	ChainID          *big.Int
	HubAddress       types.Address
	ProposalContract types.Address
	SignerKey        string
	MySQLDSN         string
	RedisURL         string
	JWTSecret        string
	Port             string
	DiscordToken     string
	DiscordChannelID string
	PageSize         int
	LogLevel         string
	AllowedOrigins   []string
	PublicURL        string
	// Admins may change the legacy contract address setting.
	Admins           []types.Address
	TLSCertFile      string
	TLSKeyFile       string
}

// Testnet reports whether development-only operations are allowed.
func (c Config) Testnet() bool { return c.Env != EnvMainnet }

// File is the optional YAML config named by FORUM_CONFIG. Environment
// variables take precedence over it.
type File struct {
	Env              string   `yaml:"env"`
	RPCURL           string   `yaml:"rpc_url"`
	ChainID          string   `yaml:"chain_id"`
	HubAddress       string   `yaml:"hub_address"`
	ProposalContract string   `yaml:"proposal_contract_address"`
	SignerKey        string   `yaml:"signer_key"`
	MySQLDSN         string   `yaml:"mysql_dsn"`
	RedisURL         string   `yaml:"redis_url"`
	JWTSecret        string   `yaml:"jwt_secret"`
	Port             string   `yaml:"port"`
	DiscordToken     string   `yaml:"discord_token"`
	DiscordChannelID string   `yaml:"discord_channel_id"`
	PageSize         string   `yaml:"page_size"`
	LogLevel         string   `yaml:"log_level"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	PublicURL        string   `yaml:"public_url"`
	Admins           []string `yaml:"admin_addresses"`
	TLSCertFile      string   `yaml:"tls_cert_file"`
	TLSKeyFile       string   `yaml:"tls_key_file"`
}

func ParseFile(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read file %s", path)
	}
	f := &File{}
	if err := yaml.Unmarshal(content, f); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return f, nil
}

func (f *File) values() map[string]string {
	if f == nil {
		return nil
	}
	return map[string]string{
		"APP_ENV":                   f.Env,
		"RPC_URL":                   f.RPCURL,
		"CHAIN_ID":                  f.ChainID,
		"HUB_ADDRESS":               f.HubAddress,
		"PROPOSAL_CONTRACT_ADDRESS": f.ProposalContract,
		"SIGNER_KEY":                f.SignerKey,
		"MYSQL_DSN":                 f.MySQLDSN,
		"REDIS_URL":                 f.RedisURL,
		"JWT_SECRET":                f.JWTSecret,
		"PORT":                      f.Port,
		"DISCORD_TOKEN":             f.DiscordToken,
		"DISCORD_CHANNEL_ID":        f.DiscordChannelID,
		"PAGE_SIZE":                 f.PageSize,
		"LOG_LEVEL":                 f.LogLevel,
		"ALLOWED_ORIGINS":           strings.Join(f.AllowedOrigins, ","),
		"PUBLIC_URL":                f.PublicURL,
		"ADMIN_ADDRESSES":           strings.Join(f.Admins, ","),
		"TLS_CERT_FILE":             f.TLSCertFile,
		"TLS_KEY_FILE":              f.TLSKeyFile,
	}
}

type source struct {
	file map[string]string
}

func (s source) lookup(key string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(s.file[key])
}

func (s source) getenv(key, def string) string {
	if v := s.lookup(key); v != "" {
		return v
	}
	return def
}

func (s source) address(key string) types.Address {
	v := s.lookup(key)
	if v == "" {
		return types.Address{}
	}
	addr, err := types.ParseAddress(v)
	if err != nil {
		log.Warnf("config: ignoring %s: %v", key, err)
		return types.Address{}
	}
	return addr
}

// Load reads the environment, seeded by the FORUM_CONFIG file when set.
func Load() Config {
	var f *File
	if path := os.Getenv("FORUM_CONFIG"); path != "" {
		var err error
		if f, err = ParseFile(path); err != nil {
			log.Fatal(err)
		}
	}
	cfg, err := FromSources(f)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

// FromSources builds a Config from the environment layered over f.
func FromSources(f *File) (Config, error) {
	s := source{file: f.values()}

	chainID, ok := new(big.Int).SetString(s.getenv("CHAIN_ID", "11155111"), 10)
	if !ok {
		return Config{}, errors.Errorf("CHAIN_ID %q is not a number", s.lookup("CHAIN_ID"))
	}
	pageSize, err := strconv.Atoi(s.getenv("PAGE_SIZE", "10"))
	if err != nil || pageSize <= 0 {
		return Config{}, errors.Errorf("PAGE_SIZE %q must be a positive integer", s.lookup("PAGE_SIZE"))
	}
	env := strings.ToLower(s.getenv("APP_ENV", EnvTestnet))
	if env != EnvTestnet && env != EnvMainnet {
		return Config{}, errors.Errorf("APP_ENV must be %s or %s, got %q", EnvTestnet, EnvMainnet, env)
	}
	secret := s.lookup("JWT_SECRET")
	if secret == "" {
		return Config{}, errors.New("missing env JWT_SECRET")
	}

	var origins []string
	for _, o := range strings.Split(s.getenv("ALLOWED_ORIGINS", "http://localhost:5173"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	var admins []types.Address
	for _, a := range strings.Split(s.lookup("ADMIN_ADDRESSES"), ",") {
		if a = strings.TrimSpace(a); a == "" {
			continue
		}
		addr, err := types.ParseAddress(a)
		if err != nil {
			return Config{}, errors.Wrap(err, "ADMIN_ADDRESSES")
		}
		admins = append(admins, addr)
	}

	return Config{
		Env:              env,
		RPCURL:           s.getenv("RPC_URL", "http://127.0.0.1:8545"),
		ChainID:          chainID,
		HubAddress:       s.address("HUB_ADDRESS"),
		ProposalContract: s.address("PROPOSAL_CONTRACT_ADDRESS"),
		SignerKey:        s.lookup("SIGNER_KEY"),
		MySQLDSN:         s.lookup("MYSQL_DSN"),
		RedisURL:         s.getenv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		JWTSecret:        secret,
		Port:             s.getenv("PORT", "8080"),
		DiscordToken:     s.lookup("DISCORD_TOKEN"),
		DiscordChannelID: s.lookup("DISCORD_CHANNEL_ID"),
		PageSize:         pageSize,
		LogLevel:         s.getenv("LOG_LEVEL", "info"),
		AllowedOrigins:   origins,
		PublicURL:        s.lookup("PUBLIC_URL"),
		Admins:           admins,
		TLSCertFile:      s.lookup("TLS_CERT_FILE"),
		TLSKeyFile:       s.lookup("TLS_KEY_FILE"),
	}, nil
}

// GetSetting retrieves a setting with env fallback
func GetSetting(name, envKey, defaultValue string) string {
	val := data.GetSetting(name)
	if val == "" {
		val = os.Getenv(envKey)
	}
	if val == "" {
		val = defaultValue
	}
	return val
}
