package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"guessing_game/internal/chain"
	"guessing_game/internal/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed deployments.yaml
var defaultDeployments []byte

var (
	ErrUnknownDeployment = errors.New("unknown deployment")
	ErrInvalidAddress    = errors.New("invalid contract address")
)

// Deployment - one instance of the game contract
type Deployment struct {
	Name     string `yaml:"-"`
	ChainID  int64  `yaml:"chain_id"`
	Contract string `yaml:"contract"`
	Stake    string `yaml:"stake"`
	Symbol   string `yaml:"symbol"`
	Locale   string `yaml:"locale"`
}

type deploymentsFile struct {
	Default     string                `yaml:"default"`
	Deployments map[string]Deployment `yaml:"deployments"`
}

type Config struct {
	AppPort string
	RPCURL  string

	Deployment Deployment
	ChainID    int64
	Contract   common.Address // zero until a contract is deployed
	Stake      *big.Int

	KeystoreDir string
	PrivateKey  string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret  string
	SessionTTL time.Duration

	// Play limits
	PlayRateLimit  int
	PlayRateWindow int

	TxTimeout   time.Duration
	ReadTimeout time.Duration

	Log           logger.Options
	DefaultLocale string
	AllowedOrigin string
}

// HasContract reports whether a contract address is configured
func (c *Config) HasContract() bool {
	return c.Contract != (common.Address{})
}

// Load reads the server configuration from env. Missing required keys are fatal.
func Load() *Config {
	cfg := loadEnv()

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}
	if !cfg.HasContract() {
		logger.Fatal("CONTRACT_ADDRESS is not set", "deployment", cfg.Deployment.Name)
	}
	return cfg
}

// LoadChain reads the configuration needed by the command line tools
func LoadChain() *Config {
	return loadEnv()
}

func loadEnv() *Config {
	_ = godotenv.Load()

	cfg, err := Parse(os.Getenv)
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	if cfg.RPCURL == "" {
		logger.Fatal("RPC_URL is not set")
	}
	return cfg
}

// Parse builds a Config from getenv without exiting on errors
func Parse(getenv func(string) string) (*Config, error) {
	raw := defaultDeployments
	if path := getenv("DEPLOYMENTS_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read deployments file: %w", err)
		}
		raw = b
	}

	dep, err := SelectDeployment(raw, getenv("DEPLOYMENT"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppPort:       getenv("APP_PORT"),
		RPCURL:        getenv("RPC_URL"),
		Deployment:    dep,
		KeystoreDir:   getenv("KEYSTORE_DIR"),
		PrivateKey:    strings.TrimPrefix(getenv("PRIVATE_KEY"), "0x"),
		DatabaseURL:   getenv("DATABASE_URL"),
		RedisAddr:     getenv("REDIS_ADDR"),
		RedisPassword: getenv("REDIS_PASSWORD"),
		JWTSecret:     getenv("JWT_SECRET"),
		AllowedOrigin: getenv("ALLOWED_ORIGIN"),
	}
	if cfg.AppPort == "" {
		cfg.AppPort = "8080"
	}
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
	}

	cfg.ChainID = dep.ChainID
	if v := getenv("CHAIN_ID"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid CHAIN_ID %q", v)
		}
		cfg.ChainID = n
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = chain.DefaultChainID
	}

	addr := dep.Contract
	if v := getenv("CONTRACT_ADDRESS"); v != "" {
		addr = v
	}
	if addr != "" {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
		}
		cfg.Contract = common.HexToAddress(addr)
	}

	stake := dep.Stake
	if v := getenv("STAKE"); v != "" {
		stake = v
	}
	if stake == "" {
		return nil, fmt.Errorf("no stake configured for deployment %q", dep.Name)
	}
	cfg.Stake, err = chain.ParseEther(stake)
	if err != nil || cfg.Stake.Sign() <= 0 {
		return nil, fmt.Errorf("invalid STAKE %q", stake)
	}

	cfg.RedisDB = envInt(getenv, "REDIS_DB", 0)
	cfg.PlayRateLimit = envInt(getenv, "PLAY_RATE_LIMIT", 10)   // plays per ->
	cfg.PlayRateWindow = envInt(getenv, "PLAY_RATE_WINDOW", 60) // -> 60 seconds

	cfg.SessionTTL = envDuration(getenv, "SESSION_TTL", 24*time.Hour)
	cfg.TxTimeout = envDuration(getenv, "TX_TIMEOUT", chain.DefaultTxTimeout)
	cfg.ReadTimeout = envDuration(getenv, "READ_TIMEOUT", chain.DefaultReadTimeout)

	cfg.Log = logger.Options{
		Level: getenv("LOG_LEVEL"),
		JSON:  getenv("LOG_JSON") == "true",
		File:  getenv("LOG_FILE"),
	}

	cfg.DefaultLocale = getenv("DEFAULT_LOCALE")
	if cfg.DefaultLocale == "" {
		cfg.DefaultLocale = dep.Locale
	}

	return cfg, nil
}

// SelectDeployment parses a deployments document and picks name, or its default when name is empty.
func SelectDeployment(raw []byte, name string) (Deployment, error) {
	var f deploymentsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Deployment{}, fmt.Errorf("parse deployments: %w", err)
	}
	if name == "" {
		name = f.Default
	}

	dep, ok := f.Deployments[name]
	if !ok {
		return Deployment{}, fmt.Errorf("%w: %q", ErrUnknownDeployment, name)
	}
	dep.Name = name
	if dep.Symbol == "" {
		dep.Symbol = chain.DefaultSymbol
	}
	return dep, nil
}

func envInt(getenv func(string) string, key string, def int) int {
	if v := getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envDuration(getenv func(string) string, key string, def time.Duration) time.Duration {
	if v := getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
