package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dwarvesf/mint-relayer/internal/types/environments"
)

const (
	defaultBaseRPCEndpoint       = "https://1rpc.io/base"
	defaultPriceUSDC             = "5"
	defaultUSDCDecimals          = 6
	defaultMintAmount            = "5000"
	defaultTokenDecimals         = 18
	defaultRequiredConfirmations = 2
	defaultFallbackGasLimit      = 300000
	defaultLedgerTTL             = 24 * time.Hour
	defaultRelayerMinBalance     = 0.0005
	defaultRelayerSubmitTimeout  = 30 * time.Second
)

type AppConfig struct {
	Environment environments.Environment
	ApiServer   ApiServerConfig
	Postgres    DBConnection
	Blockchain  BlockchainConfig
	Payment     PaymentConfig
	Mint        MintConfig
	Relayer     RelayerConfig
	Ledger      LedgerConfig
	Vault       VaultConfig
	Alert       AlertConfig
}

type ApiServerConfig struct {
	Port           string
	AllowedOrigins string
	DisableSwagger bool
}

type BlockchainConfig struct {
	BaseRPCEndpoint   string
	TokenContractAddr string
	USDCContractAddr  string
	RPCTimeout        time.Duration
}

// PaymentConfig holds the accepted payment, in human units of the payment token.
type PaymentConfig struct {
	PriceUSDC             string
	USDCDecimals          int
	RequiredConfirmations uint64
}

type MintConfig struct {
	Amount        string
	TokenDecimals int
}

type RelayerConfig struct {
	PrivateKey       string
	VaultSecretKey   string
	FallbackGasLimit uint64
	ConfirmTimeout   time.Duration
	// SubmitTimeout bounds gas estimation, signing lookups and broadcast of one mint.
	SubmitTimeout time.Duration
	// MinBalance is the native balance, in ether, under which health reports the relayer unhealthy.
	MinBalance float64
}

type LedgerConfig struct {
	Backend        string
	UpstashURL     string
	UpstashToken   string
	TTL            time.Duration
	SweepSchedule  string
	RequestTimeout time.Duration
}

type VaultConfig struct {
	Address string
	Role    string
	KVPath  string
}

type AlertConfig struct {
	WebhookURL string
}

type DBConnection struct {
	Host string
	Port string
	User string
	Name string
	Pass string

	SSLMode string
}

func New() *AppConfig {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// this will not override env variables if they already exist
	godotenv.Load(".env." + env)

	return &AppConfig{
		Environment: environments.Parse(env),
		ApiServer: ApiServerConfig{
			Port:           envVarOrDefault("API_SERVER_PORT", "8080"),
			AllowedOrigins: envVarOrDefault("ALLOWED_ORIGINS", "*"),
			DisableSwagger: envVarAsBool("API_DISABLE_SWAGGER"),
		},
		Postgres: DBConnection{
			Host:    os.Getenv("DB_HOST"),
			Port:    os.Getenv("DB_PORT"),
			User:    os.Getenv("DB_USER"),
			Name:    os.Getenv("DB_NAME"),
			Pass:    os.Getenv("DB_PASS"),
			SSLMode: envVarOrDefault("DB_SSL_MODE", "disable"),
		},
		Blockchain: BlockchainConfig{
			BaseRPCEndpoint:   envVarOrDefault("BLOCKCHAIN_BASE_RPC_ENDPOINT", defaultBaseRPCEndpoint),
			TokenContractAddr: os.Getenv("BLOCKCHAIN_TOKEN_CONTRACT_ADDR"),
			USDCContractAddr:  os.Getenv("BLOCKCHAIN_USDC_CONTRACT_ADDR"),
			RPCTimeout:        envVarAsSeconds("BLOCKCHAIN_RPC_TIMEOUT", 10*time.Second),
		},
		Payment: PaymentConfig{
			PriceUSDC:             envVarOrDefault("PAYMENT_PRICE_USDC", defaultPriceUSDC),
			USDCDecimals:          envVarAtoiOrDefault("PAYMENT_USDC_DECIMALS", defaultUSDCDecimals),
			RequiredConfirmations: uint64(envVarAtoiOrDefault("PAYMENT_REQUIRED_CONFIRMATIONS", defaultRequiredConfirmations)),
		},
		Mint: MintConfig{
			Amount:        envVarOrDefault("MINT_AMOUNT", defaultMintAmount),
			TokenDecimals: envVarAtoiOrDefault("MINT_TOKEN_DECIMALS", defaultTokenDecimals),
		},
		Relayer: RelayerConfig{
			PrivateKey:       os.Getenv("RELAYER_PRIVATE_KEY"),
			VaultSecretKey:   os.Getenv("RELAYER_VAULT_SECRET_KEY"),
			FallbackGasLimit: uint64(envVarAtoiOrDefault("MINT_FALLBACK_GAS_LIMIT", defaultFallbackGasLimit)),
			ConfirmTimeout:   envVarAsSeconds("MINT_CONFIRM_TIMEOUT", 2*time.Minute),
			SubmitTimeout:    envVarAsSeconds("RELAYER_SUBMIT_TIMEOUT", defaultRelayerSubmitTimeout),
			MinBalance:       envVarAsFloat("RELAYER_MIN_BALANCE", defaultRelayerMinBalance),
		},
		Ledger: LedgerConfig{
			Backend:        os.Getenv("LEDGER_BACKEND"),
			UpstashURL:     os.Getenv("UPSTASH_REDIS_REST_URL"),
			UpstashToken:   os.Getenv("UPSTASH_REDIS_REST_TOKEN"),
			TTL:            envVarAsSeconds("LEDGER_TTL", defaultLedgerTTL),
			SweepSchedule:  envVarOrDefault("LEDGER_SWEEP_SCHEDULE", "@every 1h"),
			RequestTimeout: envVarAsSeconds("LEDGER_REQUEST_TIMEOUT", 5*time.Second),
		},
		Vault: VaultConfig{
			Address: os.Getenv("VAULT_ADDR"),
			Role:    os.Getenv("VAULT_ROLE"),
			KVPath:  envVarOrDefault("VAULT_KV_PATH", "secret/data/mint-relayer"),
		},
		Alert: AlertConfig{
			WebhookURL: os.Getenv("ALERT_WEBHOOK_URL"),
		},
	}
}

func envVarOrDefault(envName, fallback string) string {
	if v := os.Getenv(envName); v != "" {
		return v
	}
	return fallback
}

func envVarAtoiOrDefault(envName string, fallback int) int {
	valueStr := os.Getenv(envName)
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		panic(err)
	}

	return value
}

// envVarAsSeconds reads a whole number of seconds. Zero and negative values fall back.
func envVarAsSeconds(envName string, fallback time.Duration) time.Duration {
	seconds := envVarAtoiOrDefault(envName, 0)
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func envVarAsFloat(envName string, fallback float64) float64 {
	valueStr := os.Getenv(envName)
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		panic(err)
	}

	return value
}

func envVarAsBool(envName string) bool {
	valueStr := os.Getenv(envName)
	return valueStr == "true"
}
