package common

import (
	"os"
	"strconv"
	"time"
)

// Config carries all process settings, loaded from the environment with
// development defaults.
type Config struct {
	Port      string
	JWTSecret string
	Issuer    string

	// DataDir holds the local snapshot; AllowInvalid overrides the startup
	// constraint check (see localstore.Open).
	DataDir      string
	AllowInvalid bool

	Ledger LedgerConfig
}

// LedgerConfig is the Fabric connection block.
type LedgerConfig struct {
	ConnectionProfile string
	ChannelName       string
	ContractName      string
	MSPID             string
	CertPath          string
	KeyPath           string
	WalletDir         string
	FinalityTimeout   time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		JWTSecret:    getEnv("JWT_SECRET", "dev-secret-change-me"),
		Issuer:       getEnv("JWT_ISSUER", "budget-ledger-service"),
		DataDir:      getEnv("DATA_DIR", "./data"),
		AllowInvalid: getEnvBool("STORE_ALLOW_INVALID", false),
		Ledger: LedgerConfig{
			ConnectionProfile: getEnv("FABRIC_CONFIG", "connection-profile.yaml"),
			ChannelName:       getEnv("FABRIC_CHANNEL", "budget-main-channel"),
			ContractName:      getEnv("FABRIC_CONTRACT", "budget-ledger"),
			MSPID:             getEnv("MSP_ID", "BudgetLedgerMSP"),
			CertPath:          getEnv("CERT_PATH", ""),
			KeyPath:           getEnv("KEY_PATH", ""),
			WalletDir:         getEnv("FABRIC_WALLET_DIR", "wallet"),
			FinalityTimeout:   time.Duration(GetEnvInt("LEDGER_FINALITY_TIMEOUT_SECONDS", 30)) * time.Second,
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return fallback
}

func GetEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return fallback
}
