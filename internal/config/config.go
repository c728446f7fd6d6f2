package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Local gateway the UI process talks to.
	HTTPAddr string

	// Remote marketplace API.
	APIBaseURL     string
	RequestTimeout time.Duration

	// Warm-start cache.
	RedisAddr string
	RedisPass string
	RedisDB   int

	// Media host for agreement documents and images.
	MediaUploadURL string
	MediaDeleteURL string
	MediaPreset    string

	// Solana payment target.
	SolanaRPCURL     string
	USDCMint         string
	RecipientAddress string
	PaymentAmount    float64
	WalletSecretKey  string
	ConfirmTimeout   time.Duration
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("securedeal: no .env file found, relying on system env vars")
	}

	return Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8041"),
		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:4000/api/v1"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 15*time.Second),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass: getEnv("REDIS_PASS", ""),
		RedisDB:   getInt("REDIS_DB", 0),

		MediaUploadURL: getEnv("MEDIA_UPLOAD_URL", "https://api.cloudinary.com/v1_1/securedeal/auto/upload"),
		MediaDeleteURL: getEnv("MEDIA_DELETE_URL", "https://api.cloudinary.com/v1_1/securedeal/image/destroy"),
		MediaPreset:    getEnv("MEDIA_UPLOAD_PRESET", "securedeal_unsigned"),

		SolanaRPCURL:     getEnv("SOLANA_RPC_URL", "https://api.devnet.solana.com"),
		USDCMint:         getEnv("USDC_MINT_ADDRESS", "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"),
		RecipientAddress: getEnv("RECIPIENT_ADDRESS", "3E4kKNEfZVvhh8yAUjJa4brtWCQ7UUCoFePDbKHLb4Eq"),
		PaymentAmount:    getFloat("PAYMENT_AMOUNT", 1),
		WalletSecretKey:  getEnv("WALLET_SECRET_KEY", ""),
		ConfirmTimeout:   getDuration("CONFIRM_TIMEOUT", 60*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
