// mktoken mints a signed bearer token for a user id, for development
// and smoke tests against a running server.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"kharcha/internal/auth"
	"kharcha/internal/config"
)

func main() {
	userID := flag.String("user", "", "user id to embed in the token")
	ttl := flag.Duration("ttl", 0, "token lifetime (default: TOKEN_TTL from config)")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: mktoken -user <id> [-ttl 24h]")
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}

	duration := cfg.TokenTTL
	if *ttl > 0 {
		duration = *ttl
	}

	token, err := auth.NewJWTManager(cfg.JWTSecret, duration).Generate(*userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
