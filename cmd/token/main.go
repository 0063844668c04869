// Command token mints a bearer token for an API client.
//
//	token -client intake-portal [-ttl 720h]
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"claimease/internal/config"
	"claimease/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	client := flag.String("client", "", "client name recorded as the token subject")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to CLAIMEASE_AUTH_TOKEN_EXPIRY)")
	flag.Parse()

	if *client == "" {
		return fmt.Errorf("-client is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = cfg.Auth.TokenExpiry
	}

	tok, err := service.NewAuthService(cfg.Auth).IssueToken(*client, lifetime)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	fmt.Println(tok.Token)
	log.Printf("token for %s expires at %s", tok.Client, tok.ExpiresAt.Format(time.RFC3339))
	return nil
}
