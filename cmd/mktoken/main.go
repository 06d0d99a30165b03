package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"assetflow.org/internal/auth"
	"assetflow.org/internal/config"
	"assetflow.org/internal/rbac"
)

// mktoken mints a signed bearer token for local testing and operator scripts.
// ASSETFLOW_AUTH_SECRET must match the API server's.
func main() {
	log.SetFlags(0)
	var (
		actor = flag.String("actor", "", "Actor id to embed in the token")
		role  = flag.String("role", "", "Actor role")
		ttl   = flag.Duration("ttl", 0, "Token lifetime, defaults to ASSETFLOW_TOKEN_TTL")
	)
	flag.Parse()

	if *actor == "" || *role == "" {
		log.Fatal("usage: mktoken -actor <id> -role <role> [-ttl 1h]")
	}

	parsed, err := rbac.ParseRole(*role)
	if err != nil {
		log.Fatalf("role: %v", err)
	}

	lifetime := *ttl
	if lifetime <= 0 {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		lifetime = cfg.TokenTTL
	}

	token, err := auth.GenerateToken(*actor, parsed, lifetime)
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}
	fmt.Println(token)
	log.Printf("expires %s", time.Now().Add(lifetime).UTC().Format(time.RFC3339))
}
