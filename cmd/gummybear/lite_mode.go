package main

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// setupLiteMode opens the local SQLite database used when DATABASE_URL is
// not set.
func setupLiteMode() (*sql.DB, error) {
	dataDir := "data"
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "gummybear.db")
	log.Printf("[gummybear] lite mode: using sqlite at %s", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	return db, nil
}

// loadOrGenerateSecret returns the JWT signing secret. JWT_SECRET wins; in
// dev a persistent random secret is generated under data/ so tokens survive
// restarts. Production refuses to run without an explicit secret.
func loadOrGenerateSecret() (string, error) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return secret, nil
	}

	if os.Getenv("GUMMYBEAR_PRODUCTION") == "1" {
		return "", fmt.Errorf("production mode requires JWT_SECRET to be set")
	}

	secretPath := filepath.Join("data", "jwt.secret")
	if raw, err := os.ReadFile(secretPath); err == nil && len(raw) > 0 {
		log.Printf("[gummybear] auth: loaded persistent dev secret")
		return string(raw), nil
	}

	if err := os.MkdirAll("data", 0750); err != nil {
		return "", fmt.Errorf("failed to create data dir: %w", err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	secret := hex.EncodeToString(buf)

	log.Printf("[gummybear] auth: generating new persistent dev secret at %s", secretPath)
	fmt.Fprintf(os.Stdout, "\n%s⚠️  SECURITY WARNING: Using auto-generated JWT secret.%s\n", ColorBold+ColorYellow, ColorReset)
	fmt.Fprintf(os.Stdout, "   Secret saved to: %s\n", secretPath)
	fmt.Fprintf(os.Stdout, "   In production, set JWT_SECRET from a secret manager.\n\n")

	if err := os.WriteFile(secretPath, []byte(secret), 0600); err != nil {
		return "", fmt.Errorf("failed to save jwt.secret: %w", err)
	}
	return secret, nil
}
