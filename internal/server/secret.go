package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/sakif/storefront/internal/repository"
)

// tokenSecret returns the configured secret, or the one kept in the store
// under "jwt-secret", generating and saving it on first start. Keeping it in
// the store lets token cookies outlive a restart together with the restored
// session.
func tokenSecret(ctx context.Context, configured string, store repository.KeyValueStore, logger *slog.Logger) (string, error) {
	if configured != "" {
		return configured, nil
	}

	var stored string
	ok, err := repository.GetJSON(ctx, store, repository.JWTSecretKey, &stored)
	if err != nil {
		return "", fmt.Errorf("reading token secret: %w", err)
	}
	if ok && stored != "" {
		return stored, nil
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token secret: %w", err)
	}
	secret := hex.EncodeToString(b)

	if err := repository.SetJSON(ctx, store, repository.JWTSecretKey, secret); err != nil {
		return "", fmt.Errorf("saving token secret: %w", err)
	}
	logger.Info("generated token secret")
	return secret, nil
}
