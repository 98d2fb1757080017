package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	envPrefix     = "env:"
	keyringPrefix = "keyring:"

	// KeyringService is the service name secrets are stored under.
	KeyringService = "gomemory"
)

// ResolveSecret turns a configured secret into its value: "env:NAME" reads
// the environment, "keyring:NAME" reads the OS keyring, anything else is
// returned as is.
func ResolveSecret(ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, envPrefix):
		name := strings.TrimPrefix(ref, envPrefix)
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			return "", fmt.Errorf("secret: environment variable %s is not set", name)
		}
		return v, nil
	case strings.HasPrefix(ref, keyringPrefix):
		name := strings.TrimPrefix(ref, keyringPrefix)
		v, err := keyring.Get(KeyringService, name)
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("secret: keyring entry %q not found", name)
		}
		if err != nil {
			return "", fmt.Errorf("secret: keyring: %w", err)
		}
		return v, nil
	}
	return ref, nil
}

// StoreSecret saves value in the OS keyring and returns the reference to put
// in the config file.
func StoreSecret(name, value string) (string, error) {
	if err := keyring.Set(KeyringService, name, value); err != nil {
		return "", fmt.Errorf("secret: keyring: %w", err)
	}
	return keyringPrefix + name, nil
}

func isSecretRef(s string) bool {
	return strings.HasPrefix(s, envPrefix) || strings.HasPrefix(s, keyringPrefix)
}
