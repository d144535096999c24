package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"nathanbeddoewebdev/mcfleet/internal/util"
)

const ServiceName = "mcfleet"

// Token names stored under ServiceName.
const (
	TokenCrafty  = "crafty"
	TokenHetzner = "hetzner"
)

// KnownTokens lists every token mcfleet reads.
var KnownTokens = []string{TokenCrafty, TokenHetzner}

var ErrTokenNotFound = errors.New("auth token not found")

type Store interface {
	SetToken(name string, token string) error
	GetToken(name string) (string, error)
	DeleteToken(name string) error
}

// DefaultStore returns the standard auth store backed by the OS keychain.
func DefaultStore() Store {
	return NewKeyringStore(ServiceName)
}

// NormalizeName normalizes a token name for consistent key lookup.
func NormalizeName(name string) string {
	return util.NormalizeKey(name)
}

// EnvVar is the environment variable that overrides the stored token.
func EnvVar(name string) string {
	return "MCFLEET_" + strings.ToUpper(NormalizeName(name)) + "_TOKEN"
}

// Source reports where a resolved token came from.
type Source string

const (
	SourceEnv     Source = "env"
	SourceKeyring Source = "keyring"
)

// Resolve returns the named token from the environment, falling back to
// the store.
func Resolve(store Store, name string) (string, Source, error) {
	if v := strings.TrimSpace(os.Getenv(EnvVar(name))); v != "" {
		return v, SourceEnv, nil
	}
	if store == nil {
		return "", "", fmt.Errorf("%s token: %w", name, ErrTokenNotFound)
	}
	token, err := store.GetToken(name)
	if err != nil {
		return "", "", fmt.Errorf("%s token: %w", name, err)
	}
	return token, SourceKeyring, nil
}
