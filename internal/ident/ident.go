// Package ident mints the public "_id_dil" identifiers carried by every row.
package ident

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"github.com/renderinc/dil/internal/dilerr"
)

// MaxAttempts caps the regenerate-on-collision loop.
const MaxAttempts = 1000

const (
	suffixLen = 8
	letters   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Generate returns "<prefix>_<provider>_<8 chars>", or "<prefix>_<8 chars>"
// when provider is empty. The suffix comes from a random v4 UUID encoded in
// URL-safe base64, with '-' and '_' swapped for random letters so the
// suffix is purely alphanumeric.
func Generate(prefix, provider string) string {
	u := uuid.New()
	raw := base64.RawURLEncoding.EncodeToString(u[:])[:suffixLen]
	suffix := strings.Map(func(r rune) rune {
		if r == '-' || r == '_' {
			return rune(letters[rand.IntN(len(letters))])
		}
		return r
	}, raw)
	if provider == "" {
		return prefix + "_" + suffix
	}
	return prefix + "_" + provider + "_" + suffix
}

// ExistsFunc reports whether id is already taken in the target table.
type ExistsFunc func(ctx context.Context, id string) (bool, error)

// Generator produces identifiers unique within a table.
type Generator struct {
	provider string
	newID    func(prefix, provider string) string
}

// NewGenerator creates a generator stamping identifiers with provider.
func NewGenerator(provider string) *Generator {
	return &Generator{provider: provider, newID: Generate}
}

// Provider returns the provider segment embedded in generated identifiers.
func (g *Generator) Provider() string {
	return g.provider
}

// Unique draws identifiers until exists reports a free one. It gives up with
// dilerr.ErrIDExhausted after MaxAttempts collisions.
func (g *Generator) Unique(ctx context.Context, prefix string, exists ExistsFunc) (string, error) {
	for i := 0; i < MaxAttempts; i++ {
		id := g.newID(prefix, g.provider)
		taken, err := exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("check identifier %s: %w", id, err)
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: no free %s identifier after %d attempts", dilerr.ErrIDExhausted, prefix, MaxAttempts)
}
