package quota

import (
	"errors"

	"github.com/pario-ai/llmstxt/pkg/models"
)

// ErrMissingCredential is returned when a restricted request arrives and no
// shared scrape credential is configured.
var ErrMissingCredential = errors.New("shared scrape credential is not configured")

// Quota is the resolved tier for a single request.
type Quota struct {
	Tier   models.Tier
	Limit  int
	APIKey string
}

// Apply truncates urls to the quota limit, preserving order. The input slice
// is not modified.
func (q Quota) Apply(urls []string) []string {
	if len(urls) <= q.Limit {
		return urls
	}
	out := make([]string, q.Limit)
	copy(out, urls[:q.Limit])
	return out
}

// Mode says whether the scraping provider is driven by a credential.
type Mode int

const (
	// Credentialed providers bill a scrape credential. Restricted requests
	// need the shared credential; caller credentials unlock the
	// unrestricted tier.
	Credentialed Mode = iota
	// Keyless providers take no credential, so a caller key proves nothing
	// and every request stays restricted.
	Keyless
)

// Resolver decides which credential and URL ceiling a request gets.
type Resolver struct {
	sharedKey    string
	defaultLimit int
	byokLimit    int
	mode         Mode
}

// New creates a Resolver.
func New(sharedKey string, defaultLimit, byokLimit int, mode Mode) *Resolver {
	return &Resolver{
		sharedKey:    sharedKey,
		defaultLimit: defaultLimit,
		byokLimit:    byokLimit,
		mode:         mode,
	}
}

// Resolve returns the quota for a request carrying byokKey, which may be empty.
func (r *Resolver) Resolve(byokKey string) (Quota, error) {
	if r.mode == Keyless {
		return Quota{Tier: models.TierRestricted, Limit: r.defaultLimit}, nil
	}
	if byokKey != "" {
		return Quota{Tier: models.TierUnrestricted, Limit: r.byokLimit, APIKey: byokKey}, nil
	}
	if r.sharedKey == "" {
		return Quota{}, ErrMissingCredential
	}
	return Quota{Tier: models.TierRestricted, Limit: r.defaultLimit, APIKey: r.sharedKey}, nil
}
