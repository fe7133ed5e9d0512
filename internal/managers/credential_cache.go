package managers

import (
	"context"
	"sync"
	"time"

	"github.com/pulseboard/pulseboard/pkg/domain"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const DefaultSafetyBuffer = 30 * time.Second

type CredentialCacheOptions struct {
	// SafetyBuffer keeps credentials from being served within this window of
	// their expiry. Defaults to DefaultSafetyBuffer.
	SafetyBuffer time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

type credentialCache struct {
	entries      sync.Map // identity -> domain.CachedCredential
	group        singleflight.Group
	safetyBuffer time.Duration
	now          func() time.Time
}

// NewCredentialCache builds the process-wide credential store. Reads are
// lock-free; refreshes are serialized per identity, so refreshing one
// integration never blocks another.
func NewCredentialCache(opts CredentialCacheOptions) domain.CredentialCache {
	if opts.SafetyBuffer <= 0 {
		opts.SafetyBuffer = DefaultSafetyBuffer
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &credentialCache{
		safetyBuffer: opts.SafetyBuffer,
		now:          opts.Now,
	}
}

func (c *credentialCache) Get(identity string) (domain.CachedCredential, bool) {
	value, ok := c.entries.Load(identity)
	if !ok {
		return domain.CachedCredential{}, false
	}

	credential := value.(domain.CachedCredential)

	if !credential.ValidAt(c.now(), c.safetyBuffer) {
		c.entries.Delete(identity)
		return domain.CachedCredential{}, false
	}

	return credential, true
}

// Ensure returns a valid cached credential, authenticating on miss or
// expiry. Concurrent callers for the same identity share a single in-flight
// authentication; upstream login endpoints may rate-limit or invalidate
// prior sessions on repeated calls, so this is a correctness requirement.
func (c *credentialCache) Ensure(ctx context.Context, identity string, authenticate domain.AuthenticateFunc) (domain.CachedCredential, error) {
	if credential, ok := c.Get(identity); ok {
		return credential, nil
	}

	value, err, _ := c.group.Do(identity, func() (any, error) {
		if credential, ok := c.Get(identity); ok {
			return credential, nil
		}

		credential, err := authenticate(ctx)
		if err != nil {
			return nil, err
		}

		c.entries.Store(identity, credential)

		log.Debug().
			Str("identity", identity).
			Str("kind", string(credential.Kind)).
			Time("expires_at", credential.ExpiresAt).
			Msg("cached fresh credential")

		return credential, nil
	})
	if err != nil {
		return domain.CachedCredential{}, err
	}

	return value.(domain.CachedCredential), nil
}

func (c *credentialCache) Invalidate(identity string) {
	c.entries.Delete(identity)

	log.Debug().Str("identity", identity).Msg("invalidated cached credential")
}
