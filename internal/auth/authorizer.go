package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCacheTTL is the default time-to-live for cached authorization results.
const DefaultCacheTTL = 30 * time.Second

// Action is the capability a request needs.
type Action string

const (
	// ActionRunImport requires the admin role.
	ActionRunImport Action = "import:run"
	// ActionReadImports requires the admin role or membership of the company.
	ActionReadImports Action = "import:read"
)

// Request describes one authorization decision.
type Request struct {
	Caller    Caller
	Action    Action
	CompanyID uuid.UUID
}

// Authorizer decides whether a caller may perform an action.
type Authorizer interface {
	Authorize(ctx context.Context, req Request) (bool, error)
}

// AccessStore answers role and membership lookups.
type AccessStore interface {
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
	HasCompanyAccess(ctx context.Context, userID uuid.UUID, companyID uuid.UUID) (bool, error)
}

// PolicyAuthorizer applies the admin and company access gates over an AccessStore.
type PolicyAuthorizer struct {
	store AccessStore
}

// NewPolicyAuthorizer wraps store.
func NewPolicyAuthorizer(store AccessStore) *PolicyAuthorizer {
	return &PolicyAuthorizer{store: store}
}

// Authorize implements Authorizer.
func (a *PolicyAuthorizer) Authorize(ctx context.Context, req Request) (bool, error) {
	if req.Caller.System {
		return true, nil
	}
	if req.Caller.UserID == uuid.Nil {
		return false, nil
	}

	admin, err := a.store.IsAdmin(ctx, req.Caller.UserID)
	if err != nil {
		return false, fmt.Errorf("check admin role: %w", err)
	}
	if admin {
		return true, nil
	}

	switch req.Action {
	case ActionReadImports:
		if req.CompanyID == uuid.Nil {
			return false, nil
		}
		member, err := a.store.HasCompanyAccess(ctx, req.Caller.UserID, req.CompanyID)
		if err != nil {
			return false, fmt.Errorf("check company access: %w", err)
		}
		return member, nil
	default:
		return false, nil
	}
}

type cacheEntry struct {
	allowed   bool
	expiresAt time.Time
}

// CachedAuthorizer wraps another Authorizer with a short-lived in-memory cache
// so per-request role lookups do not hit the database every time.
type CachedAuthorizer struct {
	inner     Authorizer
	ttl       time.Duration
	now       func() time.Time
	mu        sync.RWMutex
	cache     map[string]cacheEntry
	nextSweep time.Time
}

// NewCachedAuthorizer creates a CachedAuthorizer that wraps inner with the given TTL.
func NewCachedAuthorizer(inner Authorizer, ttl time.Duration) *CachedAuthorizer {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedAuthorizer{
		inner: inner,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]cacheEntry),
	}
}

// Authorize checks the cache first and delegates to the inner Authorizer on miss.
// Errors are never cached.
func (c *CachedAuthorizer) Authorize(ctx context.Context, req Request) (bool, error) {
	key := cacheKey(req)

	c.mu.RLock()
	entry, ok := c.cache[key]
	c.mu.RUnlock()

	if ok && c.now().Before(entry.expiresAt) {
		return entry.allowed, nil
	}

	allowed, err := c.inner.Authorize(ctx, req)
	if err != nil {
		return false, err
	}

	now := c.now()
	c.mu.Lock()
	if now.After(c.nextSweep) {
		c.sweep(now)
		c.nextSweep = now.Add(c.ttl)
	}
	c.cache[key] = cacheEntry{
		allowed:   allowed,
		expiresAt: now.Add(c.ttl),
	}
	c.mu.Unlock()

	return allowed, nil
}

// sweep drops expired entries. Callers hold c.mu.
func (c *CachedAuthorizer) sweep(now time.Time) {
	for key, entry := range c.cache {
		if !now.Before(entry.expiresAt) {
			delete(c.cache, key)
		}
	}
}

func cacheKey(req Request) string {
	return fmt.Sprintf("%s:%t:%s:%s", req.Caller.UserID, req.Caller.System, req.Action, req.CompanyID)
}
