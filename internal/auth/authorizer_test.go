package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAccessStore struct {
	admins      map[uuid.UUID]bool
	members     map[uuid.UUID]uuid.UUID
	err         error
	adminChecks int
}

func (s *stubAccessStore) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	s.adminChecks++
	if s.err != nil {
		return false, s.err
	}
	return s.admins[userID], nil
}

func (s *stubAccessStore) HasCompanyAccess(ctx context.Context, userID uuid.UUID, companyID uuid.UUID) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.members[userID] == companyID, nil
}

func TestPolicyAuthorizerRunRequiresAdmin(t *testing.T) {
	admin, member := uuid.New(), uuid.New()
	company := uuid.New()
	store := &stubAccessStore{
		admins:  map[uuid.UUID]bool{admin: true},
		members: map[uuid.UUID]uuid.UUID{member: company},
	}
	authz := NewPolicyAuthorizer(store)
	ctx := context.Background()

	allowed, err := authz.Authorize(ctx, Request{Caller: Caller{UserID: admin}, Action: ActionRunImport})
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = authz.Authorize(ctx, Request{Caller: Caller{UserID: member}, Action: ActionRunImport})
	require.NoError(t, err)
	assert.False(t, allowed, "company members cannot run imports")

	allowed, err = authz.Authorize(ctx, Request{Caller: SystemCaller(), Action: ActionRunImport})
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestPolicyAuthorizerReadAllowsCompanyMembers(t *testing.T) {
	member := uuid.New()
	company, other := uuid.New(), uuid.New()
	store := &stubAccessStore{members: map[uuid.UUID]uuid.UUID{member: company}}
	authz := NewPolicyAuthorizer(store)
	ctx := context.Background()

	allowed, err := authz.Authorize(ctx, Request{Caller: Caller{UserID: member}, Action: ActionReadImports, CompanyID: company})
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = authz.Authorize(ctx, Request{Caller: Caller{UserID: member}, Action: ActionReadImports, CompanyID: other})
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestPolicyAuthorizerPropagatesStoreErrors(t *testing.T) {
	store := &stubAccessStore{err: errors.New("connection refused")}
	_, err := NewPolicyAuthorizer(store).Authorize(context.Background(), Request{Caller: Caller{UserID: uuid.New()}, Action: ActionRunImport})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCachedAuthorizerReusesDecisionsUntilExpiry(t *testing.T) {
	user := uuid.New()
	store := &stubAccessStore{admins: map[uuid.UUID]bool{user: true}}
	cached := NewCachedAuthorizer(NewPolicyAuthorizer(store), time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cached.now = func() time.Time { return now }

	req := Request{Caller: Caller{UserID: user}, Action: ActionRunImport}
	for i := 0; i < 3; i++ {
		allowed, err := cached.Authorize(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	assert.Equal(t, 1, store.adminChecks)

	now = now.Add(2 * time.Minute)
	_, err := cached.Authorize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, store.adminChecks)
}

func TestCachedAuthorizerEvictsExpiredEntries(t *testing.T) {
	store := &stubAccessStore{admins: map[uuid.UUID]bool{}}
	cached := NewCachedAuthorizer(NewPolicyAuthorizer(store), time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cached.now = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		_, err := cached.Authorize(context.Background(), Request{Caller: Caller{UserID: uuid.New()}, Action: ActionRunImport})
		require.NoError(t, err)
	}
	assert.Len(t, cached.cache, 50)

	now = now.Add(2 * time.Minute)
	_, err := cached.Authorize(context.Background(), Request{Caller: Caller{UserID: uuid.New()}, Action: ActionRunImport})
	require.NoError(t, err)
	assert.Len(t, cached.cache, 1)
}

func TestCallerFromContextRejectsAnonymousCallers(t *testing.T) {
	_, ok := CallerFromContext(context.Background())
	assert.False(t, ok)

	_, ok = CallerFromContext(ContextWithCaller(context.Background(), Caller{}))
	assert.False(t, ok)

	caller, ok := CallerFromContext(ContextWithCaller(context.Background(), SystemCaller()))
	require.True(t, ok)
	assert.True(t, caller.System)
}
