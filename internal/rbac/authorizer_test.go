package rbac_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitrine-shop/vitrine/internal/rbac"
)

type stubStore struct {
	mu      sync.Mutex
	records map[string]*rbac.UserRecord
	err     error
	calls   int
	after   func()
}

func (s *stubStore) FindUserRecord(ctx context.Context, id string) (*rbac.UserRecord, error) {
	s.mu.Lock()
	s.calls++
	after := s.after
	s.mu.Unlock()
	if after != nil {
		after()
	}
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

func (s *stubStore) set(rec rbac.UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		s.records = map[string]*rbac.UserRecord{}
	}
	s.records[rec.ID] = &rec
}

type recordingObserver struct {
	outcomes []string
}

func (o *recordingObserver) ObserveDecision(outcome, reason string) {
	o.outcomes = append(o.outcomes, outcome+":"+reason)
}

func TestAuthorizeSuperAdminSkipsLookup(t *testing.T) {
	store := &stubStore{err: errors.New("db down")}
	a := rbac.NewAuthorizer(store, superAdminEmail)

	d, err := a.Authorize(context.Background(), &rbac.Principal{ID: "root", Email: superAdminEmail}, rbac.Roles(rbac.RoleAdmin))
	require.NoError(t, err)
	assert.True(t, d.SuperAdmin)
	assert.Zero(t, store.calls)
}

func TestAuthorizeLookupFailureFailsClosed(t *testing.T) {
	store := &stubStore{err: errors.New("connection refused")}
	obs := &recordingObserver{}
	a := rbac.NewAuthorizer(store, superAdminEmail, rbac.WithObserver(obs))

	d, err := a.Authorize(context.Background(), &rbac.Principal{ID: "u1"}, rbac.Roles(rbac.RoleUser))
	require.Error(t, err)
	assert.False(t, d.Allowed)
	assert.ErrorIs(t, err, rbac.ErrLookupFailure)
	assert.NotErrorIs(t, err, rbac.ErrForbidden)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, []string{"error:lookup_failure"}, obs.outcomes)
}

func TestAuthorizeUnauthenticatedWithoutLookup(t *testing.T) {
	store := &stubStore{}
	a := rbac.NewAuthorizer(store, superAdminEmail)

	_, err := a.Authorize(context.Background(), nil, rbac.RoleSet{})
	assert.ErrorIs(t, err, rbac.ErrUnauthenticated)
	assert.Zero(t, store.calls)
}

func TestAuthorizeReadsFreshRecordEveryCall(t *testing.T) {
	store := &stubStore{}
	store.set(rbac.UserRecord{ID: "u1", Role: rbac.RoleEditor, Active: true})
	a := rbac.NewAuthorizer(store, superAdminEmail)
	p := &rbac.Principal{ID: "u1"}
	required := rbac.Roles(rbac.RoleAdmin, rbac.RoleEditor)

	first, err := a.Authorize(context.Background(), p, required)
	require.NoError(t, err)
	second, err := a.Authorize(context.Background(), p, required)
	require.NoError(t, err)
	assert.Equal(t, first.Allowed, second.Allowed)
	assert.Equal(t, first.Reason, second.Reason)

	store.set(rbac.UserRecord{ID: "u1", Role: rbac.RoleEditor, Active: false})
	_, err = a.Authorize(context.Background(), p, required)
	assert.ErrorIs(t, err, rbac.ErrForbidden)
	assert.Equal(t, 3, store.calls)
}

func TestAuthorizeConcurrentCallers(t *testing.T) {
	store := &stubStore{}
	store.set(rbac.UserRecord{ID: "ed", Role: rbac.RoleEditor, Active: true})
	store.set(rbac.UserRecord{ID: "off", Role: rbac.RoleEditor, Active: false})
	a := rbac.NewAuthorizer(store, superAdminEmail)
	required := rbac.Roles(rbac.RoleAdmin, rbac.RoleEditor)

	const callers = 32
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "ed"
			if i%2 == 1 {
				id = "off"
			}
			_, errs[i] = a.Authorize(context.Background(), &rbac.Principal{ID: id}, required)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if i%2 == 1 {
			assert.ErrorIs(t, err, rbac.ErrForbidden)
			continue
		}
		assert.NoError(t, err)
	}
	assert.Equal(t, callers, store.calls)
}

func TestAuthorizeCancelledDuringLookup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := &stubStore{after: cancel}
	store.set(rbac.UserRecord{ID: "u1", Role: rbac.RoleAdmin, Active: true})
	a := rbac.NewAuthorizer(store, superAdminEmail)

	d, err := a.Authorize(ctx, &rbac.Principal{ID: "u1"}, rbac.Roles(rbac.RoleAdmin))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, d.Allowed)
}

func TestAuthorizeObservesOutcomes(t *testing.T) {
	store := &stubStore{}
	store.set(rbac.UserRecord{ID: "mod", Role: rbac.RoleModerator, Active: true})
	obs := &recordingObserver{}
	a := rbac.NewAuthorizer(store, superAdminEmail, rbac.WithObserver(obs))

	_, _ = a.Authorize(context.Background(), &rbac.Principal{ID: "mod"}, rbac.Roles(rbac.RoleAdmin, rbac.RoleModerator))
	_, _ = a.Authorize(context.Background(), &rbac.Principal{ID: "mod"}, rbac.Roles(rbac.RoleAdmin, rbac.RoleEditor))
	assert.Equal(t, []string{"allow:allowed", "deny:role_not_permitted"}, obs.outcomes)
}

func TestAuthorizerCheckSelfService(t *testing.T) {
	obs := &recordingObserver{}
	a := rbac.NewAuthorizer(&stubStore{}, superAdminEmail, rbac.WithObserver(obs))
	actor := rbac.Actor{ID: "mod", Role: rbac.RoleModerator}

	err := a.CheckSelfService(context.Background(), actor, "u1", rolePtr(rbac.RoleAdmin))
	assert.ErrorIs(t, err, rbac.ErrForbidden)
	require.NoError(t, a.CheckSelfService(context.Background(), actor, "u1", rolePtr(rbac.RoleModerator)))
	assert.Equal(t, []string{"deny:rank_escalation"}, obs.outcomes)
}

func TestGuardRunsOperationOnlyWhenAllowed(t *testing.T) {
	store := &stubStore{}
	store.set(rbac.UserRecord{ID: "ed", Role: rbac.RoleEditor, Active: true})
	a := rbac.NewAuthorizer(store, superAdminEmail)

	calls := 0
	op := rbac.Guard(a, rbac.Roles(rbac.RoleAdmin, rbac.RoleEditor), func(ctx context.Context, d rbac.Decision, in string) (string, error) {
		calls++
		return d.Principal.ID + ":" + in, nil
	})

	out, err := op(context.Background(), &rbac.Principal{ID: "ed"}, "photo.png")
	require.NoError(t, err)
	assert.Equal(t, "ed:photo.png", out)

	_, err = op(context.Background(), &rbac.Principal{ID: "stranger"}, "photo.png")
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	_, err = op(context.Background(), nil, "photo.png")
	assert.ErrorIs(t, err, rbac.ErrUnauthenticated)
	assert.Equal(t, 1, calls)
}
