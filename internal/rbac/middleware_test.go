package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/procura-hq/procura/internal/shared"
)

type fakePermissionSource struct {
	perms map[int64][]string
	err   error
}

func (f *fakePermissionSource) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.perms[userID], nil
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(t *testing.T, handler http.Handler, actor *shared.Actor) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if actor != nil {
		req = req.WithContext(shared.ContextWithActor(req.Context(), actor))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRequireAny(t *testing.T) {
	source := &fakePermissionSource{perms: map[int64][]string{
		7: {PermPurchasingView, PermPurchasingEdit},
	}}
	mw := Middleware{Service: source}

	var called bool
	handler := mw.RequireAny(PermPurchasingEdit, PermPurchasingApprove)(okHandler(&called))

	rec := doRequest(t, handler, &shared.Actor{ID: 7})
	require.True(t, called)
	require.Equal(t, http.StatusOK, rec.Code)

	called = false
	rec = doRequest(t, handler, &shared.Actor{ID: 99})
	require.False(t, called)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, handler, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAll(t *testing.T) {
	source := &fakePermissionSource{perms: map[int64][]string{
		7: {PermPurchasingView, PermPurchasingEdit},
	}}
	mw := Middleware{Service: source}

	var called bool
	rec := doRequest(t, mw.RequireAll(PermPurchasingView, PermPurchasingEdit)(okHandler(&called)), &shared.Actor{ID: 7})
	require.True(t, called)
	require.Equal(t, http.StatusOK, rec.Code)

	called = false
	rec = doRequest(t, mw.RequireAll(PermPurchasingView, PermPurchasingApprove)(okHandler(&called)), &shared.Actor{ID: 7})
	require.False(t, called)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPermissionMatchingIsCaseInsensitive(t *testing.T) {
	source := &fakePermissionSource{perms: map[int64][]string{
		7: {"Purchasing.View"},
	}}
	mw := Middleware{Service: source}

	var called bool
	rec := doRequest(t, mw.RequireAny("PURCHASING.VIEW")(okHandler(&called)), &shared.Actor{ID: 7})
	require.True(t, called)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestEmptyRequirementPassesThrough(t *testing.T) {
	mw := Middleware{Service: &fakePermissionSource{}}

	var called bool
	rec := doRequest(t, mw.RequireAny()(okHandler(&called)), nil)
	require.True(t, called)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPermissionLookupFailure(t *testing.T) {
	mw := Middleware{Service: &fakePermissionSource{err: errors.New("boom")}}

	var called bool
	rec := doRequest(t, mw.RequireAny(PermAuditView)(okHandler(&called)), &shared.Actor{ID: 7})
	require.False(t, called)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
