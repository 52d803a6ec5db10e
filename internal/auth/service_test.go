package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/procura-hq/procura/internal/shared"
)

type fakeUserRepo struct {
	byEmail map[string]*User
	byID    map[int64]*User
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id int64) (*User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func newAuthFixture(t *testing.T) (*Service, *fakeUserRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &User{ID: 7, Email: "buyer@example.com", FullName: "Buyer", PasswordHash: string(hash), IsActive: true}
	inactive := &User{ID: 8, Email: "gone@example.com", PasswordHash: string(hash), IsActive: false}
	repo := &fakeUserRepo{
		byEmail: map[string]*User{user.Email: user, inactive.Email: inactive},
		byID:    map[int64]*User{user.ID: user, inactive.ID: inactive},
	}
	return NewService(repo, NewTokenStore(client, time.Hour)), repo
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	user, token, err := svc.Authenticate(ctx, "buyer@example.com", "hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.EqualValues(t, 7, user.ID)

	actor, err := svc.ResolveActor(ctx, token)
	require.NoError(t, err)
	require.EqualValues(t, 7, actor.ID)
	require.Equal(t, "buyer@example.com", actor.Email)
}

func TestAuthenticateRejections(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	_, _, err := svc.Authenticate(ctx, "buyer@example.com", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, _, err = svc.Authenticate(ctx, "nobody@example.com", "hunter2")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, _, err = svc.Authenticate(ctx, "gone@example.com", "hunter2")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	_, token, err := svc.Authenticate(ctx, "buyer@example.com", "hunter2")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token))
	_, err = svc.ResolveActor(ctx, token)
	require.ErrorIs(t, err, shared.ErrTokenInvalid)
}

func TestResolveActorInvalidToken(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.ResolveActor(ctx, "")
	require.ErrorIs(t, err, shared.ErrTokenMissing)

	_, err = svc.ResolveActor(ctx, "deadbeef")
	require.ErrorIs(t, err, shared.ErrTokenInvalid)
}

func TestMiddleware(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	_, token, err := svc.Authenticate(ctx, "buyer@example.com", "hunter2")
	require.NoError(t, err)

	var seen *shared.Actor
	handler := Middleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, seen)
	require.EqualValues(t, 7, seen.ID)

	seen = nil
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.Nil(t, seen)

	seen = nil
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.Nil(t, seen)
}
