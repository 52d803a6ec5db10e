package vendors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/procura-hq/procura/internal/catalog/shared"
)

type fakeRepo struct {
	byID   map[int64]Vendor
	nextID int64
	links  []CategoryLink
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[int64]Vendor), nextID: 1}
}

func (f *fakeRepo) List(ctx context.Context, filters shared.ListFilters) ([]Vendor, int, error) {
	var out []Vendor
	for _, v := range f.byID {
		if filters.IsActive != nil && v.IsActive != *filters.IsActive {
			continue
		}
		out = append(out, v)
	}
	return out, len(out), nil
}

func (f *fakeRepo) ListActive(ctx context.Context) ([]Vendor, error) {
	var out []Vendor
	for _, v := range f.byID {
		if v.IsActive {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeRepo) Get(ctx context.Context, id int64) (Vendor, error) {
	v, ok := f.byID[id]
	if !ok {
		return Vendor{}, shared.ErrNotFound
	}
	return v, nil
}

func (f *fakeRepo) Create(ctx context.Context, vendor Vendor) (Vendor, error) {
	vendor.ID = f.nextID
	f.nextID++
	now := time.Now()
	vendor.CreatedAt = now
	vendor.UpdatedAt = now
	f.byID[vendor.ID] = vendor
	return vendor, nil
}

func (f *fakeRepo) Update(ctx context.Context, id int64, vendor Vendor) error {
	existing, ok := f.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	vendor.ID = id
	vendor.IsActive = existing.IsActive
	f.byID[id] = vendor
	return nil
}

func (f *fakeRepo) SetActive(ctx context.Context, id int64, active bool) error {
	v, ok := f.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	v.IsActive = active
	f.byID[id] = v
	return nil
}

func (f *fakeRepo) ListLinks(ctx context.Context) ([]CategoryLink, error) {
	return f.links, nil
}

func TestCreateVendor(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, Vendor{
		Name:        "Acme Supply",
		Email:       "sales@acme.test",
		AllowsCash:  true,
		CategoryIDs: []int64{3},
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.True(t, created.IsActive)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Acme Supply", got.Name)
}

func TestCreateVendorValidation(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	cases := []struct {
		name   string
		vendor Vendor
	}{
		{"blank name", Vendor{Email: "v@x.test", AllowsCash: true}},
		{"blank email", Vendor{Name: "V", AllowsCash: true}},
		{"malformed email", Vendor{Name: "V", Email: "not-an-email", AllowsCash: true}},
		{"no payment method", Vendor{Name: "V", Email: "v@x.test"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.vendor)
			require.Error(t, err)
		})
	}
}

func TestGetVendorRejectsBadID(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Get(context.Background(), 0)
	require.ErrorIs(t, err, shared.ErrInvalidID)
	_, err = svc.Get(context.Background(), 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSetActiveExcludesFromActiveList(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, Vendor{Name: "Acme", Email: "a@x.test", AllowsCash: true})
	require.NoError(t, err)

	require.NoError(t, svc.SetActive(ctx, created.ID, false))
	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestWritesFireChangeListener(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	var fired int
	svc.SetChangeListener(func(context.Context) { fired++ })

	created, err := svc.Create(ctx, Vendor{Name: "Acme", Email: "a@x.test", AllowsCash: true})
	require.NoError(t, err)
	require.Equal(t, 1, fired)

	created.Phone = "555-0100"
	require.NoError(t, svc.Update(ctx, created.ID, created))
	require.Equal(t, 2, fired)

	require.NoError(t, svc.SetActive(ctx, created.ID, false))
	require.Equal(t, 3, fired)

	// Failed writes must not invalidate caches.
	_, err = svc.Create(ctx, Vendor{Name: "", Email: "a@x.test", AllowsCash: true})
	require.Error(t, err)
	require.Equal(t, 3, fired)
}
