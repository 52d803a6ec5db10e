package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeTimelineRepo struct {
	rows       []TimelineRow
	gotLimit   int
	gotOffset  int
	gotFilters TimelineFilters
}

func (f *fakeTimelineRepo) TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	f.gotFilters = filters
	f.gotLimit = limit
	f.gotOffset = offset
	if limit > len(f.rows) {
		limit = len(f.rows)
	}
	if offset > len(f.rows) {
		offset = len(f.rows)
	}
	end := offset + limit
	if end > len(f.rows) {
		end = len(f.rows)
	}
	return f.rows[offset:end], nil
}

func manyRows(n int) []TimelineRow {
	rows := make([]TimelineRow, n)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = TimelineRow{At: base.Add(-time.Duration(i) * time.Minute), Action: "PO_SUBMIT", Entity: "purchase_orders"}
	}
	return rows
}

func TestTimelinePaging(t *testing.T) {
	repo := &fakeTimelineRepo{rows: manyRows(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 20)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Zero(t, result.Paging.PrevPage)
	// One extra row is requested to probe for a next page.
	require.Equal(t, 21, repo.gotLimit)

	result, err = svc.Timeline(context.Background(), TimelineFilters{Page: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 5)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.PrevPage)
	require.Equal(t, 20, repo.gotOffset)
}

func TestTimelinePageSizeCap(t *testing.T) {
	repo := &fakeTimelineRepo{rows: manyRows(120)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Len(t, result.Rows, 50)
	require.Equal(t, 50, result.Paging.PageSize)
}

func TestTimelinePassesFilters(t *testing.T) {
	repo := &fakeTimelineRepo{}
	svc := NewService(repo)

	from := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Timeline(context.Background(), TimelineFilters{Entity: "requisitions", Action: "REQ_APPROVE", ActorID: 7, From: from})
	require.NoError(t, err)
	require.Equal(t, "requisitions", repo.gotFilters.Entity)
	require.Equal(t, "REQ_APPROVE", repo.gotFilters.Action)
	require.Equal(t, int64(7), repo.gotFilters.ActorID)
	require.Equal(t, from, repo.gotFilters.From)
}
