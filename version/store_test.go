package version

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/ledgerpulse/go-forecaster/forecast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore runs the behaviour every Store implementation shares.
func testStore(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("numbers per organization", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		a1, err := s.Create(ctx, buildVersion(t, "org-a", nil))
		require.NoError(t, err)
		a2, err := s.Create(ctx, buildVersion(t, "org-a", nil))
		require.NoError(t, err)
		b1, err := s.Create(ctx, buildVersion(t, "org-b", nil))
		require.NoError(t, err)

		assert.Equal(t, 1, a1.Number)
		assert.Equal(t, 2, a2.Number)
		assert.Equal(t, 1, b1.Number)
		assert.Equal(t, StatusDraft, a1.Status)
		assert.False(t, a1.IsActive)
	})

	t.Run("concurrent creates are unique and gap free", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		const n = 16
		versions := make([]*Version, n)
		for i := range versions {
			versions[i] = buildVersion(t, "org-c", nil)
		}
		numbers := make([]int, n)
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				created, err := s.Create(ctx, versions[i])
				errs[i] = err
				if err == nil {
					numbers[i] = created.Number
				}
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}
		slices.Sort(numbers)
		for i, num := range numbers {
			assert.Equal(t, i+1, num)
		}
	})

	t.Run("create forces draft", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		v := buildVersion(t, "org-d", nil)
		v.Status = StatusPublished
		v.IsActive = true
		created, err := s.Create(ctx, v)
		require.NoError(t, err)
		assert.Equal(t, StatusDraft, created.Status)
		assert.False(t, created.IsActive)
		assert.Nil(t, created.PublishedAt)

		_, err = s.Active(ctx, "org-d")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("create rejects invalid versions", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		_, err := s.Create(ctx, nil)
		assert.ErrorIs(t, err, ErrNilVersion)

		v := buildVersion(t, "org-e", nil)
		v.OrganizationID = ""
		_, err = s.Create(ctx, v)
		assert.ErrorIs(t, err, ErrNoOrganization)
	})

	t.Run("get round trips content", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		adjs := forecast.Adjustments{
			forecast.CMGROverride{EntityID: "rev", Percent: 10},
			forecast.ManualOverride{EntityID: "rev", Month: aug, Value: 200},
		}
		v := buildVersion(t, "org-f", adjs)
		created, err := s.Create(ctx, v)
		require.NoError(t, err)

		got, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, 1, got.Number)
		assert.Equal(t, "Q3 plan", got.Name)
		assert.Equal(t, "analyst@example.com", got.CreatedBy)
		assert.Equal(t, jul, got.StartMonth)
		assert.Equal(t, 2, got.Horizon)
		assert.Equal(t, adjs, got.Adjustments)
		assert.Equal(t, created.CreatedAt.UnixMilli(), got.CreatedAt.UnixMilli())
		assert.InDelta(t, v.Summary.ForecastedTotal, got.Summary.ForecastedTotal, 1e-9)

		rev, ok := got.Entity("rev")
		require.True(t, ok)
		assert.InDelta(t, 165.0, rev.Forecast[jul], 1e-9)
		assert.InDelta(t, 200.0, rev.Forecast[aug], 1e-9)
		assert.Len(t, rev.Baseline, 6)

		_, err = s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("publish keeps one active version", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		v1, err := s.Create(ctx, buildVersion(t, "org-g", nil))
		require.NoError(t, err)
		v2, err := s.Create(ctx, buildVersion(t, "org-g", nil))
		require.NoError(t, err)
		other, err := s.Create(ctx, buildVersion(t, "org-h", nil))
		require.NoError(t, err)
		_, err = s.Publish(ctx, other.ID)
		require.NoError(t, err)

		first, err := s.Publish(ctx, v1.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPublished, first.Status)
		assert.True(t, first.IsActive)
		require.NotNil(t, first.PublishedAt)

		_, err = s.Publish(ctx, v2.ID)
		require.NoError(t, err)

		active, err := s.Active(ctx, "org-g")
		require.NoError(t, err)
		assert.Equal(t, v2.ID, active.ID)

		demoted, err := s.Get(ctx, v1.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPublished, demoted.Status)
		assert.False(t, demoted.IsActive)

		republished, err := s.Publish(ctx, v1.ID)
		require.NoError(t, err)
		assert.True(t, republished.IsActive)
		require.NotNil(t, republished.PublishedAt)
		assert.Equal(t, first.PublishedAt.UnixMilli(), republished.PublishedAt.UnixMilli())

		all, err := s.List(ctx, "org-g", "")
		require.NoError(t, err)
		var activeCount int
		for _, v := range all {
			if v.IsActive {
				activeCount++
			}
		}
		assert.Equal(t, 1, activeCount)

		// publishing in org-g leaves org-h untouched
		otherActive, err := s.Active(ctx, "org-h")
		require.NoError(t, err)
		assert.Equal(t, other.ID, otherActive.ID)
	})

	t.Run("archived is terminal", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		v, err := s.Create(ctx, buildVersion(t, "org-i", nil))
		require.NoError(t, err)
		_, err = s.Publish(ctx, v.ID)
		require.NoError(t, err)

		archived, err := s.Archive(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusArchived, archived.Status)
		assert.False(t, archived.IsActive)
		assert.NotNil(t, archived.ArchivedAt)

		_, err = s.Publish(ctx, v.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		_, err = s.Archive(ctx, v.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		_, err = s.Active(ctx, "org-i")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.Publish(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.Archive(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list filters and orders newest first", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		var ids []string
		for i := 0; i < 3; i++ {
			v, err := s.Create(ctx, buildVersion(t, "org-j", nil))
			require.NoError(t, err)
			ids = append(ids, v.ID)
		}
		_, err := s.Publish(ctx, ids[0])
		require.NoError(t, err)
		_, err = s.Archive(ctx, ids[1])
		require.NoError(t, err)

		all, err := s.List(ctx, "org-j", "")
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []int{3, 2, 1}, []int{all[0].Number, all[1].Number, all[2].Number})

		testData := map[string]struct {
			status   Status
			expected []string
		}{
			"draft":     {StatusDraft, []string{ids[2]}},
			"published": {StatusPublished, []string{ids[0]}},
			"archived":  {StatusArchived, []string{ids[1]}},
		}
		for name, td := range testData {
			t.Run(name, func(t *testing.T) {
				res, err := s.List(ctx, "org-j", td.status)
				require.NoError(t, err)
				got := make([]string, len(res))
				for i, v := range res {
					got[i] = v.ID
				}
				assert.Equal(t, td.expected, got)
			})
		}

		none, err := s.List(ctx, "org-unknown", "")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
