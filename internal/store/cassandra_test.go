package store

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"example.com/chirp/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeFollowed_TimelineOrder(t *testing.T) {
	byAuthor := map[string][]models.Cheep{
		"Helge":  {cheep("h2", "Helge", 3), cheep("h1", "Helge", 1)},
		"Adrian": {cheep("a2", "Adrian", 3), cheep("a1", "Adrian", 2)},
		"quiet":  nil,
	}
	got, err := mergeFollowed([]string{"Helge", "quiet", "Adrian"}, func(userName string) ([]models.Cheep, error) {
		return byAuthor[userName], nil
	})
	require.NoError(t, err)
	// equal timestamps break on username
	assert.Equal(t, []string{"a2", "h2", "a1", "h1"}, ids(got))
}

func TestMergeFollowed_NoAuthors(t *testing.T) {
	got, err := mergeFollowed(nil, func(string) ([]models.Cheep, error) {
		t.Fatal("nothing to fetch")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMergeFollowed_FetchErrorFailsTimeline(t *testing.T) {
	errPartition := errors.New("partition unavailable")
	got, err := mergeFollowed([]string{"Helge", "Adrian"}, func(userName string) ([]models.Cheep, error) {
		if userName == "Adrian" {
			return nil, errPartition
		}
		return []models.Cheep{cheep("h1", "Helge", 1)}, nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), errPartition.Error())
	assert.Nil(t, got, "no partial timeline")
}

func TestMergeFollowed_BoundedFanout(t *testing.T) {
	var inFlight, peak int32
	authors := make([]string, 3*fanoutLimit)
	for i := range authors {
		authors[i] = fmt.Sprintf("author%02d", i)
	}

	got, err := mergeFollowed(authors, func(userName string) ([]models.Cheep, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return []models.Cheep{cheep(userName, userName, 0)}, nil
	})
	require.NoError(t, err)
	assert.Len(t, got, len(authors))
	assert.LessOrEqual(t, int(atomic.LoadInt32(&peak)), fanoutLimit)
	assert.Equal(t, authors, ids(got), "same timestamp, ordered by username")
}

func TestSlicePage_Window(t *testing.T) {
	cs := []models.Cheep{cheep("c1", "a", 3), cheep("c2", "a", 2), cheep("c3", "a", 1)}

	tbl := []struct {
		name          string
		offset, limit int
		want          []string
	}{
		{name: "first page", offset: 0, limit: 2, want: []string{"c1", "c2"}},
		{name: "short last page", offset: 2, limit: 2, want: []string{"c3"}},
		{name: "past the end", offset: 3, limit: 2, want: []string{}},
		{name: "no limit", offset: 0, limit: 0, want: []string{}},
	}
	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(slicePage(cs, tt.offset, tt.limit)))
		})
	}
}
