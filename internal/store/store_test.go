package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	config "example.com/chirp/internal/init"
	"example.com/chirp/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends runs fn against every local store, plus Cassandra when
// CHIRP_TEST_CASSANDRA_HOST points at a reachable node.
func backends(t *testing.T, fn func(t *testing.T, s StoreInterface)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "chirp.db"))
		require.NoError(t, err)
		t.Cleanup(s.Close)
		fn(t, s)
	})
	t.Run("cassandra", func(t *testing.T) {
		host := os.Getenv("CHIRP_TEST_CASSANDRA_HOST")
		if host == "" {
			t.Skip("CHIRP_TEST_CASSANDRA_HOST not set")
		}
		// a keyspace per run keeps tests independent
		keyspace := fmt.Sprintf("chirp_test_%d", time.Now().UnixNano())
		s, err := NewCassandra(&config.Config{
			CassandraHost:     host,
			CassandraKeyspace: keyspace,
			CassandraTimeout:  10 * time.Second,
		})
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = s.Session.Query("DROP KEYSPACE IF EXISTS " + keyspace).Exec()
			s.Close()
		})
		fn(t, s)
	})
}

var base = time.Date(2023, 8, 1, 12, 0, 0, 0, time.UTC)

func author(name string) models.Author {
	return models.Author{
		UserName:    name,
		DisplayName: name,
		Email:       name + "@itu.dk",
		CreatedAt:   base,
	}
}

func mustAuthors(t *testing.T, s StoreInterface, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, s.CreateAuthor(context.Background(), author(n)))
	}
}

func cheep(id, user string, minutes int) models.Cheep {
	return models.Cheep{ID: id, UserName: user, Text: "cheep " + id, TimeStamp: base.Add(time.Duration(minutes) * time.Minute)}
}

func ids(cs []models.Cheep) []string {
	res := make([]string, 0, len(cs))
	for _, c := range cs {
		res = append(res, c.ID)
	}
	return res
}

func TestStore_AuthorUniqueness(t *testing.T) {
	backends(t, func(t *testing.T, s StoreInterface) {
		ctx := context.Background()
		mustAuthors(t, s, "Helge")

		dupName := author("Helge")
		dupName.Email = "other@itu.dk"
		assert.ErrorIs(t, s.CreateAuthor(ctx, dupName), ErrDuplicateUserName)

		dupEmail := author("Rasmus")
		dupEmail.Email = "Helge@itu.dk"
		assert.ErrorIs(t, s.CreateAuthor(ctx, dupEmail), ErrDuplicateEmail)

		got, err := s.GetAuthorByEmail(ctx, "Helge@itu.dk")
		require.NoError(t, err)
		assert.Equal(t, "Helge", got.UserName)
		assert.True(t, got.CreatedAt.Equal(base))

		_, err = s.GetAuthor(ctx, "nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_SearchAuthors(t *testing.T) {
	backends(t, func(t *testing.T, s StoreInterface) {
		ctx := context.Background()
		mustAuthors(t, s, "Helge", "helgeson", "Adrian", "100%_real")

		got, err := s.SearchAuthors(ctx, "HELG", 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Helge", got[0].UserName)
		assert.Equal(t, "helgeson", got[1].UserName)

		got, err = s.SearchAuthors(ctx, "%_", 10)
		require.NoError(t, err)
		require.Len(t, got, 1, "like wildcards match literally")
		assert.Equal(t, "100%_real", got[0].UserName)

		got, err = s.SearchAuthors(ctx, "e", 1)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestStore_TimelineOrderAndPaging(t *testing.T) {
	backends(t, func(t *testing.T, s StoreInterface) {
		ctx := context.Background()
		mustAuthors(t, s, "amy", "bob")

		// same timestamp for 2, 3 and 4 exercises the username/id tie-break
		for _, c := range []models.Cheep{
			cheep("1", "amy", 0),
			cheep("2", "bob", 5),
			cheep("3", "amy", 5),
			cheep("4", "amy", 5),
			cheep("5", "bob", 10),
		} {
			require.NoError(t, s.AddCheep(ctx, c))
		}

		all, err := s.Cheeps(ctx, models.TimelineQuery{Scope: models.ScopePublic, Limit: 100})
		require.NoError(t, err)
		if diff := cmp.Diff([]string{"5", "3", "4", "2", "1"}, ids(all)); diff != "" {
			t.Fatalf("public order mismatch (-want +got):\n%s", diff)
		}

		var paged []string
		for off := 0; off < 10; off += 2 {
			page, err := s.Cheeps(ctx, models.TimelineQuery{Scope: models.ScopePublic, Offset: off, Limit: 2})
			require.NoError(t, err)
			paged = append(paged, ids(page)...)
		}
		assert.Equal(t, ids(all), paged)

		amy, err := s.Cheeps(ctx, models.TimelineQuery{Scope: models.ScopeAuthor, UserName: "amy", Limit: 100})
		require.NoError(t, err)
		assert.Equal(t, []string{"3", "4", "1"}, ids(amy))

		n, err := s.CountCheeps(ctx, models.TimelineQuery{Scope: models.ScopeAuthor, UserName: "amy"})
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		n, err = s.CountCheeps(ctx, models.TimelineQuery{Scope: models.ScopePublic})
		require.NoError(t, err)
		assert.Equal(t, 5, n)

		none, err := s.Cheeps(ctx, models.TimelineQuery{Scope: models.ScopeAuthor, UserName: "ghost", Limit: 100})
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestStore_FollowedTimeline(t *testing.T) {
	backends(t, func(t *testing.T, s StoreInterface) {
		ctx := context.Background()
		mustAuthors(t, s, "amy", "bob", "cat")
		for i, u := range []string{"amy", "bob", "cat", "amy", "bob", "cat"} {
			require.NoError(t, s.AddCheep(ctx, cheep(fmt.Sprint(i), u, i)))
		}
		require.NoError(t, s.AddFollow(ctx, "amy", "amy"))
		require.NoError(t, s.AddFollow(ctx, "amy", "cat"))

		q := models.TimelineQuery{Scope: models.ScopeFollowed, UserName: "amy", Limit: 100}
		got, err := s.Cheeps(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"5", "3", "2", "0"}, ids(got))

		n, err := s.CountCheeps(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		q.Offset, q.Limit = 1, 2
		got, err = s.Cheeps(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []string{"3", "2"}, ids(got))
	})
}

func TestStore_FollowIdempotentAndUnknownIgnored(t *testing.T) {
	backends(t, func(t *testing.T, s StoreInterface) {
		ctx := context.Background()
		mustAuthors(t, s, "amy", "bob")

		require.NoError(t, s.AddFollow(ctx, "amy", "bob"))
		require.NoError(t, s.AddFollow(ctx, "amy", "bob"))
		require.NoError(t, s.AddFollow(ctx, "amy", "ghost"))

		following, err := s.Following(ctx, "amy")
		require.NoError(t, err)
		require.Len(t, following, 1)
		assert.Equal(t, "bob", following[0].UserName)

		followers, err := s.Followers(ctx, "bob")
		require.NoError(t, err)
		require.Len(t, followers, 1)
		assert.Equal(t, "amy", followers[0].UserName)

		require.NoError(t, s.RemoveFollow(ctx, "amy", "bob"))
		following, err = s.Following(ctx, "amy")
		require.NoError(t, err)
		assert.Empty(t, following)
	})
}

func TestStore_DeleteAuthorCascades(t *testing.T) {
	backends(t, func(t *testing.T, s StoreInterface) {
		ctx := context.Background()
		mustAuthors(t, s, "amy", "bob")
		require.NoError(t, s.AddCheep(ctx, cheep("1", "amy", 0)))
		require.NoError(t, s.AddCheep(ctx, cheep("2", "bob", 1)))
		require.NoError(t, s.AddFollow(ctx, "amy", "bob"))
		require.NoError(t, s.AddFollow(ctx, "bob", "amy"))

		require.NoError(t, s.DeleteAuthor(ctx, "amy"))
		assert.ErrorIs(t, s.DeleteAuthor(ctx, "amy"), ErrNotFound)

		all, err := s.Cheeps(ctx, models.TimelineQuery{Scope: models.ScopePublic, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"2"}, ids(all))

		followers, err := s.Followers(ctx, "bob")
		require.NoError(t, err)
		assert.Empty(t, followers)
		following, err := s.Following(ctx, "bob")
		require.NoError(t, err)
		assert.Empty(t, following)

		// email is free again
		require.NoError(t, s.CreateAuthor(ctx, author("amy")))
	})
}

func TestStore_FindAndDeleteCheep(t *testing.T) {
	backends(t, func(t *testing.T, s StoreInterface) {
		ctx := context.Background()
		mustAuthors(t, s, "amy")
		c := cheep("1", "amy", 0)
		require.NoError(t, s.AddCheep(ctx, c))

		found, err := s.FindCheeps(ctx, "amy", c.Text)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.True(t, found[0].TimeStamp.Equal(c.TimeStamp))

		require.NoError(t, s.DeleteCheep(ctx, found[0]))
		found, err = s.FindCheeps(ctx, "amy", c.Text)
		require.NoError(t, err)
		assert.Empty(t, found)
	})
}

func TestStore_AddCheepUnknownAuthor(t *testing.T) {
	backends(t, func(t *testing.T, s StoreInterface) {
		err := s.AddCheep(context.Background(), cheep("1", "ghost", 0))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSQLite_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chirp.db")

	s, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	mustAuthors(t, s, "amy")
	s.Close()

	s, err = NewSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.GetAuthor(ctx, "amy")
	assert.NoError(t, err)
}

func TestMockStoreFail(t *testing.T) {
	s := &MockStoreFail{}
	_, err := s.Cheeps(context.Background(), models.TimelineQuery{})
	assert.Error(t, err)
	assert.Error(t, s.CreateAuthor(context.Background(), author("amy")))
}
