package entity

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-dash/veridian/lib/lockmgr"
	"github.com/veridian-dash/veridian/lib/store"
)

func newLocks(s store.IStore) lockmgr.ILockManager {
	return lockmgr.NewLockManager(s)
}

func newNotes(t *testing.T, seed ...note) (*Collection[note], store.IStore) {
	t.Helper()
	s := newStore(t)
	return NewCollection(s, noteSchema, seed), s
}

func ids(items []note) []string {
	out := make([]string, len(items))
	for i, n := range items {
		out[i] = n.ID
	}
	return out
}

func mustCreate(t *testing.T, c *Collection[note], noteIDs ...string) {
	t.Helper()
	for _, id := range noteIDs {
		_, err := c.Create(note{ID: id, Tags: []string{}})
		require.NoError(t, err)
	}
}

func TestListPages(t *testing.T) {
	notes, _ := newNotes(t)
	mustCreate(t, notes, "a", "b", "c")

	page, err := notes.List("", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(page.Items))
	require.NotNil(t, page.Next)

	page, err = notes.List(*page.Next, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(page.Items))
	assert.Nil(t, page.Next, "the listing is exhausted")
}

func TestListEmpty(t *testing.T) {
	notes, _ := newNotes(t)

	page, err := notes.List("", 0)
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Nil(t, page.Next)
}

func TestListDefaultPageSize(t *testing.T) {
	notes, _ := newNotes(t)
	for i := 0; i < DefaultPageSize+5; i++ {
		mustCreate(t, notes, fmt.Sprintf("n%02d", i))
	}

	page, err := notes.List("", 0)
	require.NoError(t, err)
	assert.Len(t, page.Items, DefaultPageSize)
	require.NotNil(t, page.Next)

	page, err = notes.List(*page.Next, -1)
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)
	assert.Nil(t, page.Next)
}

func TestListResumesAfterDeletedCursor(t *testing.T) {
	notes, _ := newNotes(t)
	mustCreate(t, notes, "a", "b", "c", "d")

	page, err := notes.List("", 2)
	require.NoError(t, err)
	require.NotNil(t, page.Next)

	// the last item of the page disappears before the next page is requested
	removed, err := notes.Delete("b")
	require.NoError(t, err)
	require.True(t, removed)

	page, err = notes.List(*page.Next, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, ids(page.Items))
	assert.Nil(t, page.Next)
}

func TestListCursorFollowsMovedID(t *testing.T) {
	notes, _ := newNotes(t)
	mustCreate(t, notes, "a", "b", "c", "d")

	page, err := notes.List("", 2)
	require.NoError(t, err)
	require.NotNil(t, page.Next)

	// an earlier item disappears, the cursor id moves one slot to the front
	_, err = notes.Delete("a")
	require.NoError(t, err)

	page, err = notes.List(*page.Next, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, ids(page.Items))
}

func TestListInvalidCursor(t *testing.T) {
	notes, _ := newNotes(t)
	mustCreate(t, notes, "a")

	for _, token := range []string{"%%%", "bm90IGpzb24", cursor{ID: "", Pos: 1}.encode(), cursor{ID: "a", Pos: -1}.encode()} {
		_, err := notes.List(token, 1)
		assert.ErrorIs(t, err, ErrValidation, token)
	}
}

func TestListSkipsOrphans(t *testing.T) {
	notes, s := newNotes(t)
	mustCreate(t, notes, "a", "b", "c")

	// remove a record behind the collection's back
	require.NoError(t, s.Delete("note:b"))

	page, err := notes.List("", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(page.Items))
}

func TestCreateAppendsToIndex(t *testing.T) {
	notes, _ := newNotes(t)
	mustCreate(t, notes, "b", "a")

	created, err := notes.Create(note{Text: "generated"})
	require.NoError(t, err)

	_, err = notes.Create(note{ID: "a"})
	require.ErrorIs(t, err, ErrDuplicateID)

	page, err := notes.List("", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", created.ID}, ids(page.Items), "insertion order, no duplicates")
}

func TestDeleteCompactsIndex(t *testing.T) {
	notes, _ := newNotes(t)
	mustCreate(t, notes, "a", "b", "c")

	removed, err := notes.Delete("b")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = notes.Delete("b")
	require.NoError(t, err)
	assert.False(t, removed)

	page, err := notes.List("", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(page.Items))

	ok, err := notes.Exists("b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteMany(t *testing.T) {
	notes, _ := newNotes(t)
	mustCreate(t, notes, "x")

	count, err := notes.DeleteMany([]string{"x", "y", "z"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	ok, err := notes.Exists("x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteManyCountsDistinctIDs(t *testing.T) {
	notes, _ := newNotes(t)
	mustCreate(t, notes, "a", "b", "c")

	count, err := notes.DeleteMany([]string{"a", "a", "c", "__index__", ""})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	page, err := notes.List("", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(page.Items))

	count, err = notes.DeleteMany(nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestEnsureSeedRunsOnce(t *testing.T) {
	notes, _ := newNotes(t, note{ID: "s1", Text: "seed one"}, note{ID: "s2", Text: "seed two"})

	require.NoError(t, notes.EnsureSeed())
	require.NoError(t, notes.EnsureSeed())

	page, err := notes.List("", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, ids(page.Items), "no duplicates after the second call")

	// a deleted seed stays deleted
	_, err = notes.Delete("s1")
	require.NoError(t, err)
	require.NoError(t, notes.EnsureSeed())

	page, err = notes.List("", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, ids(page.Items))
}

func TestEnsureSeedSkipsExistingIDs(t *testing.T) {
	notes, _ := newNotes(t, note{ID: "s1", Text: "seed"})
	_, err := notes.Create(note{ID: "s1", Text: "user data"})
	require.NoError(t, err)

	require.NoError(t, notes.EnsureSeed())

	got, err := notes.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "user data", got.Text, "seeding must not overwrite")

	page, err := notes.List("", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids(page.Items))
}

func TestEnsureSeedConcurrent(t *testing.T) {
	notes, _ := newNotes(t, note{ID: "s1"}, note{ID: "s2"}, note{ID: "s3"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, notes.EnsureSeed())
		}()
	}
	wg.Wait()

	page, err := notes.List("", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2", "s3"}, ids(page.Items))
}

func TestConcurrentCreateSameID(t *testing.T) {
	notes, _ := newNotes(t)

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := notes.Kind().Create(note{ID: "contended", Text: fmt.Sprint(i)})
			if err == nil {
				winners.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrDuplicateID)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestCollectionPassThrough(t *testing.T) {
	notes, s := newNotes(t)
	mustCreate(t, notes, "a")

	_, err := notes.Mutate("a", func(n note) (note, error) {
		n.Text = "changed"
		return n, nil
	})
	require.NoError(t, err)

	_, err = notes.MutateExclusive("a", newLocks(s), func(n note) (note, error) {
		n.Tags = append(n.Tags, "locked")
		return n, nil
	})
	require.NoError(t, err)

	got, err := notes.Ref("a").State()
	require.NoError(t, err)
	assert.Equal(t, note{ID: "a", Text: "changed", Tags: []string{"locked"}}, got)
	assert.Equal(t, "note", notes.Name())
}
