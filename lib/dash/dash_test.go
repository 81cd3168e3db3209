package dash

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-dash/veridian/lib/db"
	"github.com/veridian-dash/veridian/lib/db/engines/maple"
	"github.com/veridian-dash/veridian/lib/entity"
	"github.com/veridian-dash/veridian/lib/lockmgr"
	"github.com/veridian-dash/veridian/lib/store"
	"github.com/veridian-dash/veridian/lib/store/lstore"
)

var fixedNow = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)

func newStore(t *testing.T) store.IStore {
	t.Helper()
	s := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) })
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUsersSeed(t *testing.T) {
	users := NewUsers(newStore(t), DefaultSeed(fixedNow).Users)

	require.NoError(t, users.EnsureSeed())
	require.NoError(t, users.EnsureSeed())

	page, err := users.List("", 10)
	require.NoError(t, err)
	assert.Equal(t, []User{{ID: "u1", Name: "User A"}, {ID: "u2", Name: "User B"}}, page.Items)
	assert.Nil(t, page.Next)
}

func TestChatsSeedAndList(t *testing.T) {
	chats := NewChats(newStore(t), DefaultSeed(fixedNow).Chats, nil)
	require.NoError(t, chats.EnsureSeed())

	page, err := chats.ListChats("", 0)
	require.NoError(t, err)
	assert.Equal(t, []Chat{{ID: "c1", Title: "General"}}, page.Items)

	msgs, err := chats.Board("c1").ListMessages()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, ChatMessage{ID: "m1", ChatID: "c1", UserID: "u1", Text: "Hello", TS: fixedNow.UnixMilli()}, msgs[0])
}

func TestCreateChat(t *testing.T) {
	chats := NewChats(newStore(t), nil, nil)

	chat, err := chats.CreateChat("Random")
	require.NoError(t, err)
	assert.NotEmpty(t, chat.ID)
	assert.Equal(t, "Random", chat.Title)

	msgs, err := chats.Board(chat.ID).ListMessages()
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestSendMessage(t *testing.T) {
	chats := NewChats(newStore(t), nil, nil)
	chat, err := chats.CreateChat("General")
	require.NoError(t, err)

	clock := fixedNow
	chats.now = func() time.Time { return clock }

	board := chats.Board(chat.ID)
	first, err := board.SendMessage("u1", "hi")
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, chat.ID, first.ChatID)
	assert.Equal(t, fixedNow.UnixMilli(), first.TS)

	// the clock steps back, timestamps must not
	clock = fixedNow.Add(-time.Minute)
	second, err := board.SendMessage("u2", "hello")
	require.NoError(t, err)
	assert.Equal(t, first.TS, second.TS)

	msgs, err := board.ListMessages()
	require.NoError(t, err)
	assert.Equal(t, []ChatMessage{first, second}, msgs)
}

func TestSendMessageMissingBoard(t *testing.T) {
	chats := NewChats(newStore(t), nil, nil)

	_, err := chats.Board("nope").SendMessage("u1", "hi")
	require.ErrorIs(t, err, entity.ErrNotFound)

	_, err = chats.Board("nope").ListMessages()
	require.ErrorIs(t, err, entity.ErrNotFound)

	ok, err := chats.Board("nope").Exists()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSendMessageExclusive(t *testing.T) {
	s := newStore(t)
	chats := NewChats(s, DefaultSeed(fixedNow).Chats, lockmgr.NewLockManager(s))
	require.NoError(t, chats.EnsureSeed())

	msg, err := chats.Board("c1").SendMessage("u2", "locked")
	require.NoError(t, err)

	msgs, err := chats.Board("c1").ListMessages()
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, msg, msgs[1])
}

func TestAlerts(t *testing.T) {
	alerts := NewAlerts(newStore(t))

	configs, err := alerts.Configurations()
	require.NoError(t, err)
	assert.NotNil(t, configs)
	assert.Empty(t, configs)

	want := []AlertConfiguration{{
		ID: "a1", Platform: Solana, Metric: MetricGasFees, Condition: Above,
		Threshold: 0.0005, Channels: []AlertChannel{ChannelEmail, ChannelInApp}, IsEnabled: true,
	}}
	require.NoError(t, alerts.SaveConfigurations(want))

	configs, err = alerts.Configurations()
	require.NoError(t, err)
	assert.Equal(t, want, configs)

	// whole collection replace
	require.NoError(t, alerts.SaveConfigurations(nil))
	configs, err = alerts.Configurations()
	require.NoError(t, err)
	assert.Empty(t, configs)
}

func TestParsePlatform(t *testing.T) {
	for in, want := range map[string]Platform{"solana": Solana, "ETHEREUM": Ethereum, "Bsc": BSC} {
		got, ok := ParsePlatform(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := ParsePlatform("dogecoin")
	assert.False(t, ok)
}

func TestParseSeed(t *testing.T) {
	seed, err := ParseSeed([]byte(`
users:
  - id: x1
    name: X
chats:
  - id: c9
    title: Nine
`), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, []User{{ID: "x1", Name: "X"}}, seed.Users)
	assert.Equal(t, []ChatBoard{{ID: "c9", Title: "Nine", Messages: []ChatMessage{}}}, seed.Chats)

	empty, err := ParseSeed(nil, fixedNow)
	require.NoError(t, err)
	assert.Empty(t, empty.Users)

	for name, doc := range map[string]string{
		"unknown field":   "users:\n  - id: x\n    email: x@example.com\n",
		"missing user id": "users:\n  - name: X\n",
		"foreign message": "chats:\n  - id: c1\n    messages:\n      - id: m1\n        chatId: c2\n",
		"missing msg id":  "chats:\n  - id: c1\n    messages:\n      - text: hi\n",
	} {
		_, err := ParseSeed([]byte(doc), fixedNow)
		assert.Error(t, err, name)
	}
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("users:\n  - id: only\n    name: Only\n"), 0o600))

	seed, err := LoadSeed(path, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, []User{{ID: "only", Name: "Only"}}, seed.Users)
	assert.Empty(t, seed.Chats)

	_, err = LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"), fixedNow)
	assert.Error(t, err)

	seed, err = LoadSeed("", fixedNow)
	require.NoError(t, err)
	assert.Len(t, seed.Users, 2)
}
