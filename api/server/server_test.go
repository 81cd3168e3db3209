package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-dash/veridian/api/common"
	"github.com/veridian-dash/veridian/lib/dash"
	"github.com/veridian-dash/veridian/lib/db"
	"github.com/veridian-dash/veridian/lib/db/engines/maple"
	"github.com/veridian-dash/veridian/lib/store"
	"github.com/veridian-dash/veridian/lib/store/lstore"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestStore(t *testing.T) store.IStore {
	t.Helper()
	s := lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) })
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestServer(t *testing.T, mutate ...func(*common.ServerConfig)) (*Server, *httptest.Server) {
	t.Helper()
	config := common.ServerConfig{PageSize: 20, MockSeed: 7}
	for _, m := range mutate {
		m(&config)
	}
	srv, err := New(config, newTestStore(t),
		WithSeed(dash.DefaultSeed(fixedNow)),
		WithGenerator(dash.NewGenerator(7, func() time.Time { return fixedNow })),
	)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func do(t *testing.T, ts *httptest.Server, method, path, body string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	require.True(t, env.Success, "unexpected error %q", env.Error)
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

// --------------------------------------------------------------------------
// Health & generated data
// --------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	status, env := do(t, ts, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, status)
	health := decode[common.HealthResult](t, env)
	assert.Equal(t, "ok", health.Status)
}

func TestPlatformMetrics(t *testing.T) {
	_, ts := newTestServer(t)

	status, env := do(t, ts, http.MethodGet, "/api/metrics/solana", "")
	assert.Equal(t, http.StatusOK, status)
	res := decode[common.PlatformMetricsResult](t, env)
	assert.Equal(t, dash.Solana, res.Platform)
	assert.Len(t, res.Metrics.PaymentVolume.Data, 7)
	assert.Len(t, res.Metrics.CrossBorderVolume.Month, 30)

	status, env = do(t, ts, http.MethodGet, "/api/metrics/Dogecoin", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)
	assert.Equal(t, "Invalid platform specified", env.Error)
}

func TestAllAndRegionalMetrics(t *testing.T) {
	_, ts := newTestServer(t)

	_, env := do(t, ts, http.MethodGet, "/api/metrics/all", "")
	all := decode[[]dash.PlatformData](t, env)
	assert.Len(t, all, len(dash.Platforms))

	_, env = do(t, ts, http.MethodGet, "/api/metrics/regional", "")
	regional := decode[[]dash.RegionalMetric](t, env)
	assert.Len(t, regional, 8)
}

func TestTriggeredAlerts(t *testing.T) {
	_, ts := newTestServer(t)

	_, env := do(t, ts, http.MethodGet, "/api/alerts/triggered", "")
	triggered := decode[[]dash.TriggeredAlert](t, env)
	assert.Len(t, triggered, 3)
}

// --------------------------------------------------------------------------
// Alerts
// --------------------------------------------------------------------------

const alertsBody = `[{"id":"a1","platform":"Solana","metric":"gasFees","condition":"above","threshold":0.0005,"channels":["email"],"isEnabled":true}]`

func TestAlertsRoundTrip(t *testing.T) {
	_, ts := newTestServer(t)

	_, env := do(t, ts, http.MethodGet, "/api/alerts", "")
	assert.Empty(t, decode[[]dash.AlertConfiguration](t, env))
	assert.JSONEq(t, `[]`, string(env.Data))

	status, env := do(t, ts, http.MethodPost, "/api/alerts", alertsBody)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, decode[common.SaveAlertsResult](t, env).Success)

	_, env = do(t, ts, http.MethodGet, "/api/alerts", "")
	assert.JSONEq(t, alertsBody, string(env.Data))

	// replaces, never merges
	do(t, ts, http.MethodPost, "/api/alerts", `[]`)
	_, env = do(t, ts, http.MethodGet, "/api/alerts", "")
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestSaveAlertsRejectsBadBodies(t *testing.T) {
	_, ts := newTestServer(t)

	status, _ := do(t, ts, http.MethodPost, "/api/alerts", alertsBody)
	require.Equal(t, http.StatusOK, status)

	status, env := do(t, ts, http.MethodPost, "/api/alerts", `{"id":"a1"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Request body must be an array of alert configurations.", env.Error)

	status, env = do(t, ts, http.MethodPost, "/api/alerts", `[{"id":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid JSON format", env.Error)

	status, env = do(t, ts, http.MethodPost, "/api/alerts", `[{"id":"a1","threshold":"high"}]`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid JSON format", env.Error)

	// a failed save leaves the previous configurations in place
	_, env = do(t, ts, http.MethodGet, "/api/alerts", "")
	assert.JSONEq(t, alertsBody, string(env.Data))
}

func TestSaveAlertsStrict(t *testing.T) {
	_, ts := newTestServer(t, func(c *common.ServerConfig) { c.StrictAlerts = true })

	status, _ := do(t, ts, http.MethodPost, "/api/alerts", alertsBody)
	assert.Equal(t, http.StatusOK, status)

	status, env := do(t, ts, http.MethodPost, "/api/alerts",
		`[{"id":"a1","platform":"Dogecoin","metric":"gasFees","condition":"above","threshold":1,"channels":[],"isEnabled":true}]`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Error, "platform")
}

// --------------------------------------------------------------------------
// Users
// --------------------------------------------------------------------------

func TestListUsersSeeds(t *testing.T) {
	_, ts := newTestServer(t)

	status, env := do(t, ts, http.MethodGet, "/api/users", "")
	assert.Equal(t, http.StatusOK, status)
	page := decode[common.Page[dash.User]](t, env)
	assert.Equal(t, []dash.User{{ID: "u1", Name: "User A"}, {ID: "u2", Name: "User B"}}, page.Items)
	assert.Nil(t, page.Next)
}

func TestUsersPagination(t *testing.T) {
	_, ts := newTestServer(t)

	for i := range 3 {
		status, _ := do(t, ts, http.MethodPost, "/api/users", fmt.Sprintf(`{"name":"user %d"}`, i))
		require.Equal(t, http.StatusOK, status)
	}

	var names []string
	cursor := ""
	for pages := 0; ; pages++ {
		require.Less(t, pages, 10)
		_, env := do(t, ts, http.MethodGet, "/api/users?limit=2&cursor="+cursor, "")
		page := decode[common.Page[dash.User]](t, env)
		assert.LessOrEqual(t, len(page.Items), 2)
		for _, u := range page.Items {
			names = append(names, u.Name)
		}
		if page.Next == nil {
			break
		}
		cursor = *page.Next
	}
	// seeding happens on the first listing, after the created users
	assert.ElementsMatch(t, []string{"user 0", "user 1", "user 2", "User A", "User B"}, names)
}

func TestListUsersInvalidCursor(t *testing.T) {
	_, ts := newTestServer(t)

	status, env := do(t, ts, http.MethodGet, "/api/users?cursor=%21%21", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)
}

func TestListUsersInvalidLimit(t *testing.T) {
	_, ts := newTestServer(t)

	_, env := do(t, ts, http.MethodGet, "/api/users?limit=abc", "")
	page := decode[common.Page[dash.User]](t, env)
	assert.Len(t, page.Items, 1)
	assert.NotNil(t, page.Next)
}

func TestCreateUser(t *testing.T) {
	_, ts := newTestServer(t)

	status, env := do(t, ts, http.MethodPost, "/api/users", `{"name":"  Alice  "}`)
	assert.Equal(t, http.StatusOK, status)
	user := decode[dash.User](t, env)
	assert.Equal(t, "Alice", user.Name)
	assert.NotEmpty(t, user.ID)

	for _, body := range []string{`{}`, `{"name":"   "}`, `{"name":null}`} {
		status, env = do(t, ts, http.MethodPost, "/api/users", body)
		assert.Equal(t, http.StatusBadRequest, status, body)
		assert.Equal(t, "name required", env.Error, body)
	}

	status, env = do(t, ts, http.MethodPost, "/api/users", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid JSON format", env.Error)
}

func TestDeleteUser(t *testing.T) {
	_, ts := newTestServer(t)
	do(t, ts, http.MethodGet, "/api/users", "")

	status, env := do(t, ts, http.MethodDelete, "/api/users/u1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, common.DeleteResult{ID: "u1", Deleted: true}, decode[common.DeleteResult](t, env))

	_, env = do(t, ts, http.MethodDelete, "/api/users/u1", "")
	assert.Equal(t, common.DeleteResult{ID: "u1", Deleted: false}, decode[common.DeleteResult](t, env))

	_, env = do(t, ts, http.MethodGet, "/api/users", "")
	page := decode[common.Page[dash.User]](t, env)
	assert.Equal(t, []dash.User{{ID: "u2", Name: "User B"}}, page.Items)
}

func TestDeleteManyUsers(t *testing.T) {
	_, ts := newTestServer(t)
	do(t, ts, http.MethodGet, "/api/users", "")

	status, env := do(t, ts, http.MethodPost, "/api/users/deleteMany", `{"ids":["u1","",42,"nope","u2"]}`)
	assert.Equal(t, http.StatusOK, status)
	res := decode[common.DeleteManyResult](t, env)
	assert.Equal(t, 2, res.DeletedCount)
	assert.Equal(t, []string{"u1", "nope", "u2"}, res.IDs)

	for _, body := range []string{`{}`, `{"ids":[]}`, `{"ids":["",1]}`} {
		status, env = do(t, ts, http.MethodPost, "/api/users/deleteMany", body)
		assert.Equal(t, http.StatusBadRequest, status, body)
		assert.Equal(t, "ids required", env.Error, body)
	}

	_, env = do(t, ts, http.MethodGet, "/api/users", "")
	assert.Empty(t, decode[common.Page[dash.User]](t, env).Items)
}

// --------------------------------------------------------------------------
// Chats
// --------------------------------------------------------------------------

func TestListChatsSeeds(t *testing.T) {
	_, ts := newTestServer(t)

	_, env := do(t, ts, http.MethodGet, "/api/chats", "")
	page := decode[common.Page[dash.Chat]](t, env)
	assert.Equal(t, []dash.Chat{{ID: "c1", Title: "General"}}, page.Items)

	_, env = do(t, ts, http.MethodGet, "/api/chats/c1/messages", "")
	msgs := decode[[]dash.ChatMessage](t, env)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello", msgs[0].Text)
	assert.Equal(t, "c1", msgs[0].ChatID)
}

func TestCreateChatAndSendMessages(t *testing.T) {
	_, ts := newTestServer(t)

	status, env := do(t, ts, http.MethodPost, "/api/chats", `{"title":"Ops"}`)
	require.Equal(t, http.StatusOK, status)
	chat := decode[dash.Chat](t, env)
	assert.Equal(t, "Ops", chat.Title)

	_, env = do(t, ts, http.MethodGet, "/api/chats/"+chat.ID+"/messages", "")
	assert.JSONEq(t, `[]`, string(env.Data))

	for _, text := range []string{"one", "two"} {
		status, env = do(t, ts, http.MethodPost, "/api/chats/"+chat.ID+"/messages",
			fmt.Sprintf(`{"userId":"u1","text":%q}`, text))
		require.Equal(t, http.StatusOK, status)
		msg := decode[dash.ChatMessage](t, env)
		assert.Equal(t, chat.ID, msg.ChatID)
		assert.Equal(t, "u1", msg.UserID)
	}

	_, env = do(t, ts, http.MethodGet, "/api/chats/"+chat.ID+"/messages", "")
	msgs := decode[[]dash.ChatMessage](t, env)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Text)
	assert.Equal(t, "two", msgs[1].Text)
	assert.LessOrEqual(t, msgs[0].TS, msgs[1].TS)
}

func TestChatValidation(t *testing.T) {
	_, ts := newTestServer(t)
	do(t, ts, http.MethodGet, "/api/chats", "")

	status, env := do(t, ts, http.MethodPost, "/api/chats", `{"title":""}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "title required", env.Error)

	for _, body := range []string{`{"text":"hi"}`, `{"userId":"u1"}`, `{"userId":"u1","text":"  "}`} {
		status, env = do(t, ts, http.MethodPost, "/api/chats/c1/messages", body)
		assert.Equal(t, http.StatusBadRequest, status, body)
		assert.Equal(t, "userId and text required", env.Error, body)
	}
}

func TestMissingChat(t *testing.T) {
	_, ts := newTestServer(t)

	status, env := do(t, ts, http.MethodGet, "/api/chats/nope/messages", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "chat not found", env.Error)

	status, env = do(t, ts, http.MethodPost, "/api/chats/nope/messages", `{"userId":"u1","text":"hi"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "chat not found", env.Error)
}

func TestDeleteChats(t *testing.T) {
	_, ts := newTestServer(t)
	do(t, ts, http.MethodGet, "/api/chats", "")
	_, env := do(t, ts, http.MethodPost, "/api/chats", `{"title":"Ops"}`)
	chat := decode[dash.Chat](t, env)

	_, env = do(t, ts, http.MethodDelete, "/api/chats/c1", "")
	assert.True(t, decode[common.DeleteResult](t, env).Deleted)

	_, env = do(t, ts, http.MethodPost, "/api/chats/deleteMany", fmt.Sprintf(`{"ids":[%q,"c1"]}`, chat.ID))
	assert.Equal(t, 1, decode[common.DeleteManyResult](t, env).DeletedCount)

	status, _ := do(t, ts, http.MethodGet, "/api/chats/c1/messages", "")
	assert.Equal(t, http.StatusNotFound, status)

	// a deleted seed record is not re-created
	_, env = do(t, ts, http.MethodGet, "/api/chats", "")
	assert.Empty(t, decode[common.Page[dash.Chat]](t, env).Items)
}

func TestConcurrentSendMessage(t *testing.T) {
	_, ts := newTestServer(t, func(c *common.ServerConfig) { c.ExclusiveWrites = true })
	do(t, ts, http.MethodGet, "/api/chats", "")

	var wg sync.WaitGroup
	statuses := make([]int, 8)
	for i := range statuses {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/chats/c1/messages",
				strings.NewReader(fmt.Sprintf(`{"userId":"u1","text":"msg %d"}`, i)))
			resp, err := ts.Client().Do(req)
			if err != nil {
				return
			}
			statuses[i] = resp.StatusCode
			_ = resp.Body.Close()
		}()
	}
	wg.Wait()

	ok := 0
	for _, s := range statuses {
		assert.Contains(t, []int{http.StatusOK, http.StatusConflict}, s)
		if s == http.StatusOK {
			ok++
		}
	}

	// every accepted message is stored, none is lost to an interleaved write
	_, env := do(t, ts, http.MethodGet, "/api/chats/c1/messages", "")
	assert.Len(t, decode[[]dash.ChatMessage](t, env), ok+1)
}

// --------------------------------------------------------------------------
// Fallbacks & lifecycle
// --------------------------------------------------------------------------

func TestUnknownRoute(t *testing.T) {
	_, ts := newTestServer(t)

	status, env := do(t, ts, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Not Found", env.Error)

	status, env = do(t, ts, http.MethodPut, "/api/users", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
}

func TestServeListenerShutsDown(t *testing.T) {
	srv, err := New(common.ServerConfig{PageSize: 20, ShutdownTimeout: time.Second}, newTestStore(t))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeListener(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNewRejectsBadSeedFile(t *testing.T) {
	_, err := New(common.ServerConfig{SeedFile: "/does/not/exist.yaml"}, newTestStore(t))
	assert.Error(t, err)
}
