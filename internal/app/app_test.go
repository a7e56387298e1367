package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/specialistvlad/chatgraph/internal/handlers"
	"github.com/specialistvlad/chatgraph/internal/outcome"
	"github.com/specialistvlad/chatgraph/internal/registry"
	"github.com/specialistvlad/chatgraph/internal/sessionstore"
	"github.com/specialistvlad/chatgraph/internal/testutil"
	"github.com/specialistvlad/chatgraph/modules/console"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoModule greets, then echoes every line in upper case.
var echoModule = registry.ModuleFunc(func(t *registry.Table) error {
	t.Register("start", handlers.Plain(func(context.Context, *handlers.Request) (any, error) {
		return outcome.Seq("hello", outcome.Move{Path: "echo"}), nil
	}))
	t.Register("start.echo", handlers.Plain(func(_ context.Context, req *handlers.Request) (any, error) {
		return strings.ToUpper(req.Content()), nil
	}), handlers.WithEvent())
	return nil
})

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(Config{})
	require.NoError(t, err)
	assert.Equal(t, TransportConsole, cfg.Transport)
	assert.Equal(t, StoreMemory, cfg.Store)

	cfg, err = NewConfig(Config{Transport: " SocketIO "})
	require.NoError(t, err)
	assert.Equal(t, TransportSocketIO, cfg.Transport)

	_, err = NewConfig(Config{Transport: "carrier-pigeon"})
	require.Error(t, err)
	_, err = NewConfig(Config{WorkerCount: -1})
	require.Error(t, err)
	_, err = NewConfig(Config{HealthcheckPort: 70000})
	require.Error(t, err)
}

func TestApp_ConsoleConversation(t *testing.T) {
	// Arrange
	cfg, err := NewConfig(Config{})
	require.NoError(t, err)
	a, out, logs := SetupAppTest(t, cfg,
		WithModules(echoModule),
		WithInput(strings.NewReader("hi\nagain\n")),
	)

	// Act
	err = a.Run(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out.String(), "bot: hello")
	assert.Contains(t, out.String(), "bot: AGAIN")
	testutil.AssertLogged(t, logs, "Serving events.", "transport=console")
	testutil.AssertLogged(t, logs, "Stopped serving events.")
}

func TestApp_SQLiteStoreKeepsRoute(t *testing.T) {
	// Arrange
	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	cfg, err := NewConfig(Config{Store: dbPath})
	require.NoError(t, err)
	a, _, _ := SetupAppTest(t, cfg, WithModules(echoModule), WithInput(strings.NewReader("hi\n")))

	// Act
	require.NoError(t, a.Run(context.Background()))

	// Assert
	store, err := sessionstore.Open(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	st, err := store.Get(context.Background(), console.DefaultSessionID)
	require.NoError(t, err)
	assert.Equal(t, "start.echo", st.Route)
	assert.Equal(t, "console", st.Platform)
}

func TestApp_ConfigFileAndInterceptors(t *testing.T) {
	// Arrange
	dir := testutil.WriteFiles(t, map[string]string{
		"bot.hcl": `
dispatcher {
  workers = 2
}
interceptor "help" {
  pattern = "^help$"
  reply   = upper("menu: type anything")
}
`,
	})
	cfg, err := NewConfig(Config{ConfigPath: dir})
	require.NoError(t, err)
	a, out, _ := SetupAppTest(t, cfg, WithModules(echoModule), WithInput(strings.NewReader("help\n")))

	// Act
	require.NoError(t, a.Run(context.Background()))

	// Assert
	assert.Equal(t, 2, a.workers())
	assert.Contains(t, out.String(), "bot: MENU: TYPE ANYTHING")
}

func TestNewApp_Errors(t *testing.T) {
	cfg, err := NewConfig(Config{ConfigPath: filepath.Join(t.TempDir(), "missing.hcl")})
	require.NoError(t, err)
	_, err = NewApp(io.Discard, cfg, WithModules(echoModule))
	require.ErrorContains(t, err, "failed to load configuration")

	cfg, err = NewConfig(Config{})
	require.NoError(t, err)
	noRoot := registry.ModuleFunc(func(t *registry.Table) error {
		t.Register("start.only", handlers.Plain(func(context.Context, *handlers.Request) (any, error) { return nil, nil }))
		return nil
	})
	_, err = NewApp(io.Discard, cfg, WithModules(noRoot))
	require.ErrorContains(t, err, "failed to build route table")
}

func TestApp_SocketIONeedsURL(t *testing.T) {
	cfg, err := NewConfig(Config{Transport: TransportSocketIO})
	require.NoError(t, err)
	a, _, _ := SetupAppTest(t, cfg, WithModules(echoModule))

	err = a.Run(context.Background())

	require.ErrorContains(t, err, "socketio.url")
}

func TestApp_DeliversThroughRouter(t *testing.T) {
	// Arrange
	var mu sync.Mutex
	var paths []string
	var sent []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		if msg, ok := body["message"].(map[string]any); ok {
			text := msg["text_message"].(map[string]any)
			sent = append(sent, text["detail"].(string))
		}
		mu.Unlock()
		_, _ = io.WriteString(w, `{"status": true}`)
	}))
	t.Cleanup(srv.Close)

	dir := testutil.WriteFiles(t, map[string]string{
		"bot.hcl": "router {\n  base_url = \"" + srv.URL + "\"\n}\n",
	})
	cfg, err := NewConfig(Config{ConfigPath: dir})
	require.NoError(t, err)
	a, out, _ := SetupAppTest(t, cfg, WithModules(echoModule), WithInput(strings.NewReader("hi\nyo\n")))

	// Act
	require.NoError(t, a.Run(context.Background()))

	// Assert
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/messages/send/", "/session/route/", "/messages/send/"}, paths)
	assert.Equal(t, []string{"hello", "YO"}, sent)
	assert.NotContains(t, out.String(), "bot: hello")
}

func TestApp_HealthHandler(t *testing.T) {
	cfg, err := NewConfig(Config{})
	require.NoError(t, err)
	a, _, _ := SetupAppTest(t, cfg, WithModules(echoModule))
	a.ctx = context.Background()

	rec := httptest.NewRecorder()
	a.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())
}
