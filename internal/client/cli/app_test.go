package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dmitrijs2005/taskkeeper/internal/client/client"
	"github.com/dmitrijs2005/taskkeeper/internal/client/config"
	"github.com/dmitrijs2005/taskkeeper/internal/client/database"
	"github.com/dmitrijs2005/taskkeeper/internal/client/models"
	"github.com/dmitrijs2005/taskkeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/taskkeeper/internal/client/services"
	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backend is a minimal mock of the REST API.
type backend struct {
	*httptest.Server
	rejectProfile atomic.Bool
}

func newBackendServer(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	user := models.User{ID: 7, Username: "ann", Email: "ann@example.com", FirstName: "Ann"}

	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/auth/login/":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["username"] != "ann" || body["password"] != "pw" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"token": "tok-7", "user": user})
		case "/api/profile/":
			if b.rejectProfile.Load() || r.Header.Get("Authorization") != "Token tok-7" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail":"Invalid token."}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"user": user})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(b.Close)
	return b
}

func newTestApp(t *testing.T, apiURL, dbPath, scope, script string) (*App, *bytes.Buffer) {
	t.Helper()
	stubTerminal(t, false, nil, nil)
	capturePrintln(t)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.APIBaseURL = apiURL
	cfg.DatabasePath = dbPath
	cfg.TaskScope = scope

	db, err := database.InitDatabase(context.Background(), dbPath)
	require.NoError(t, err)

	var out bytes.Buffer
	api := client.NewHTTPClient(apiURL)
	app := newApp(cfg, db, kv.NewSQLiteStore(db), api, logging.Nop(), strings.NewReader(script), &out)
	return app, &out
}

func TestApp_LoginAddListAndRestart(t *testing.T) {
	srv := newBackendServer(t)
	dbPath := filepath.Join(t.TempDir(), "tk.db")

	app, out := newTestApp(t, srv.URL, dbPath, "device", strings.Join([]string{
		"login", "ann", "pw",
		"add", "Buy milk", "", "high", "2025-04-01",
		"l",
		"exit",
	}, "\n")+"\n")
	require.NoError(t, app.Run(context.Background()))

	assert.Contains(t, out.String(), "Signed in as Ann")
	assert.Contains(t, out.String(), "Buy milk")
	assert.Contains(t, out.String(), "1 total, 1 pending, 0 completed")

	// a second process finds the stored session and the task
	app2, out2 := newTestApp(t, srv.URL, dbPath, "device", "list\nexit\n")
	require.NoError(t, app2.Run(context.Background()))
	assert.Contains(t, out2.String(), "Signed in as Ann")
	assert.Contains(t, out2.String(), "Buy milk")
}

func TestApp_RejectedTokenAtStartup(t *testing.T) {
	srv := newBackendServer(t)
	dbPath := filepath.Join(t.TempDir(), "tk.db")

	app, _ := newTestApp(t, srv.URL, dbPath, "device", "login\nann\npw\nexit\n")
	require.NoError(t, app.Run(context.Background()))

	srv.rejectProfile.Store(true)

	app2, _ := newTestApp(t, srv.URL, dbPath, "device", "exit\n")
	require.NoError(t, app2.session.Start(context.Background()))
	assert.Equal(t, models.SessionUnauthenticated, app2.session.Current().Status)

	db, err := database.InitDatabase(context.Background(), dbPath)
	require.NoError(t, err)
	defer db.Close()
	keys, err := kv.NewSQLiteStore(db).Keys(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, keys, services.KeyAuthToken)
	assert.NotContains(t, keys, services.KeyAuthUser)
	app2.Close()
}

func TestApp_WhoAmIAfterServerRevokesToken(t *testing.T) {
	srv := newBackendServer(t)
	dbPath := filepath.Join(t.TempDir(), "tk.db")

	app, out := newTestApp(t, srv.URL, dbPath, "device", "ann\npw\n")
	require.NoError(t, app.session.Start(context.Background()))
	defer app.Close()

	require.NoError(t, app.Login(context.Background()))
	require.True(t, app.isLoggedIn())

	srv.rejectProfile.Store(true)
	err := app.WhoAmI(context.Background())
	require.ErrorIs(t, err, client.ErrSessionExpired)
	assert.False(t, app.isLoggedIn())
	assert.Contains(t, out.String(), "Signed out.")
}

func TestApp_UserScopeRebindsTaskKey(t *testing.T) {
	srv := newBackendServer(t)
	dbPath := filepath.Join(t.TempDir(), "tk.db")

	app, _ := newTestApp(t, srv.URL, dbPath, "user", "ann\npw\n")
	require.NoError(t, app.session.Start(context.Background()))
	defer app.Close()
	assert.Equal(t, services.KeyTasks, app.tasks.Key())

	require.NoError(t, app.Login(context.Background()))
	assert.Equal(t, "tasks:7", app.tasks.Key())

	require.NoError(t, app.Logout(context.Background()))
	assert.Equal(t, services.KeyTasks, app.tasks.Key())
}

func TestApp_TaskCommands(t *testing.T) {
	srv := newBackendServer(t)
	dbPath := filepath.Join(t.TempDir(), "tk.db")

	app, out := newTestApp(t, srv.URL, dbPath, "device", strings.Join([]string{
		"New title", "", "low", "-",
	}, "\n")+"\n")
	require.NoError(t, app.session.Start(context.Background()))
	defer app.Close()
	ctx := context.Background()

	task, err := app.tasks.Create(ctx, models.TaskInput{Title: "Old", Description: "d", DueDate: "2025-01-01"})
	require.NoError(t, err)

	require.NoError(t, app.Edit(ctx, []string{task.ID}))
	got, err := app.tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "New title", got.Title)
	assert.Equal(t, "d", got.Description)
	assert.Equal(t, models.PriorityLow, got.Priority)
	assert.Empty(t, got.DueDate)

	require.NoError(t, app.Done(ctx, []string{task.ID}))
	require.NoError(t, app.Completed(ctx))
	assert.Contains(t, out.String(), "New title is now completed")

	require.NoError(t, app.ClearCompleted(ctx))
	assert.Contains(t, out.String(), "Removed 1 completed task(s).")

	require.Error(t, app.Remove(ctx, nil))
	require.ErrorIs(t, app.Remove(ctx, []string{task.ID}), common.ErrNotFound)
}
