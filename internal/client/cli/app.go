package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/taskkeeper/internal/client/client"
	"github.com/dmitrijs2005/taskkeeper/internal/client/config"
	"github.com/dmitrijs2005/taskkeeper/internal/client/database"
	"github.com/dmitrijs2005/taskkeeper/internal/client/models"
	"github.com/dmitrijs2005/taskkeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/taskkeeper/internal/client/services"
	"github.com/dmitrijs2005/taskkeeper/internal/logging"
)

type App struct {
	config  *config.Config
	db      *sql.DB
	log     logging.Logger
	session *services.SessionManager
	tasks   *services.TaskStore
	scope   services.TaskScope
	reader  *bufio.Reader
	out     io.Writer

	unsubscribe func()
	signedIn    bool
}

// NewApp opens the local database and wires the services for c.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	log := logging.New(os.Stderr, c.LogLevel)

	db, err := database.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "path", c.DatabasePath, "error", err)
		return nil, err
	}

	var store kv.Store = kv.NewSQLiteStore(db)
	if c.DeviceSecret != "" {
		store = kv.NewSealedStore(store, []byte(c.DeviceSecret))
	}

	api := client.NewHTTPClient(c.APIBaseURL,
		client.WithTimeout(c.RequestTimeout),
		client.WithLogger(log.With("component", "api")),
	)

	return newApp(c, db, store, api, log, os.Stdin, os.Stdout), nil
}

func newApp(c *config.Config, db *sql.DB, store kv.Store, api *client.HTTPClient,
	log logging.Logger, in io.Reader, out io.Writer) *App {

	session := services.NewSessionManager(api, store, log)
	api.SetTokenSource(session)
	api.OnSessionExpired(session.HandleSessionExpired)

	a := &App{
		config:  c,
		db:      db,
		log:     log,
		session: session,
		tasks:   services.NewTaskStore(store, log),
		scope:   services.TaskScope(c.TaskScope),
		reader:  bufio.NewReader(in),
		out:     out,
	}
	a.unsubscribe = session.Subscribe(a.onSession)
	return a
}

// onSession points the task store at the collection of the signed-in user.
func (a *App) onSession(s models.Session) {
	a.tasks.Rebind(services.TasksKeyFor(a.scope, s.User))
	if s.IsAuthenticated() {
		a.signedIn = true
		return
	}
	if a.signedIn {
		a.signedIn = false
		fmt.Fprintln(a.out, "Signed out.")
	}
}

func (a *App) isLoggedIn() bool {
	return a.session.Current().IsAuthenticated()
}

func (a *App) getStatus() string {
	s := a.session.Current()
	if s.IsAuthenticated() {
		return s.User.DisplayName()
	}
	return string(s.Status)
}

// Run resolves the stored session and serves the REPL until the user exits
// or input ends.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	fmt.Fprintln(a.out, "Welcome to taskkeeper (type 'help' for commands)")
	if err := a.session.Start(ctx); err != nil {
		return err
	}
	if s := a.session.Current(); s.IsAuthenticated() {
		fmt.Fprintf(a.out, "Signed in as %s\n", s.User.DisplayName())
	}

	runREPL(ctx, a, a.getStatus, a.reader)
	return nil
}

func (a *App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn(context.Background(), "closing database", "error", err)
		}
	}
}
