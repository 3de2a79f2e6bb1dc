package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunesync/internal/formatter"
	"github.com/desertthunder/tunesync/internal/hub"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/notify"
	"github.com/desertthunder/tunesync/internal/repositories"
	"github.com/desertthunder/tunesync/internal/services"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/desertthunder/tunesync/internal/transport"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	api        *services.APIService
	backend    services.Backend
	dialer     transport.Dialer
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	// opening serializes openHub and Close; mu guards the fields below
	opening sync.Mutex
	mu      sync.Mutex
	db      *sql.DB
	hub     *hub.Hub
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	API        *services.APIService
	// Backend defaults to API.
	Backend    services.Backend
	Dialer     transport.Dialer
	Database   *sql.DB
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.API == nil {
		opts.API = services.NewAPIService(opts.Config.Server.BaseURL, opts.HTTPClient)
	}
	if opts.Backend == nil {
		opts.Backend = opts.API
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		api:        opts.API,
		backend:    opts.Backend,
		dialer:     opts.Dialer,
		db:         opts.Database,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, notificationsCommand, chatsCommand, friendsCommand, syncCommand, watchCommand, apiCommand,
		tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by the runner and any hub it opens afterwards.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// database opens the snapshot cache once.
func (r *Runner) database() (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, err
	}
	r.db = db
	return db, nil
}

// openHub builds the process hub from config, warm-started from the snapshot cache when one is available.
//
// A missing cache only costs the warm start, so database errors are logged rather than returned.
func (r *Runner) openHub() (*hub.Hub, error) {
	r.opening.Lock()
	defer r.opening.Unlock()

	r.mu.Lock()
	h := r.hub
	r.mu.Unlock()
	if h != nil {
		return h, nil
	}

	opts := hub.OptionsFromConfig(r.config)
	opts.Backend = r.backend
	opts.Dialer = r.dialer
	opts.Logger = r.logger
	if r.config.Notifications.Desktop {
		opts.Notifier = notify.Desktop{Icon: r.config.Notifications.Icon}
	}

	var snapshots *repositories.SnapshotRepository
	if db, err := r.database(); err != nil {
		r.logger.Warn("snapshot cache unavailable", "error", err)
	} else {
		snapshots = repositories.NewSnapshotRepository(db)
		opts.Cache = snapshots
		opts.Journal = repositories.NewSyncStateRepository(db)
	}

	if err := hub.Init(opts); err != nil {
		return nil, err
	}
	h, err := hub.Default()
	if err != nil {
		return nil, err
	}

	if snapshots != nil {
		if snap, err := snapshots.Load(context.Background(), opts.UserID); err != nil {
			r.logger.Warn("failed to load cached snapshot", "error", err)
		} else {
			h.Hydrate(snap)
		}
	}

	r.mu.Lock()
	r.hub = h
	r.mu.Unlock()
	return h, nil
}

// syncedHub opens the hub and resyncs ch so one-shot commands act on current server state.
func (r *Runner) syncedHub(ctx context.Context, ch models.Channel) (*hub.Hub, error) {
	h, err := r.openHub()
	if err != nil {
		return nil, err
	}
	if _, err := h.Resync(ctx, ch, nil); err != nil {
		return nil, fmt.Errorf("failed to sync %s: %w", ch, err)
	}
	return h, nil
}

// Close logs out of the hub and closes the database.
func (r *Runner) Close() error {
	r.opening.Lock()
	defer r.opening.Unlock()

	r.mu.Lock()
	h, db := r.hub, r.db
	r.hub, r.db = nil, nil
	r.mu.Unlock()

	if h != nil {
		h.Logout()
	}
	if db != nil {
		return db.Close()
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// writeOutput writes rendered data to path when set, or to the runner's output.
func (r *Runner) writeOutput(path string, data []byte) error {
	if path != "" {
		if err := formatter.WriteFile(path, data); err != nil {
			return err
		}
		r.logger.Info("output written", "path", path)
		return nil
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
