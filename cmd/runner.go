package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mdx/internal/auth"
	"github.com/desertthunder/mdx/internal/downloads"
	"github.com/desertthunder/mdx/internal/media"
	"github.com/desertthunder/mdx/internal/models"
	"github.com/desertthunder/mdx/internal/player"
	"github.com/desertthunder/mdx/internal/repositories"
	"github.com/desertthunder/mdx/internal/services"
	"github.com/desertthunder/mdx/internal/shared"
	"github.com/urfave/cli/v3"
)

// MediaFactory creates the media element a player drives.
type MediaFactory func(ctx context.Context, config *shared.Config, logger *log.Logger) (media.Element, error)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	api        *services.APIService
	store      *auth.Store
	flow       *auth.Flow
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	input      *bufio.Reader
	newMedia   MediaFactory

	db      *sql.DB
	tracks  *repositories.TrackRepository
	history *repositories.DownloadRepository

	mu sync.Mutex // serializes writes to output
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config // when nil, loaded from --config before any command runs
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
	DB         *sql.DB
	Media      MediaFactory
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Media == nil {
		opts.Media = startMPV
	}

	r := &Runner{
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      bufio.NewReader(opts.Input),
		newMedia:   opts.Media,
		db:         opts.DB,
	}
	if opts.Config != nil {
		r.configure(opts.Config)
	}
	return r
}

func startMPV(ctx context.Context, config *shared.Config, logger *log.Logger) (media.Element, error) {
	return media.StartMPV(ctx, media.MPVOpts{
		Path:   config.Player.MPVPath,
		Socket: config.Player.SocketPath,
		Logger: shared.WithLogger(logger, "component", "mpv"),
	})
}

// configure builds the API client and session store from config.
func (r *Runner) configure(config *shared.Config) {
	r.config = config
	r.store = auth.NewStore(config.Session.Path)
	r.api = services.NewAPIService(services.APIOpts{
		BaseURL:           config.API.BaseURL,
		Quality:           config.API.Quality,
		Timeout:           config.API.Timeout(),
		RequestsPerSecond: config.API.RequestsPerSecond,
		HTTPClient:        r.httpClient,
		Tokens:            r.store.TokenSource(),
		Logger:            shared.WithLogger(r.logger, "component", "api"),
	})
	r.flow = auth.NewFlow(r.api, r.store, shared.WithLogger(r.logger, "component", "auth"))
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
	if r.config != nil {
		r.configure(r.config)
	}
}

// Before loads the configuration named by --config and applies --verbose.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if r.config != nil && !cmd.IsSet("config") {
		return ctx, nil
	}

	config, err := shared.Load(cmd.String("config"))
	if err != nil {
		return ctx, err
	}
	r.configure(config)
	return ctx, nil
}

// RequireSession guards commands that need a logged-in session.
func (r *Runner) RequireSession(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if _, err := r.flow.RequireSession(); err != nil {
		return ctx, err
	}
	return ctx, nil
}

// Close releases the database connection if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, searchCommand, urlCommand, coverCommand, downloadCommand,
		playCommand, historyCommand, inspectCommand, tuiCommand, apiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// database opens the configured database on first use and builds the repositories.
func (r *Runner) database() (*sql.DB, error) {
	if r.db == nil {
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return nil, err
		}
		r.db = db
	}
	if r.tracks == nil {
		r.tracks = repositories.NewTrackRepository(r.db)
		r.history = repositories.NewDownloadRepository(r.db)
	}
	return r.db, nil
}

// cacheTracks remembers search results. Failures are logged; the cache is optional.
func (r *Runner) cacheTracks(tracks []models.Track) {
	if len(tracks) == 0 {
		return
	}
	if _, err := r.database(); err != nil {
		r.logger.Warn("track cache unavailable", "error", err)
		return
	}
	if err := r.tracks.Upsert(tracks...); err != nil {
		r.logger.Warn("failed to cache tracks", "error", err)
	}
}

// lookupTrack returns the cached metadata for hash, or a bare track named after the hash.
func (r *Runner) lookupTrack(hash string) models.Track {
	if _, err := r.database(); err == nil {
		if track, err := r.tracks.Get(hash); err == nil {
			return *track
		}
	}
	r.logger.Debug("track not cached, using hash as title", "hash", hash)
	return models.Track{Hash: hash, Title: hash}
}

// newPlayer starts a media element and wraps it in a [player.Player] at the configured volume.
func (r *Runner) newPlayer(ctx context.Context) (*player.Player, error) {
	element, err := r.newMedia(ctx, r.config, r.logger)
	if err != nil {
		return nil, err
	}

	p := player.New(player.Opts{
		Resolver: r.api,
		Media:    element,
		EndGrace: r.config.Player.EndGrace(),
		Logger:   shared.WithLogger(r.logger, "component", "player"),
	})
	p.SetVolume(r.config.Player.Volume)
	return p, nil
}

// newManager builds a download manager writing history to the database when it is available.
func (r *Runner) newManager(dir string) *downloads.Manager {
	if dir == "" {
		dir = r.config.Downloads.Dir
	}

	opts := downloads.ManagerOpts{
		Catalog: r.api,
		Dir:     dir,
		Grace:   r.config.Downloads.Grace(),
		Logger:  shared.WithLogger(r.logger, "component", "downloads"),
	}
	if r.config.Downloads.Tag {
		opts.Tagger = downloads.FileTagger{}
	}
	if _, err := r.database(); err != nil {
		r.logger.Warn("download history unavailable", "error", err)
	} else {
		opts.History = r.history
	}

	return downloads.NewManager(opts)
}

// prompt writes label and reads one trimmed line of input.
func (r *Runner) prompt(label string) (string, error) {
	r.writePlain("%s", label)
	line, err := r.input.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("%w: no input", shared.ErrMissingArgument)
	}
	return strings.TrimSpace(line), nil
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

	return r.write(append(output, '\n'))
}

func (r *Runner) write(b []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.output.Write(b); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	return r.write([]byte(fmt.Sprintf(format, args...)))
}

func (r *Runner) writePlainln(format string, args ...any) error {
	return r.write([]byte("\n" + fmt.Sprintf(format, args...) + "\n"))
}
