package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/sv4u/playlistdl/download"
	"github.com/sv4u/playlistdl/download/config"
	"github.com/sv4u/playlistdl/download/logging"
	"github.com/sv4u/playlistdl/download/spotify"
)

// ExporterFactory builds the playlist exporter for a run.
type ExporterFactory func(cfg *config.Config, logger *log.Logger) (download.Exporter, error)

// Runner holds the dependencies of the CLI commands and provides their
// actions.
type Runner struct {
	stdout      io.Writer
	stderr      io.Writer
	newExporter ExporterFactory
	stages      *download.Stages
}

// RunnerOpts configures a Runner. Zero fields get production defaults.
type RunnerOpts struct {
	Stdout      io.Writer
	Stderr      io.Writer
	NewExporter ExporterFactory
	// Stages replaces the yt-dlp, cover and tagging stages.
	Stages *download.Stages
}

// NewRunner creates a Runner.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.NewExporter == nil {
		opts.NewExporter = spotifyExporter
	}
	return &Runner{
		stdout:      opts.Stdout,
		stderr:      opts.Stderr,
		newExporter: opts.NewExporter,
		stages:      opts.Stages,
	}
}

func spotifyExporter(cfg *config.Config, logger *log.Logger) (download.Exporter, error) {
	if err := cfg.Spotify.RequireCredentials(); err != nil {
		return nil, err
	}
	client, err := spotify.NewClient(spotify.Config{
		ClientID:          cfg.Spotify.ClientID,
		ClientSecret:      cfg.Spotify.ClientSecret,
		RateLimitEnabled:  cfg.Spotify.LimitEnabled(),
		RateLimitRequests: cfg.Spotify.RateLimitRequests,
		RateLimitWindow:   cfg.Spotify.RateLimitWindow,
	}, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Run executes the CLI with args and returns the process exit code.
func (r *Runner) Run(ctx context.Context, args []string) int {
	err := r.command().Run(ctx, args)
	if err != nil {
		fmt.Fprintf(r.stderr, "Error: %v\n", err)
	}
	return ExitCode(err)
}

func (r *Runner) command() *cli.Command {
	return &cli.Command{
		Name:      "playlistdl",
		Usage:     "Download a Spotify playlist as tagged MP3 files",
		Version:   Version,
		Writer:    r.stdout,
		ErrWriter: r.stderr,
		Commands: []*cli.Command{
			downloadCommand(r),
			exportCommand(r),
			runCommand(r),
			versionCommand(r),
		},
	}
}

// runFlags are shared by every command that loads configuration.
func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML or TOML configuration file",
			Sources: cli.EnvVars("PLAYLISTDL_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Root directory for playlist folders",
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "Number of workers (0 derives it from the CPU count)",
		},
		&cli.IntFlag{
			Name:  "max-workers",
			Usage: "Upper bound on the number of workers (0 for no cap)",
		},
		&cli.IntFlag{
			Name:  "reserve-cores",
			Usage: "CPU cores left free when deriving the worker count",
		},
		&cli.StringFlag{
			Name:  "format-records",
			Usage: "Record file format: csv, jsonl or legacy",
		},
		&cli.BoolFlag{
			Name:  "chunk-files",
			Usage: "Give each worker its own record file",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn or error",
		},
	}
}

func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "Export a playlist and download every track",
		ArgsUsage: "<playlist-url-or-id>",
		Arguments: []cli.Argument{&cli.StringArg{Name: "playlist"}},
		Flags:     runFlags(),
		Action:    r.Download,
	}
}

func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Write a playlist's record file and print its path",
		ArgsUsage: "<playlist-url-or-id>",
		Arguments: []cli.Argument{&cli.StringArg{Name: "playlist"}},
		Flags:     runFlags(),
		Action:    r.Export,
	}
}

func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Download every track of an existing record file into its directory",
		ArgsUsage: "<record-file>",
		Arguments: []cli.Argument{&cli.StringArg{Name: "record-file"}},
		Flags:     runFlags(),
		Action:    r.RunRecords,
	}
}

func versionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, err := fmt.Fprintf(r.stdout, "playlistdl version %s\n", Version)
			return err
		},
	}
}

// loadConfig loads the configuration and applies flag overrides.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("output") {
		cfg.Download.OutputRoot = cmd.String("output")
	}
	if cmd.IsSet("workers") {
		cfg.Download.Workers = cmd.Int("workers")
	}
	if cmd.IsSet("max-workers") {
		cfg.Download.MaxWorkers = cmd.Int("max-workers")
	}
	if cmd.IsSet("reserve-cores") {
		n := cmd.Int("reserve-cores")
		cfg.Download.ReserveCores = &n
	}
	if cmd.IsSet("format-records") {
		cfg.Download.RecordFormat = cmd.String("format-records")
	}
	if cmd.IsSet("chunk-files") {
		cfg.Download.ChunkFiles = cmd.Bool("chunk-files")
	}
	if cmd.IsSet("log-level") {
		cfg.Logging.Level = cmd.String("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session is the state shared by one command invocation.
type session struct {
	cfg     *config.Config
	runLog  *logging.RunLog
	console *log.Logger
}

func (r *Runner) openSession(cmd *cli.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	runLog, err := openRunLog(cfg)
	if err != nil {
		return nil, err
	}
	// Level was validated by openRunLog.
	level, _ := logging.ParseLevel(cfg.Logging.Level)
	console := logging.New(r.stderr, level)
	console.Info("run_started", "run_id", runLog.ID, "log", runLog.Path)
	return &session{cfg: cfg, runLog: runLog, console: console}, nil
}

func (s *session) Close() error {
	return s.runLog.Close()
}

func (r *Runner) service(s *session, exporter download.Exporter) (*download.Service, error) {
	return download.NewService(s.cfg, download.ServiceOptions{
		Exporter: exporter,
		Stages:   r.stages,
		Logger:   s.runLog.Logger,
	})
}

func (r *Runner) exportingService(s *session) (*download.Service, error) {
	exporter, err := r.newExporter(s.cfg, s.runLog.Logger)
	if err != nil {
		return nil, err
	}
	return r.service(s, exporter)
}

func playlistArg(cmd *cli.Command) (string, error) {
	ref := cmd.StringArg("playlist")
	if ref == "" {
		return "", &config.ConfigError{Message: "a playlist URL or ID is required"}
	}
	return ref, nil
}

// Download exports the playlist and downloads its tracks.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	ref, err := playlistArg(cmd)
	if err != nil {
		return err
	}
	s, err := r.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	svc, err := r.exportingService(s)
	if err != nil {
		return err
	}
	path, _, err := svc.Export(ctx, ref)
	if err != nil {
		return err
	}
	summary, err := svc.Run(ctx, path)
	report(s.console, summary)
	if err != nil {
		return err
	}
	return partialErr(summary)
}

// Export writes the playlist's record file and prints its path.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	ref, err := playlistArg(cmd)
	if err != nil {
		return err
	}
	s, err := r.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	svc, err := r.exportingService(s)
	if err != nil {
		return err
	}
	path, playlist, err := svc.Export(ctx, ref)
	if err != nil {
		return err
	}
	s.console.Info("playlist_exported", "playlist", playlist.Name, "records", len(playlist.Records), "skipped", playlist.Skipped)
	_, err = fmt.Fprintln(r.stdout, path)
	return err
}

// RunRecords downloads the tracks of an existing record file.
func (r *Runner) RunRecords(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("record-file")
	if path == "" {
		return &config.ConfigError{Message: "a record file is required"}
	}
	s, err := r.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	svc, err := r.service(s, nil)
	if err != nil {
		return err
	}
	summary, err := svc.Run(ctx, path)
	report(s.console, summary)
	if err != nil {
		return err
	}
	return partialErr(summary)
}

func report(console *log.Logger, summary download.Summary) {
	for _, results := range summary.Results {
		for _, out := range results {
			if out.State == download.StateSkipped {
				console.Warn("track_skipped", "track", out.Record.Name, "artist", out.Record.Artist, "reason", out.Reason)
			}
		}
	}
	console.Info("run_finished",
		"done", summary.Done,
		"degraded", summary.Degraded,
		"skipped", summary.Skipped,
		"not_run", summary.NotRun,
		"workers", summary.Workers)
}
