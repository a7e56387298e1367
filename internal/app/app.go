package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/specialistvlad/chatgraph/internal/config"
	"github.com/specialistvlad/chatgraph/internal/ctxlog"
	"github.com/specialistvlad/chatgraph/internal/interceptor"
	"github.com/specialistvlad/chatgraph/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx    context.Context
	outW   io.Writer
	inR    io.Reader
	logger *slog.Logger
	config *Config

	bot          *config.Config
	table        *registry.Table
	interceptors *interceptor.List
	httpServer   *http.Server
}

// Option customizes an App.
type Option func(*options)

type options struct {
	in      io.Reader
	logW    io.Writer
	loader  config.Loader
	modules []registry.Module
}

// WithInput sets where the console transport reads from. Defaults to stdin.
func WithInput(r io.Reader) Option { return func(o *options) { o.in = r } }

// WithLogWriter sends logs to w instead of the output writer.
func WithLogWriter(w io.Writer) Option { return func(o *options) { o.logW = w } }

// WithLoader replaces the HCL bot file loader.
func WithLoader(l config.Loader) Option { return func(o *options) { o.loader = l } }

// WithModules replaces the compiled-in flows.
func WithModules(m ...registry.Module) Option { return func(o *options) { o.modules = m } }

// NewApp is the constructor for the main application. It loads the bot
// configuration and builds the route table; anything that needs a live
// connection is deferred to Run.
func NewApp(outW io.Writer, cfg *Config, opts ...Option) (*App, error) {
	o := options{in: os.Stdin, logW: outW, loader: &config.HCLLoader{}, modules: coreModules}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.EnvFile != "" {
		if err := config.LoadDotEnv(cfg.EnvFile); err != nil {
			return nil, err
		}
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat, o.logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	bot, err := o.loader.Load(ctx, cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.LogLevel == "" && bot.LogLevel != "" {
		logger = newLogger(bot.LogLevel, cfg.LogFormat, o.logW)
		ctx = ctxlog.WithLogger(context.Background(), logger)
	}
	logger.Debug("Configuration loaded.", "files", len(bot.Files))

	table, err := registry.Build(ctx, o.modules...)
	if err != nil {
		return nil, fmt.Errorf("failed to build route table: %w", err)
	}
	interceptors, err := bot.BuildInterceptors(interceptor.Catalog())
	if err != nil {
		return nil, fmt.Errorf("failed to build interceptors: %w", err)
	}
	logger.Debug("Interceptors configured.", "names", interceptors.Names())

	return &App{
		ctx:          ctx,
		outW:         outW,
		inR:          o.in,
		logger:       logger,
		config:       cfg,
		bot:          bot,
		table:        table,
		interceptors: interceptors,
	}, nil
}

// Table returns the application's route table. This is primarily for testing.
func (a *App) Table() *registry.Table {
	return a.table
}

func (a *App) workers() int {
	if a.config.WorkerCount > 0 {
		return a.config.WorkerCount
	}
	return a.bot.Dispatcher.Workers
}
