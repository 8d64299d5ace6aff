package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/toolbind/config"
	"github.com/zero-day-ai/toolbind/queue"
	"github.com/zero-day-ai/toolbind/tool"
)

// app carries state shared by all subcommands of one root command.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	redisURL   string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "toolbind",
		Short: "Build command lines from tool documents and job orders",
		Long: `toolbind validates job orders against the input schema of a command-line
tool document and turns them into deterministic argument lists.

Builds can run locally (build, validate) or through a Redis work queue
served by one or more workers (worker, submit, tools). doctor checks that
a tool can be built and served from this host.`,
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to toolbind.yaml (default: search from the current directory)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format: text, json")
	flags.StringVar(&a.redisURL, "redis", "", "Redis URL (overrides redis.url)")

	root.AddCommand(
		a.newBuildCmd(),
		a.newValidateCmd(),
		a.newWorkerCmd(),
		a.newSubmitCmd(),
		a.newToolsCmd(),
		a.newDoctorCmd(),
	)
	return root
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context, root *cobra.Command) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return root.ExecuteContext(ctx)
}

// setup loads configuration and builds the logger before any command runs.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	switch {
	case a.configPath != "":
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return &cliError{code: ExitConfigError, msg: "failed to load config", cause: err}
		}
		a.cfg = cfg
	default:
		// toolbind.yaml is optional when flags name everything
		cfg, err := config.LoadFromCurrentDir()
		if err != nil {
			cfg = &config.Config{}
		}
		a.cfg = cfg
	}

	logCfg := &config.LogConfig{}
	if a.cfg.Log != nil {
		*logCfg = *a.cfg.Log
	}
	if a.logLevel != "" {
		logCfg.Level = a.logLevel
	}
	if a.logFormat != "" {
		logCfg.Format = a.logFormat
	}
	a.logger = newLogger(cmd.ErrOrStderr(), logCfg)
	slog.SetDefault(a.logger)
	return nil
}

func newLogger(w io.Writer, cfg *config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.GetLevel()}
	if cfg.GetFormat() == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// loadDescriptor reads the tool document named by path or, when empty, by
// the tool section of the configuration.
func (a *app) loadDescriptor(path string) (*tool.Descriptor, error) {
	if path == "" {
		path = a.cfg.ToolPath()
	}
	if path == "" {
		return nil, &cliError{code: ExitUsage, msg: "no tool document: pass --tool or set tool.path in toolbind.yaml"}
	}
	doc, err := tool.LoadDocument(path)
	if err != nil {
		return nil, &cliError{code: ExitDocumentError, msg: "failed to load tool document", cause: err}
	}
	d, err := tool.New(doc, tool.WithLogger(a.logger))
	if err != nil {
		return nil, &cliError{code: ExitDocumentError, msg: fmt.Sprintf("invalid tool document %s", path), cause: err}
	}
	return d, nil
}

// loadJobOrder reads a job order file, or stdin when path is "-".
func loadJobOrder(cmd *cobra.Command, path string) (map[string]any, error) {
	if path != "-" {
		return tool.LoadJobOrder(path)
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("failed to read job order from stdin: %w", err)
	}
	return tool.ParseJobOrder(data)
}

// dialRedis connects with the redis section of the configuration.
func (a *app) dialRedis() (*queue.RedisClient, error) {
	url := a.redisURL
	if url == "" {
		url = a.cfg.Redis.GetURL()
	}
	client, err := queue.NewRedisClient(queue.RedisOptions{
		URL:            url,
		ConnectTimeout: a.cfg.Redis.GetConnectTimeout(),
		ReadTimeout:    a.cfg.Redis.GetReadTimeout(),
		WriteTimeout:   a.cfg.Redis.GetWriteTimeout(),
	})
	if err != nil {
		return nil, &cliError{code: ExitError, msg: "cannot reach the work queue", cause: err}
	}
	return client, nil
}

// shellQuote renders an argument so that a POSIX shell reads it back unchanged.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("@%_+=:,./-", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func joinArgv(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = shellQuote(arg)
	}
	return strings.Join(quoted, " ")
}
