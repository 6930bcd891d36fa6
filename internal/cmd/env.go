package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/monorun/internal/config"
	"github.com/harrison/monorun/internal/history"
	"github.com/harrison/monorun/internal/logger"
	"github.com/harrison/monorun/internal/process"
)

// Hooks replaced in tests.
var (
	lookupEnv = os.LookupEnv
	lookPath  = process.LookPath
	getwd     = os.Getwd
	newRunner = func(out, errOut io.Writer) process.Runner {
		return &process.Executor{Stdout: out, Stderr: errOut}
	}
)

// environment is the resolved runtime shared by every subcommand.
type environment struct {
	root    string
	cfg     *config.Config
	out     io.Writer
	runner  process.Runner
	console *logger.ConsoleLogger
	fileLog *logger.FileLogger
	store   *history.Store
	log     logger.MultiLogger
}

// loadEnvironment resolves the repo root, loads configuration, applies the
// environment and flags, and opens the loggers and history store.
// Callers must Close the returned environment.
func loadEnvironment(cmd *cobra.Command, withHistory bool) (*environment, error) {
	root, err := resolveRoot(cmd)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return nil, err
	}

	env := &environment{
		root:   root,
		cfg:    cfg,
		out:    cmd.OutOrStdout(),
		runner: newRunner(cmd.OutOrStdout(), cmd.ErrOrStderr()),
	}

	level := cfg.LogLevel
	if cfg.Verbose && logLevelRank(level) > logLevelRank("debug") {
		level = "debug"
	}
	env.console = logger.NewConsoleLogger(cmd.ErrOrStderr(), level)
	env.log = logger.MultiLogger{env.console}

	fileLog, err := logger.NewFileLogger(config.Resolve(root, cfg.LogDir), level)
	if err != nil {
		env.console.Warnf("file logging disabled: %v", err)
	} else {
		env.fileLog = fileLog
		env.log = append(env.log, fileLog)
	}

	if withHistory && cfg.History.Enabled {
		store, err := history.NewStore(config.Resolve(root, cfg.History.DBPath))
		if err != nil {
			env.console.Warnf("run history disabled: %v", err)
		} else {
			env.store = store
		}
	}

	return env, nil
}

func resolveRoot(cmd *cobra.Command) (string, error) {
	start, _ := cmd.Flags().GetString("root")
	if start == "" {
		wd, err := getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		start = wd
	}
	root, err := config.FindRepoRoot(start)
	if err != nil {
		return "", fmt.Errorf("locate repository root: %w", err)
	}
	return root, nil
}

func loadConfig(cmd *cobra.Command, root string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
	} else {
		cfg, err = config.LoadConfigFromDir(root)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.ApplyEnv(lookupEnv)

	var levelPtr *string
	if cmd.Flags().Changed("log-level") {
		level, _ := cmd.Flags().GetString("log-level")
		levelPtr = &level
	}
	var verbosePtr *bool
	if cmd.Flags().Changed("verbose") {
		verbose, _ := cmd.Flags().GetBool("verbose")
		verbosePtr = &verbose
	}
	cfg.MergeWithFlags(levelPtr, verbosePtr)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func logLevelRank(level string) int {
	switch strings.ToLower(level) {
	case "trace":
		return 0
	case "debug":
		return 1
	case "warn":
		return 3
	case "error":
		return 4
	default:
		return 2
	}
}

// Close releases the file logger and history store.
func (e *environment) Close() {
	if e.fileLog != nil {
		e.fileLog.Close()
	}
	if e.store != nil {
		e.store.Close()
	}
}
