package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/jo-hoe/goclerk/internal/common"
	"github.com/jo-hoe/goclerk/internal/core"
)

type options struct {
	configPath string
	maxSize    int
	prompt     string
	debug      bool
	sink       string
	logLevel   string
}

func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	// First check if config path is provided via environment variable
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		return configPath
	}

	// Default to config.yaml in current working directory, if present
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	path := filepath.Join(cwd, "config.yaml")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return path
}

func loadConfig(flags *pflag.FlagSet, opts *options) (*core.ServiceConfig, error) {
	config := core.DefaultConfig()
	if configPath := getConfigPath(opts.configPath); configPath != "" {
		loaded, err := core.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	// explicit flags win over the file
	if flags.Changed("max-size") {
		config.MaxSize = opts.maxSize
	}
	if flags.Changed("prompt") {
		config.Prompt = opts.prompt
	}
	if flags.Changed("debug") {
		config.Debug = opts.debug
	}
	if flags.Changed("sink") {
		config.Sink.Type = opts.sink
	}
	if flags.Changed("log-level") {
		config.LogLevel = opts.logLevel
	}
	if config.Debug && !flags.Changed("log-level") {
		config.LogLevel = "debug"
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func run(args []string) int {
	opts := &options{}
	flags := pflag.NewFlagSet("clerk", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: clerk [flags] IMAGE [IMAGE...]\n\nExtracts document metadata from scanned images.\n\nFlags:\n")
		flags.PrintDefaults()
	}
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file (default $CONFIG_PATH or ./config.yaml)")
	flags.IntVar(&opts.maxSize, "max-size", core.DefaultMaxSize, "maximum width or height in pixels sent to the model")
	flags.StringVarP(&opts.prompt, "prompt", "p", "", "instruction sent with each image")
	flags.BoolVarP(&opts.debug, "debug", "d", false, "keep normalized images and raw model responses next to the inputs")
	flags.StringVar(&opts.sink, "sink", "", "where records are stored: xattr, sidecar, sqlite or redis")
	flags.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	paths := flags.Args()
	if len(paths) == 0 {
		flags.Usage()
		return 2
	}

	config, err := loadConfig(flags, opts)
	if err != nil {
		common.SetupLogging(os.Stderr, "info")
		slog.Error("failed to load configuration", "error", err)
		return 1
	}
	common.SetupLogging(os.Stderr, config.LogLevel)

	coreService, err := core.NewCoreService(config, os.Stdout)
	if err != nil {
		slog.Error("failed to initialize core service", "error", err)
		return 1
	}
	defer func() {
		if err := coreService.Close(); err != nil {
			slog.Error("core service close error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// per-file failures are reported in the log, not through the exit code
	coreService.ProcessBatch(ctx, paths)
	return 0
}

func main() {
	os.Exit(run(os.Args[1:]))
}
