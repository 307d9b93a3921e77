package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	flag "github.com/spf13/pflag"

	"github.com/nvimbridge/nvim-ide-mcp/bridge"
	"github.com/nvimbridge/nvim-ide-mcp/config"
	"github.com/nvimbridge/nvim-ide-mcp/debug"
	"github.com/nvimbridge/nvim-ide-mcp/editor"
	"github.com/nvimbridge/nvim-ide-mcp/intel"
	"github.com/nvimbridge/nvim-ide-mcp/log"
	"github.com/nvimbridge/nvim-ide-mcp/tools"
	"github.com/nvimbridge/nvim-ide-mcp/workspace"
)

// install: go install ./cmd/nvim-ide-mcp
const help = `
nvim-ide-mcp MCP server driving a headless Neovim

Usage: nvim-ide-mcp [OPTIONS]

Available commands:
  help                               show help message

Options:
  --workspace <dir>                  Workspace root all paths resolve against (default: current directory)
  --config <file>                    YAML configuration file
  --listen <addr>                    Serve MCP over SSE on addr instead of stdio
  --editor-bin <path>                Editor binary (default: nvim)
  --init-file <file>                 Editor init file that loads the RPC runtime
  --log-level <level>                debug, info, warn or error (default: info)
  --log-file <file>                  Log file (default: ~/.nvim-ide-mcp/nvim-ide-mcp.log)
  --help   show help message
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) > 0 && args[0] == "help" {
		fmt.Println(strings.TrimSpace(help))
		return nil
	}

	fs := flag.NewFlagSet("nvim-ide-mcp", flag.ContinueOnError)
	var (
		workspaceDir = fs.String("workspace", "", "workspace root")
		configPath   = fs.String("config", "", "YAML configuration file")
		listen       = fs.String("listen", "", "SSE listen address")
		editorBin    = fs.String("editor-bin", "", "editor binary")
		initFile     = fs.String("init-file", "", "editor init file")
		logLevel     = fs.String("log-level", "", "log level")
		logFile      = fs.String("log-file", "", "log file")
	)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, strings.TrimSpace(help))
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	// Flags override the file.
	if *workspaceDir != "" {
		cfg.Workspace = *workspaceDir
	}
	if *editorBin != "" {
		cfg.Editor.Bin = *editorBin
	}
	if *initFile != "" {
		cfg.Editor.InitFile = *initFile
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logPath := cfg.Log.File
	if logPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		logPath = filepath.Join(home, ".nvim-ide-mcp", "nvim-ide-mcp.log")
	}
	logger, logCloser, err := log.NewFile(logPath, log.ParseLevel(cfg.Log.Level))
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logCloser.Close()

	resolver, err := workspace.NewResolver(cfg.Workspace)
	if err != nil {
		return fmt.Errorf("resolve workspace: %w", err)
	}
	logger.Infof("main: workspace %s", resolver.Root())

	ed := editor.New(editor.Options{
		Bin:            cfg.Editor.Bin,
		InitFile:       cfg.Editor.InitFile,
		ExtraArgs:      cfg.Editor.ExtraArgs,
		SocketDir:      cfg.Editor.SocketDir,
		StartupTimeout: time.Duration(cfg.Editor.StartupTimeout),
		ReadyTimeout:   time.Duration(cfg.Editor.ReadyTimeout),
		LSPPoll:        cfg.Poll.Options("language server readiness"),
		Workspace:      resolver,
		Bridge: &bridge.Config{
			ConnectTimeout: time.Duration(cfg.Bridge.ConnectTimeout),
			RequestTimeout: time.Duration(cfg.Bridge.RequestTimeout),
			WriteTimeout:   time.Duration(cfg.Bridge.WriteTimeout),
			OutgoingBuffer: cfg.Bridge.OutgoingBuffer,
		},
		Logger: logger,
	})
	if err := ed.Start(context.Background()); err != nil {
		return fmt.Errorf("start editor: %w", err)
	}

	mgr := debug.NewManager(ed, debug.Options{
		Logger:    logger,
		Resolver:  resolver,
		StartPoll: cfg.Poll.Options("debug adapter startup"),
	})
	svc := intel.NewService(ed, resolver, logger)

	s := server.NewMCPServer(
		"Neovim IDE MCP",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithPromptCapabilities(true),
		server.WithResourceCapabilities(true, true),
	)
	tools.RegisterTools(s, svc, mgr, tools.Options{Logger: logger, Resolver: resolver})

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mgr.Shutdown(ctx)
		if err := ed.Stop(ctx); err != nil {
			logger.Warnf("main: editor stop: %v", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("main: received %s, shutting down", sig)
		shutdown()
		logCloser.Close()
		os.Exit(0)
	}()

	if *listen == "" {
		logger.Infof("main: serving MCP on stdio")
		err = server.ServeStdio(s)
	} else {
		logger.Infof("main: serving MCP over SSE on %s", *listen)
		err = server.NewSSEServer(s, server.WithBaseURL("http://"+*listen)).Start(*listen)
	}
	shutdown()
	if err != nil {
		logger.Errorf("main: server stopped: %v", err)
		return err
	}
	logger.Infof("main: server stopped")
	return nil
}
