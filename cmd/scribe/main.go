// Scribe is a prompt-iteration workbench for meeting summaries.
//
// It classifies meeting transcripts into a scene taxonomy, generates
// summaries via LLM providers, scores them against references, and
// tracks prompt versions and evaluation history so that prompts can be
// improved methodically. Configuration is loaded from a single YAML
// file discovered automatically (see [config.DefaultSearchPaths]);
// provider API keys come from the environment or a .env file.
//
// Usage:
//
//	scribe init [dir]           Initialize a working directory with defaults
//	scribe detect -f <file>     Classify a transcript into a meeting scene
//	scribe generate -f <file>   Generate a summary for a transcript
//	scribe evaluate ...         Score a generated summary against a reference
//	scribe optimize ...         Ask a model to improve a prompt
//	scribe scenes               List the scene taxonomy
//	scribe version <sub>        Manage prompt versions (list, save, download)
//	scribe insight              Aggregate command and evaluation history
//	scribe serve                Start the REST API server
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/wrenware/scribe/internal/buildinfo"
	"github.com/wrenware/scribe/internal/cmdlog"
	"github.com/wrenware/scribe/internal/config"
	"github.com/wrenware/scribe/internal/llm"
	"github.com/wrenware/scribe/internal/promptstore"
	"github.com/wrenware/scribe/internal/storage"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the scribe command. All OS-level
// dependencies are injected as parameters: ctx controls the process
// lifetime, stdout receives command output, stderr receives logs, and
// args is os.Args[1:]. run returns nil on success; the caller prints
// the error and exits non-zero.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	// Provider credentials may live in a .env file next to the working
	// directory. Absence is fine; the environment wins on conflicts.
	_ = godotenv.Load()

	// Parse arguments by hand. The flag package relies on package-level
	// globals (flag.CommandLine), which makes it impossible to call
	// run() concurrently from tests. The argument surface is small
	// enough that manual parsing is clearer than a CLI framework.
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-version" || args[i] == "--version":
			return printVersion(stdout, outputFmt)
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "":
		return printUsage(stdout)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "detect", "generate", "evaluate", "optimize", "scenes", "version", "insight", "serve":
		// Everything else needs config and the stores built from it.
	default:
		return fmt.Errorf("unknown command: %s", command)
	}

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnvOverrides()

	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		// Already validated by config.Validate, so the error path is
		// unreachable in practice.
		level, _ = config.ParseLogLevel(cfg.LogLevel)
	}
	logger := newLogger(stderr, level, cfg.LogFormat)
	logger.Debug("config loaded", "path", cfgPath, "data_dir", cfg.DataDir)

	a, err := newApp(cfg, logger, stdout, outputFmt)
	if err != nil {
		return err
	}

	// Every verb invocation opens exactly one command-log entry and
	// finalizes it on the way out, success or failure.
	rec := a.logs.Begin(command, cmdArgs, map[string]any{"output": outputFmt})
	data, err := a.dispatch(ctx, command, cmdArgs)
	if err != nil {
		_ = rec.End(false, nil, err.Error())
		return err
	}
	_ = rec.End(true, data, "")
	return nil
}

// app bundles the stores and services every verb works against.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	logs    *cmdlog.Store
	prompts *promptstore.Store
	files   *storage.Store
	svc     llm.Service
	stdout  io.Writer
	output  string // "text" or "json"
}

func newApp(cfg *config.Config, logger *slog.Logger, stdout io.Writer, outputFmt string) (*app, error) {
	logs, err := cmdlog.NewStore(cfg.LogsDir(), logger)
	if err != nil {
		return nil, fmt.Errorf("open command log: %w", err)
	}
	prompts, err := promptstore.NewStore(cfg.PromptsDir(), logger)
	if err != nil {
		return nil, fmt.Errorf("open prompt store: %w", err)
	}
	files, err := storage.NewStore(cfg.DataDir, logger,
		storage.WithLockTimeout(cfg.Storage.LockTimeout()),
		storage.WithLockPoll(cfg.Storage.LockPoll()),
	)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	gateway := llm.NewGateway(logger,
		llm.WithGenerateTimeout(cfg.LLM.GenerateTimeout()),
		llm.WithEvaluateTimeout(cfg.LLM.EvaluateTimeout()),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		logs:    logs,
		prompts: prompts,
		files:   files,
		svc:     gateway,
		stdout:  stdout,
		output:  outputFmt,
	}, nil
}

// dispatch routes a verb to its implementation and returns the summary
// data recorded in the command log.
func (a *app) dispatch(ctx context.Context, command string, args []string) (map[string]any, error) {
	switch command {
	case "detect":
		return a.runDetect(args)
	case "generate":
		return a.runGenerate(ctx, args)
	case "evaluate":
		return a.runEvaluate(ctx, args)
	case "optimize":
		return a.runOptimize(ctx, args)
	case "scenes":
		return a.runScenes()
	case "version":
		return a.runVersion(args)
	case "insight":
		return a.runInsight(args)
	case "serve":
		return a.runServe(ctx)
	default:
		return nil, fmt.Errorf("unknown command: %s", command)
	}
}

// printVersion prints build metadata in the requested output format.
func printVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w. It is called when
// scribe is invoked with no arguments, or with -h / --help.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Scribe - Meeting Summary Prompt Workbench")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: scribe [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  init [dir]      Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  detect          Classify a transcript into a meeting scene")
	fmt.Fprintln(w, "  generate        Generate a summary for a transcript")
	fmt.Fprintln(w, "  evaluate        Score a generated summary against a reference")
	fmt.Fprintln(w, "  optimize        Ask a model to improve a prompt from its scorecard")
	fmt.Fprintln(w, "  scenes          List the scene taxonomy")
	fmt.Fprintln(w, "  version         Manage prompt versions: list, save, download")
	fmt.Fprintln(w, "  insight         Aggregate command and evaluation history")
	fmt.Fprintln(w, "  serve           Start the REST API server")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w, "  -version          Show version and build information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Command flags:")
	fmt.Fprintln(w, "  detect    -f <file> | <text>")
	fmt.Fprintln(w, "  generate  -f <file> [-scene k] [-prompt-version vN] [-model m] [-out path]")
	fmt.Fprintln(w, "  evaluate  -generated <file> -reference <file> [-scene k] [-prompt-id id] [-model m]")
	fmt.Fprintln(w, "  optimize  -eval <file> [-scene k] [-prompt-version vN] [-prompt-file f] [-model m] [-save]")
	fmt.Fprintln(w, "  version   list <scene> | save <scene> -f <file> [-note text] | download <scene> [vN] -out <path>")
	fmt.Fprintln(w, "  insight   [-days n]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Models: qwen-max (default), deepseek-chat, doubao-pro")
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/scribe/config.yaml, /etc/scribe/config.yaml")
	return nil
}

// newLogger creates a structured logger that writes to w at the given
// level and format. Format must be "text" or "json"; any other value
// defaults to text. Logs go to stderr so that -o json output on stdout
// stays machine-readable.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// loadConfig locates and loads the config file.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
