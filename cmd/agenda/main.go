package main

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hpungsan/agenda/internal/config"
	"github.com/hpungsan/agenda/internal/db"
	"github.com/hpungsan/agenda/internal/logging"
	"github.com/hpungsan/agenda/internal/mcp"
	"github.com/hpungsan/agenda/internal/ops"
	"github.com/hpungsan/agenda/internal/timeutil"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"category": true, "event": true,
	"calendar": true, "upcoming": true, "heatmap": true, "priorities": true,
	"suggest": true, "export": true, "import": true,
	"serve": true, "remind": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func printBanner() {
	fmt.Println(`
    __ _  __ _  ___ _ __   __| | __ _
   / _' |/ _' |/ _ \ '_ \ / _' |/ _' |
  | (_| | (_| |  __/ | | | (_| | (_| |
   \__,_|\__, |\___|_| |_|\__,_|\__,_|
         |___/

  Weekly, monthly and yearly activity planner

  Usage: agenda <command> [options]
         agenda serve        (web UI)
         agenda --help

  MCP server mode requires piped input.`)
}

// applyEnv overlays secrets that are better kept out of config files.
// The env files (default: .env in the working directory) are loaded first;
// a missing file is fine, an unreadable one is logged.
func applyEnv(cfg *config.Config, log zerolog.Logger, envFiles ...string) {
	if err := godotenv.Load(envFiles...); err != nil && !stderrors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("ignoring env file")
	}

	if v := os.Getenv("AGENDA_TELEGRAM_TOKEN"); v != "" {
		cfg.TelegramToken = v
	}
	if v := os.Getenv("AGENDA_TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			log.Warn().Str("value", v).Msg("AGENDA_TELEGRAM_CHAT_ID is not an integer, ignoring it")
		} else {
			cfg.TelegramChatID = id
		}
	}
	if v := os.Getenv("AGENDA_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("AGENDA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ops.BaseDirName)

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	cwd, _ := os.Getwd()
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyEnv(cfg, logging.New(os.Stderr, cfg.LogLevel))
	db.ConfigurePool(database, cfg)

	clock := timeutil.SystemClock{}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(database, cfg, clock)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'agenda --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(database, cfg, clock, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
