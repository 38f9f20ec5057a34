package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Thiht/transactor"
	txStdLib "github.com/Thiht/transactor/stdlib"
	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/tomodoro/tomo"
	"github.com/tomodoro/tomo/sqlite"
)

// Exit codes are part of the CLI contract and must stay stable.
const (
	exitOK                = 0
	exitUnexpected        = 1
	exitInvalidTransition = 2
	exitStorageFailure    = 3
	exitExportFailure     = 4
	exitConfiguration     = 5
)

// storeOpTimeout bounds every store call so a wedged database file
// cannot hang a command or the tick loop.
const storeOpTimeout = 10 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	log.SetLevel(log.WarnLevel)

	verbose := false
	rest := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == "--verbose" || arg == "-v" {
			verbose = true
			continue
		}
		rest = append(rest, arg)
	}

	cfg, err := tomo.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "tomo:", err)
		return exitCode(err)
	}
	if cfg.Debug || verbose {
		log.SetLevel(log.DebugLevel)
		log.SetReportCaller(true)
	}

	// Bare `tomo` and `tomo --work 50` both mean start.
	name, cmdArgs := "start", rest
	if len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
		name, cmdArgs = rest[0], rest[1:]
	}

	app := &app{cfg: cfg}
	switch name {
	case "start":
		err = app.cmdStart(cmdArgs)
	case "pause":
		err = app.cmdPause(cmdArgs)
	case "resume":
		err = app.cmdResume(cmdArgs)
	case "reset":
		err = app.cmdReset(cmdArgs)
	case "stats":
		err = app.cmdStats(cmdArgs)
	case "export":
		err = app.cmdExport(cmdArgs)
	case "import":
		err = app.cmdImport(cmdArgs)
	case "config":
		err = app.cmdConfig(cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "tomo: unknown command %q\n\n", name)
		printUsage()
		return exitUnexpected
	}
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(os.Stderr, "tomo:", err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, tomo.ErrInvalidTransition):
		return exitInvalidTransition
	case errors.Is(err, tomo.ErrStorage):
		return exitStorageFailure
	case errors.Is(err, tomo.ErrExport):
		return exitExportFailure
	case errors.Is(err, tomo.ErrConfiguration):
		return exitConfiguration
	}
	return exitUnexpected
}

// app carries the per-invocation wiring shared by every command.
type app struct {
	cfg tomo.Config
}

// withStore opens the database, migrates it, and hands the repo and
// transactor to fn, closing everything on the way out.
func (a *app) withStore(fn func(repo tomo.SessionRepo, tx transactor.Transactor) error) error {
	db, err := sqlite.Open(a.cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck
	if err := sqlite.Migrate(db); err != nil {
		return err
	}
	tx, dbGetter := txStdLib.NewTransactor(db, txStdLib.NestedTransactionsSavepoints)
	return fn(sqlite.NewSessionRepo(dbGetter, *log.Default()), tx)
}

func storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeOpTimeout)
}

func printUsage() {
	fmt.Fprint(os.Stderr, usage)
}

const usage = `tomo - a pomodoro timer with durable history

Usage:
  tomo [start] [--work <dur>] [--short-break <dur>] [--long-break <dur>]
               [--intervals <n>] [--detach] [--no-notify]
  tomo pause | resume | reset
  tomo stats  [--range <window>]
  tomo export [--range <window>] [--out <path>] [--format json|cbor]
  tomo import <path>
  tomo config [<key> [<value>]]

Windows:    today, week, month, all, or a lookback such as 7d or 36h.
Durations:  Go syntax ("25m", "1h30m") or bare minutes ("25").
Config keys: work, short-break, long-break, intervals.

Environment:
  TOMO_DB_PATH      database file (default: user data dir)
  TOMO_CONFIG_PATH  config file (default: user config dir)
  TOMO_NO_NOTIFY    disable desktop notifications
  TOMO_DEBUG        debug logging (same as --verbose)
`
