package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Thiht/transactor"
	"github.com/spf13/pflag"

	"github.com/tomodoro/tomo"
	"github.com/tomodoro/tomo/analytics"
	"github.com/tomodoro/tomo/export"
	"github.com/tomodoro/tomo/timer"
)

func (a *app) cmdPause(args []string) error  { return a.steer(args, "pause", timer.Pause) }
func (a *app) cmdResume(args []string) error { return a.steer(args, "resume", timer.Resume) }
func (a *app) cmdReset(args []string) error  { return a.steer(args, "reset", timer.Reset) }

// steer loads the persisted timer, applies one command against its
// caught-up state, and prints the resulting snapshot. This is how a
// detached timer is driven from other terminals.
func (a *app) steer(args []string, name string, cmd timer.Command) error {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := tomo.LoadTimerConfig(a.cfg.TimerConfigPath)
	if err != nil {
		return err
	}

	return a.withStore(func(repo tomo.SessionRepo, tx transactor.Transactor) error {
		ctx, cancel := storeCtx()
		defer cancel()

		ctrl, _, err := loadController(ctx, repo, tx, cfg, nil)
		if err != nil {
			return err
		}
		_, recs, err := ctrl.Apply(ctx, cmd)
		if err != nil {
			return err
		}
		if rec := abandonedRecord(recs); rec != nil {
			fmt.Printf("Logged abandoned work session (%s elapsed).\n", formatDuration(rec.ActualDuration))
		}
		fmt.Println(renderSnapshot(ctrl.Snapshot()))
		return nil
	})
}

func (a *app) cmdStats(args []string) error {
	fs := pflag.NewFlagSet("stats", pflag.ContinueOnError)
	rangeFlag := fs.String("range", "week", "time window")
	if err := fs.Parse(args); err != nil {
		return err
	}
	from, to, err := parseWindow(*rangeFlag, time.Now())
	if err != nil {
		return err
	}

	return a.withStore(func(repo tomo.SessionRepo, tx transactor.Transactor) error {
		ctx, cancel := storeCtx()
		defer cancel()

		eng := analytics.NewEngine(repo, nil)
		sum, err := eng.Summarize(ctx, from, to)
		if err != nil {
			return err
		}
		top, err := eng.TopDays(ctx, from, to, topDaysCount)
		if err != nil {
			return err
		}
		total, err := repo.CountSessions(ctx)
		if err != nil {
			return err
		}
		fmt.Print(renderStats(*rangeFlag, sum, top, total))
		return nil
	})
}

func (a *app) cmdExport(args []string) error {
	fs := pflag.NewFlagSet("export", pflag.ContinueOnError)
	var (
		rangeFlag  = fs.String("range", "all", "time window")
		outFlag    = fs.String("out", "", "output path (default stdout; .zst compresses)")
		formatFlag = fs.String("format", "json", "interchange format: json or cbor")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	from, to, err := parseWindow(*rangeFlag, time.Now())
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(*formatFlag)
	if err != nil {
		return err
	}

	return a.withStore(func(repo tomo.SessionRepo, tx transactor.Transactor) error {
		ctx, cancel := storeCtx()
		defer cancel()

		cursor, err := repo.QuerySessions(ctx, tomo.QueryFilter{From: from, To: to})
		if err != nil {
			return err
		}

		opts := export.Options{Format: format}
		var sink io.Writer = os.Stdout
		var f *os.File
		if *outFlag != "" {
			opts.Compress = strings.HasSuffix(*outFlag, ".zst")
			f, err = os.Create(*outFlag)
			if err != nil {
				cursor.Close() //nolint:errcheck
				return fmt.Errorf("%w: create %s: %v", tomo.ErrExport, *outFlag, err)
			}
			sink = f
		}

		n, err := export.Export(sink, cursor, opts)
		if err != nil {
			if f != nil {
				f.Close() //nolint:errcheck
			}
			return err
		}
		if f != nil {
			if err := f.Close(); err != nil {
				return fmt.Errorf("%w: close %s: %v", tomo.ErrExport, *outFlag, err)
			}
			fmt.Printf("Exported %d sessions to %s\n", n, *outFlag)
		}
		return nil
	})
}

func (a *app) cmdImport(args []string) error {
	fs := pflag.NewFlagSet("import", pflag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: import takes exactly one file argument", tomo.ErrConfiguration)
	}
	path := fs.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", tomo.ErrExport, path, err)
	}
	defer f.Close() //nolint:errcheck
	recs, err := export.Import(f)
	if err != nil {
		return err
	}

	return a.withStore(func(repo tomo.SessionRepo, tx transactor.Transactor) error {
		ctx, cancel := storeCtx()
		defer cancel()

		restored := 0
		err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
			for _, rec := range recs {
				ok, err := repo.RestoreSession(ctx, rec)
				if err != nil {
					return err
				}
				if ok {
					restored++
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d sessions (%d already present).\n", restored, len(recs)-restored)
		return nil
	})
}

var configKeys = []string{"work", "short-break", "long-break", "intervals"}

func (a *app) cmdConfig(args []string) error {
	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := tomo.LoadTimerConfig(a.cfg.TimerConfigPath)
	if err != nil {
		return err
	}

	switch fs.NArg() {
	case 0:
		for _, key := range configKeys {
			value, _ := configValue(cfg, key)
			fmt.Printf("%-12s %s\n", key, value)
		}
		return nil
	case 1:
		value, err := configValue(cfg, fs.Arg(0))
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	case 2:
		if err := setConfigValue(&cfg, fs.Arg(0), fs.Arg(1)); err != nil {
			return err
		}
		if err := tomo.SaveTimerConfig(a.cfg.TimerConfigPath, cfg); err != nil {
			return err
		}
		value, _ := configValue(cfg, fs.Arg(0))
		fmt.Printf("%s = %s\n", fs.Arg(0), value)
		return nil
	default:
		return fmt.Errorf("%w: config takes at most a key and a value", tomo.ErrConfiguration)
	}
}

func configValue(cfg tomo.TimerConfig, key string) (string, error) {
	switch key {
	case "work":
		return cfg.Work.String(), nil
	case "short-break":
		return cfg.ShortBreak.String(), nil
	case "long-break":
		return cfg.LongBreak.String(), nil
	case "intervals":
		return strconv.Itoa(cfg.Intervals), nil
	}
	return "", fmt.Errorf("%w: unknown config key %q (have: %s)",
		tomo.ErrConfiguration, key, strings.Join(configKeys, ", "))
}

func setConfigValue(cfg *tomo.TimerConfig, key, value string) error {
	switch key {
	case "intervals":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: intervals must be an integer, got %q", tomo.ErrConfiguration, value)
		}
		cfg.Intervals = n
		return nil
	case "work", "short-break", "long-break":
		d, err := tomo.ParseDuration(value)
		if err != nil {
			return err
		}
		switch key {
		case "work":
			cfg.Work = d
		case "short-break":
			cfg.ShortBreak = d
		case "long-break":
			cfg.LongBreak = d
		}
		return nil
	}
	return fmt.Errorf("%w: unknown config key %q (have: %s)",
		tomo.ErrConfiguration, key, strings.Join(configKeys, ", "))
}
