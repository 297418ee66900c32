package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/agenda/internal/config"
	"github.com/hpungsan/agenda/internal/db"
	"github.com/hpungsan/agenda/internal/errors"
	"github.com/hpungsan/agenda/internal/logging"
	"github.com/hpungsan/agenda/internal/ops"
	"github.com/hpungsan/agenda/internal/planner"
	"github.com/hpungsan/agenda/internal/reminder"
	"github.com/hpungsan/agenda/internal/timeutil"
	"github.com/hpungsan/agenda/internal/web"
)

// stdout is where command results are written.
var stdout io.Writer = os.Stdout

// newCLIApp creates the CLI application with all commands.
func newCLIApp(database *sql.DB, cfg *config.Config, clock timeutil.Clock) *cli.App {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	app := &cli.App{
		Name:    "agenda",
		Usage:   "Weekly, monthly and yearly activity planner",
		Version: Version,
		Commands: []*cli.Command{
			categoryCmd(database, cfg),
			eventCmd(database, cfg),
			calendarCmd(database, cfg, clock),
			upcomingCmd(database, cfg, clock),
			heatmapCmd(database, cfg, clock),
			prioritiesCmd(database, cfg, clock),
			suggestCmd(database, cfg, clock),
			exportCmd(database, cfg, clock),
			importCmd(database, cfg),
			serveCmd(database, cfg, clock),
			remindCmd(database, cfg, clock),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func userFlag() cli.Flag {
	return &cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User key (default from config)"}
}

// categoryCmd groups the category subcommands.
func categoryCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "category",
		Usage: "Manage categories",
		Subcommands: []*cli.Command{
			{
				Name:      "save",
				Usage:     "Create a category or change its color",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "color", Aliases: []string{"c"}, Usage: "Color as #RRGGBB"},
				},
				Action: func(c *cli.Context) error {
					out, err := ops.SaveCategory(c.Context, database, cfg, ops.SaveCategoryInput{
						User:  c.String("user"),
						Name:  strings.Join(c.Args().Slice(), " "),
						Color: c.String("color"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(out)
				},
			},
			{
				Name:  "list",
				Usage: "List categories",
				Flags: []cli.Flag{userFlag()},
				Action: func(c *cli.Context) error {
					out, err := ops.ListCategories(c.Context, database, cfg, ops.ListCategoriesInput{User: c.String("user")})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(out)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a category (its events become uncategorized)",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{userFlag()},
				Action: func(c *cli.Context) error {
					out, err := ops.DeleteCategory(c.Context, database, cfg, ops.DeleteCategoryInput{
						User: c.String("user"),
						ID:   c.Args().First(),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(out)
				},
			},
		},
	}
}

// eventCmd groups the event subcommands.
func eventCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "event",
		Usage: "Manage event definitions",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a one-off (--date) or weekly (--days --from --until) event",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true, Usage: "Event title"},
					&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Category ID"},
					&cli.StringFlag{Name: "start", Required: true, Usage: "Start time HH:MM"},
					&cli.StringFlag{Name: "end", Required: true, Usage: "End time HH:MM"},
					&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Date YYYY-MM-DD (one-off)"},
					&cli.StringFlag{Name: "days", Usage: "Weekdays, e.g. 0,2,4 or mon,wed,fri (weekly)"},
					&cli.StringFlag{Name: "from", Usage: "First day YYYY-MM-DD (weekly)"},
					&cli.StringFlag{Name: "until", Usage: "Last day YYYY-MM-DD (weekly)"},
				},
				Action: func(c *cli.Context) error {
					input := ops.AddEventInput{
						User:       c.String("user"),
						Title:      c.String("title"),
						CategoryID: optionalString(c, "category"),
						Start:      c.String("start"),
						End:        c.String("end"),
						Date:       c.String("date"),
						From:       c.String("from"),
						Until:      c.String("until"),
					}
					if c.IsSet("days") {
						days, err := parseDays(c.String("days"))
						if err != nil {
							return outputError(err)
						}
						input.Kind = string(planner.KindRecurring)
						input.Days = days
					}

					out, err := ops.AddEvent(c.Context, database, cfg, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(out)
				},
			},
			{
				Name:  "list",
				Usage: "List event definitions, optionally those active in a date range",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "from", Usage: "Range start YYYY-MM-DD"},
					&cli.StringFlag{Name: "to", Usage: "Range end YYYY-MM-DD"},
				},
				Action: func(c *cli.Context) error {
					out, err := ops.ListEvents(c.Context, database, cfg, ops.ListEventsInput{
						User: c.String("user"),
						From: c.String("from"),
						To:   c.String("to"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(out)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete an event definition",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{userFlag()},
				Action: func(c *cli.Context) error {
					out, err := ops.DeleteEvent(c.Context, database, cfg, ops.DeleteEventInput{
						User: c.String("user"),
						ID:   c.Args().First(),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(out)
				},
			},
		},
	}
}

// calendarCmd creates the calendar command.
func calendarCmd(database *sql.DB, cfg *config.Config, clock timeutil.Clock) *cli.Command {
	return &cli.Command{
		Name:  "calendar",
		Usage: "Show the occurrences of a day, week, month, year or date range",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{Name: "view", Value: ops.ViewWeek, Usage: "day|week|month|year|range"},
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Anchor date YYYY-MM-DD (default: today)"},
			&cli.StringFlag{Name: "from", Usage: "Range start (range view)"},
			&cli.StringFlag{Name: "to", Usage: "Range end (range view)"},
		},
		Action: func(c *cli.Context) error {
			out, err := ops.Calendar(c.Context, database, cfg, clock, ops.CalendarInput{
				User: c.String("user"),
				View: c.String("view"),
				Date: c.String("date"),
				From: c.String("from"),
				To:   c.String("to"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out)
		},
	}
}

// upcomingCmd creates the upcoming command.
func upcomingCmd(database *sql.DB, cfg *config.Config, clock timeutil.Clock) *cli.Command {
	return &cli.Command{
		Name:  "upcoming",
		Usage: "List what is still ahead this week",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Any day of the week (default: today)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum items (default from config)"},
		},
		Action: func(c *cli.Context) error {
			out, err := ops.Upcoming(c.Context, database, cfg, clock, ops.UpcomingInput{
				User:  c.String("user"),
				Date:  c.String("date"),
				Limit: c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out)
		},
	}
}

// heatmapCmd creates the heatmap command.
func heatmapCmd(database *sql.DB, cfg *config.Config, clock timeutil.Clock) *cli.Command {
	return &cli.Command{
		Name:  "heatmap",
		Usage: "Per-day occurrence counts of a year",
		Flags: []cli.Flag{
			userFlag(),
			&cli.IntFlag{Name: "year", Aliases: []string{"y"}, Usage: "Year (default: current)"},
		},
		Action: func(c *cli.Context) error {
			out, err := ops.Heatmap(c.Context, database, cfg, clock, ops.HeatmapInput{
				User: c.String("user"),
				Year: c.Int("year"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out)
		},
	}
}

// prioritiesCmd groups the weekly priorities subcommands.
func prioritiesCmd(database *sql.DB, cfg *config.Config, clock timeutil.Clock) *cli.Command {
	return &cli.Command{
		Name:  "priorities",
		Usage: "Weekly goals and top three priorities",
		Subcommands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Show a week's priorities",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Any day of the week (default: today)"},
				},
				Action: func(c *cli.Context) error {
					out, err := ops.GetPriorities(c.Context, database, cfg, clock, ops.GetPrioritiesInput{
						User: c.String("user"),
						Date: c.String("date"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(out)
				},
			},
			{
				Name:  "save",
				Usage: "Save a week's priorities (goals are read from stdin when piped)",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Any day of the week (default: today)"},
					&cli.StringSliceFlag{Name: "item", Aliases: []string{"p"}, Usage: "Priority text, up to 3 (prefix with + when done)"},
				},
				Action: func(c *cli.Context) error {
					input := ops.SavePrioritiesInput{
						User:  c.String("user"),
						Date:  c.String("date"),
						Items: parseItems(c.StringSlice("item")),
					}
					if stdinHasData() {
						goals, err := readStdin()
						if err != nil {
							return outputError(errors.NewInternal(err))
						}
						input.Goals = goals
					}

					out, err := ops.SavePriorities(c.Context, database, cfg, clock, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(out)
				},
			},
		},
	}
}

// suggestCmd creates the suggest command.
func suggestCmd(database *sql.DB, cfg *config.Config, clock timeutil.Clock) *cli.Command {
	return &cli.Command{
		Name:  "suggest",
		Usage: "Find free slots in a week and optionally book them",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Any day of the week (default: today)"},
			&cli.StringFlag{Name: "days", Usage: "Preferred weekdays, e.g. 0,2 or tue,thu"},
			&cli.IntFlag{Name: "duration", Aliases: []string{"m"}, Usage: "Minutes (default from config)"},
			&cli.StringFlag{Name: "from", Usage: "Window start HH:MM"},
			&cli.StringFlag{Name: "to", Usage: "Window end HH:MM"},
			&cli.BoolFlag{Name: "ignore-existing", Usage: "Treat every day as free"},
			&cli.BoolFlag{Name: "keep-past", Usage: "Do not skip the part of today already gone"},
			&cli.BoolFlag{Name: "all", Usage: "Return every matching day's slot"},
			&cli.BoolFlag{Name: "book", Usage: "Store the slots as events"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Title of booked events"},
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Usage: "Category ID of booked events"},
		},
		Action: func(c *cli.Context) error {
			days, err := parseDays(c.String("days"))
			if err != nil {
				return outputError(err)
			}

			out, err := ops.Suggest(c.Context, database, cfg, clock, ops.SuggestInput{
				User:            c.String("user"),
				Date:            c.String("date"),
				Days:            days,
				DurationMinutes: c.Int("duration"),
				WindowStart:     c.String("from"),
				WindowEnd:       c.String("to"),
				IgnoreExisting:  c.Bool("ignore-existing"),
				KeepPast:        c.Bool("keep-past"),
				All:             c.Bool("all"),
				Book:            c.Bool("book"),
				Title:           c.String("title"),
				CategoryID:      optionalString(c, "category"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(database *sql.DB, cfg *config.Config, clock timeutil.Clock) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export the planner to a JSONL, ICS or XLSX file",
		Flags: []cli.Flag{
			userFlag(),
			&cli.BoolFlag{Name: "all-users", Usage: "Export every user (jsonl only)"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "jsonl|ics|xlsx (default: from path, else jsonl)"},
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.agenda/exports/<user>-<timestamp>.<format>)"},
			&cli.StringFlag{Name: "from", Usage: "Occurrence range start (xlsx)"},
			&cli.StringFlag{Name: "to", Usage: "Occurrence range end (xlsx)"},
		},
		Action: func(c *cli.Context) error {
			out, err := ops.Export(c.Context, database, cfg, clock, ops.ExportInput{
				User:     c.String("user"),
				AllUsers: c.Bool("all-users"),
				Format:   c.String("format"),
				Path:     c.String("path"),
				From:     c.String("from"),
				To:       c.String("to"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out)
		},
	}
}

// importCmd creates the import command.
func importCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import a JSONL export or an ICS calendar",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace"},
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "Owner of ICS events (ignored for jsonl)"},
		},
		Action: func(c *cli.Context) error {
			out, err := ops.Import(c.Context, database, cfg, ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
				User: c.String("user"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out)
		},
	}
}

// serveCmd starts the web UI.
func serveCmd(database *sql.DB, cfg *config.Config, clock timeutil.Clock) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8420, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			log := logging.New(os.Stderr, cfg.LogLevel)
			srv := web.NewServer(database, cfg, clock, log, Version, c.String("bind"), c.Int("port"))
			if err := web.Run(srv, log); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// remindCmd runs the reminder daemon until interrupted.
func remindCmd(database *sql.DB, cfg *config.Config, clock timeutil.Clock) *cli.Command {
	return &cli.Command{
		Name:  "remind",
		Usage: "Send reminders shortly before occurrences start",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "once", Usage: "Run a single tick and exit"},
		},
		Action: func(c *cli.Context) error {
			log := logging.New(os.Stderr, cfg.LogLevel)

			var notifier reminder.Notifier = reminder.LogNotifier{Log: log}
			if cfg.TelegramToken != "" {
				tn, err := reminder.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, log)
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				notifier = tn
			}

			var store reminder.SentStore
			if cfg.RedisAddr != "" {
				rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
				defer rdb.Close()
				if err := rdb.Ping(c.Context).Err(); err != nil {
					return cli.Exit(fmt.Sprintf("redis %s: %v", cfg.RedisAddr, err), 1)
				}
				store = reminder.NewRedisStore(rdb)
			}

			svc := reminder.New(database, cfg, clock, notifier, store, log)
			if c.Bool("once") {
				n, err := svc.Tick(c.Context)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(map[string]int{"sent": n})
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := svc.Run(ctx); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	aErr := errors.As(err)
	return cli.Exit(fmt.Sprintf("[%s] %s", aErr.Code, aErr.Message), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// optionalString returns a pointer to the flag value when it was given.
func optionalString(c *cli.Context, name string) *string {
	if !c.IsSet(name) {
		return nil
	}
	v := c.String(name)
	return &v
}

// parseDays parses "0,2,4" or "mon,wed,fri" into weekday indices.
func parseDays(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	set, err := planner.ParseDaySet(s)
	if err != nil {
		return nil, errors.NewInvalidRequest("days: " + err.Error())
	}
	return set.Days(), nil
}

// parseItems turns "+text" into a done priority and "text" into an open one.
func parseItems(values []string) []db.PriorityItem {
	items := make([]db.PriorityItem, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		done := strings.HasPrefix(v, "+")
		items = append(items, db.PriorityItem{
			Text: strings.TrimSpace(strings.TrimPrefix(v, "+")),
			Done: done,
		})
	}
	return items
}
