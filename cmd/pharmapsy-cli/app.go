package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	authservice "github.com/pharmapsy/pharmapsy-backend/internal/auth/service"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/app"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/handler"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/reconcile"
	"github.com/pharmapsy/pharmapsy-backend/pkg/config"
	"github.com/pharmapsy/pharmapsy-backend/pkg/errors"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
)

const serviceName = "pharmapsy-cli"

func periodFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "year", Usage: "Four digit year, current year by default"},
		&cli.StringSliceFlag{Name: "months", Usage: "Month names such as MARS,AVRIL"},
		&cli.StringFlag{Name: "season", Usage: "Quarter 1 to 4, used when no months are given"},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  serviceName,
		Usage: "Operate the PharmaPsy psychotropic ledger",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Apply pending database migrations",
				Action: withApp(runMigrate),
			},
			{
				Name:   "bootstrap",
				Usage:  "Create the initial stock document of the current year when missing",
				Action: withApp(runBootstrap),
			},
			{
				Name:  "export",
				Usage: "Export the database as a JSON backup",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file, the backup directory by default"},
				},
				Action: withApp(runExport),
			},
			{
				Name:      "import",
				Usage:     "Replace the database with a JSON backup",
				ArgsUsage: "<file>",
				Action:    withApp(runImport),
			},
			{
				Name:  "report",
				Usage: "Compute stock reports",
				Subcommands: []*cli.Command{
					{
						Name:  "summary",
						Usage: "Print the stock table of a period",
						Flags: append(periodFlags(),
							&cli.StringFlag{Name: "search", Usage: "Medication name filter"},
							&cli.StringFlag{Name: "sort", Value: "name", Usage: "name or stock"},
							&cli.StringFlag{Name: "dir", Value: "asc", Usage: "asc or desc"},
						),
						Action: withApp(runSummary),
					},
					{
						Name:  "workbook",
						Usage: "Write the period workbook as xlsx",
						Flags: append(periodFlags(),
							&cli.StringFlag{Name: "mode", Value: "active", Usage: "active or all"},
							&cli.StringFlag{Name: "locale", Value: "fr", Usage: "fr, ar or en"},
							&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Required: true, Usage: "Output xlsx file"},
						),
						Action: withApp(runWorkbook),
					},
				},
			},
			{
				Name:   "request-backup",
				Usage:  "Ask the running API to write a backup through the message broker",
				Action: withApp(runRequestBackup),
			},
			{
				Name:  "hash-password",
				Usage: "Print the bcrypt hash to store in PHARMAPSY_AUTH_PASSWORD_HASH",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"PHARMAPSY_PASSWORD"}},
				},
				Action: runHashPassword,
			},
		},
	}
}

// withApp loads configuration and opens the application around a command
func withApp(fn func(c *cli.Context, a *app.App) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.LoadWithValidation(serviceName)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		log := logger.NewWithWriter(serviceName, c.App.ErrWriter)
		a, err := app.Open(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		return fn(c, a)
	}
}

func runMigrate(c *cli.Context, a *app.App) error {
	n, err := a.Migrate(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%d migration(s) applied\n", n)
	return nil
}

func runBootstrap(c *cli.Context, a *app.App) error {
	if _, err := a.Migrate(c.Context); err != nil {
		return err
	}
	doc, created, err := a.Inventory.Bootstrap(c.Context)
	if err != nil {
		return err
	}
	if !created {
		fmt.Fprintln(c.App.Writer, "initial stock already present")
		return nil
	}
	fmt.Fprintf(c.App.Writer, "created %s dated %s\n", doc.DocNumber, doc.Date)
	return nil
}

func runExport(c *cli.Context, a *app.App) error {
	out := c.String("out")
	if out == "" {
		path, err := a.Backups.WriteBackup(c.Context)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, path)
		return nil
	}

	blob, err := a.Backups.Export(c.Context)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, blob, 0o640); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, out)
	return nil
}

func runImport(c *cli.Context, a *app.App) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: pharmapsy-cli import <file>", 2)
	}
	blob, err := os.ReadFile(filepath.Clean(c.Args().First()))
	if err != nil {
		return err
	}
	safety, err := a.Backups.Import(c.Context, blob)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "imported, previous data saved to %s\n", safety)
	return nil
}

func period(c *cli.Context, a *app.App) (reconcile.Period, error) {
	q := url.Values{}
	if v := c.String("year"); v != "" {
		q.Set("year", v)
	}
	if v := c.String("season"); v != "" {
		q.Set("season", v)
	}
	if c.IsSet("months") {
		q["months"] = c.StringSlice("months")
	}
	p, err := handler.PeriodFromQuery(q, a.Clock.Now())
	if err != nil {
		var appErr *errors.AppError
		if errors.As(err, &appErr) && len(appErr.Details) > 0 {
			return p, fmt.Errorf("%s: %v", appErr.Message, appErr.Details)
		}
	}
	return p, err
}

func runSummary(c *cli.Context, a *app.App) error {
	p, err := period(c, a)
	if err != nil {
		return err
	}
	rep, err := a.Reports.Summary(c.Context, p, c.String("search"), reconcile.ParseSort(c.String("sort"), c.String("dir")))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\n\n", rep.Label)
	fmt.Fprintln(w, "MEDICATION\tSTART\tIN\tOUT\tEND")
	for _, row := range rep.Rows {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", row.FullNom, row.StartStock, row.TotalIn, row.TotalOut, row.EndStock)
	}
	fmt.Fprintf(w, "TOTAL\t%d\t%d\t%d\t%d\n", rep.Totals.StartStock, rep.Totals.TotalIn, rep.Totals.TotalOut, rep.Totals.EndStock)
	if rep.Unmatched.Rows > 0 {
		fmt.Fprintf(w, "\nunmatched movements: %d (%s)\n", rep.Unmatched.Rows, strings.Join(rep.Unmatched.Name, ", "))
	}
	return w.Flush()
}

func runWorkbook(c *cli.Context, a *app.App) error {
	p, err := period(c, a)
	if err != nil {
		return err
	}
	body, err := a.Reports.Workbook(c.Context, p, reconcile.ParseMode(c.String("mode")), c.String("locale"))
	if err != nil {
		return err
	}
	out := c.String("out")
	if err := os.WriteFile(out, body, 0o640); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s written (%s)\n", out, p.Label())
	return nil
}

func runRequestBackup(c *cli.Context, a *app.App) error {
	if a.Events == nil {
		return cli.Exit("no message broker configured (PHARMAPSY_RABBITMQ_URL)", 1)
	}
	user := os.Getenv("USER")
	if user == "" {
		user = serviceName
	}
	a.Events.BackupRequested(c.Context, user)
	fmt.Fprintln(c.App.Writer, "backup requested")
	return nil
}

func runHashPassword(c *cli.Context) error {
	hash, err := authservice.HashPassword(c.String("password"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, hash)
	return nil
}
