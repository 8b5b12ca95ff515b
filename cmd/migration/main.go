package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jmoiron/sqlx"

	"db_schema_migrator/internal/config"
	"db_schema_migrator/internal/db"
	httpserver "db_schema_migrator/internal/http"
	"db_schema_migrator/internal/logging"
	"db_schema_migrator/internal/migrate"
	_ "db_schema_migrator/migrations"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	commands := map[string]func([]string) error{
		"init-config": initConfigCmd,
		"create":      createCmd,
		"up":          upCmd,
		"down":        downCmd,
		"refresh":     refreshCmd,
		"fresh":       freshCmd,
		"status":      statusCmd,
		"unlock":      unlockCmd,
		"serve":       serveCmd,
	}
	run, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %s\n", cmd)
		usage()
		os.Exit(1)
	}
	if err := run(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`migration commands:
  init-config   - write a starter migrations.yaml
  create        - scaffold a new migration file
  up            - apply every pending migration as one batch
  down          - revert the most recent batch
  refresh       - revert the last N batches and apply them again
  fresh         - drop all tables and apply every migration
  status        - list migrations and whether they are applied
  unlock        - clear a lock left by a crashed run
  serve         - expose migration status over HTTP

Flags are command specific; run "<cmd> -h" for details.`)
}

func initConfigCmd(args []string) error {
	fs := flagSet("init-config")
	path := fs.String("path", config.DefaultFile, "where to write the sample config")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := os.Stat(*path); err == nil {
		return fmt.Errorf("%s already exists", *path)
	}
	if err := os.WriteFile(*path, []byte(config.Sample()), 0o644); err != nil {
		return err
	}
	fmt.Println("sample config written to", *path)
	return nil
}

func createCmd(args []string) error {
	fs := flagSet("create")
	configPath := fs.String("config", config.DefaultFile, "path to config file")
	profileName := fs.String("profile", "", "profile recorded in the file header; its dir is used unless --dir is set")
	dir := fs.String("dir", "", "migrations directory")
	goFile := fs.Bool("go", false, "scaffold a Go migration instead of SQL")

	// the name may come before or after the flags
	var nameParts []string
	for len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		nameParts = append(nameParts, args[0])
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	nameParts = append(nameParts, fs.Args()...)
	name := strings.Join(nameParts, " ")
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("usage: create <name> [--profile p] [--dir d] [--go]")
	}

	target := *dir
	if target == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		profile, err := cfg.Profile(*profileName)
		if err != nil {
			return err
		}
		target = profile.Dir
	}
	kind := migrate.KindSQL
	if *goFile {
		kind = migrate.KindGo
	}
	path, err := migrate.Create(name, migrate.CreateOptions{Dir: target, Profile: *profileName, Kind: kind})
	if err != nil {
		return err
	}
	fmt.Println("created", path)
	return nil
}

func upCmd(args []string) error {
	fs := flagSet("up")
	configPath, profileName := targetFlags(fs)
	printOnly := fs.Bool("print", false, "print the SQL of pending migrations instead of running it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var out io.Writer
	if *printOnly {
		out = os.Stdout
	}
	return withRunner(*configPath, *profileName, out, func(ctx context.Context, r *migrate.Runner) error {
		report, err := r.Up(ctx)
		if out == nil {
			printReport(report)
		}
		return err
	})
}

func downCmd(args []string) error {
	fs := flagSet("down")
	configPath, profileName := targetFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return withRunner(*configPath, *profileName, nil, func(ctx context.Context, r *migrate.Runner) error {
		report, err := r.Down(ctx)
		printReport(report)
		return err
	})
}

func refreshCmd(args []string) error {
	fs := flagSet("refresh")
	configPath, profileName := targetFlags(fs)
	steps := fs.Int("steps", 1, "number of batches to revert before reapplying")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *steps < 1 {
		return fmt.Errorf("--steps must be at least 1")
	}
	return withRunner(*configPath, *profileName, nil, func(ctx context.Context, r *migrate.Runner) error {
		report, err := r.Refresh(ctx, *steps)
		printReport(report)
		return err
	})
}

func freshCmd(args []string) error {
	fs := flagSet("fresh")
	configPath, profileName := targetFlags(fs)
	approve := fs.Bool("approve", false, "skip confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*approve {
		fmt.Println("About to drop every table in the target database.")
		if ok, err := promptYes("Type YES to proceed: "); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("aborted by user")
		}
	}
	return withRunner(*configPath, *profileName, nil, func(ctx context.Context, r *migrate.Runner) error {
		report, err := r.Fresh(ctx)
		printReport(report)
		return err
	})
}

func statusCmd(args []string) error {
	fs := flagSet("status")
	configPath, profileName := targetFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return withRunner(*configPath, *profileName, nil, func(ctx context.Context, r *migrate.Runner) error {
		items, err := r.Status(ctx)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("no migrations found")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "MIGRATION\tSTATE\tBATCH\tAPPLIED AT")
		for _, item := range items {
			state, batch, at := "pending", "", ""
			if item.Applied {
				state, batch, at = "applied", fmt.Sprint(item.Batch), item.AppliedAt.Format(time.RFC3339)
			}
			if item.Missing {
				state = "missing"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", item.ID, state, batch, at)
		}
		return tw.Flush()
	})
}

func unlockCmd(args []string) error {
	fs := flagSet("unlock")
	configPath, profileName := targetFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return withRunner(*configPath, *profileName, nil, func(ctx context.Context, r *migrate.Runner) error {
		if err := r.Unlock(ctx); err != nil {
			return err
		}
		fmt.Println("lock released")
		return nil
	})
}

func serveCmd(args []string) error {
	fs := flagSet("serve")
	configPath, profileName := targetFlags(fs)
	addr := fs.String("addr", ":8080", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t, err := openTarget(ctx, *configPath, *profileName, nil)
	if err != nil {
		return err
	}
	defer t.conn.Close()

	health := httpserver.HealthHandler{DB: t.conn, Dialect: t.runner.Dialect().Name()}
	srv := httpserver.New(*addr, t.logger, health, httpserver.NewMigrationHandler(t.runner, t.logger))
	return srv.Start(ctx)
}

type target struct {
	conn   *sqlx.DB
	runner *migrate.Runner
	logger *slog.Logger
}

func targetFlags(fs *flag.FlagSet) (configPath, profile *string) {
	configPath = fs.String("config", config.DefaultFile, "path to config file")
	profile = fs.String("profile", "", "profile name from config (default: the file's default_profile)")
	return configPath, profile
}

func openTarget(ctx context.Context, configPath, profileName string, out io.Writer) (*target, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	profile, err := cfg.Profile(profileName)
	if err != nil {
		return nil, err
	}
	conn, d, err := db.Open(ctx, profile.Database)
	if err != nil {
		return nil, err
	}
	runner := migrate.NewRunner(conn, d, migrate.Options{
		Table:  profile.Table,
		FS:     migrate.DirFS(profile.Dir),
		Logger: logger.With("profile", profile.Name),
		Print:  out,
	})
	return &target{conn: conn, runner: runner, logger: logger}, nil
}

func withRunner(configPath, profileName string, out io.Writer, fn func(ctx context.Context, r *migrate.Runner) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	t, err := openTarget(ctx, configPath, profileName, out)
	if err != nil {
		return err
	}
	defer t.conn.Close()
	return fn(ctx, t.runner)
}

func printReport(report *migrate.Report) {
	if report == nil {
		return
	}
	for _, id := range report.Applied {
		fmt.Printf("applied   %s (batch %d)\n", id, report.Batch)
	}
	for _, id := range report.Reverted {
		fmt.Printf("reverted  %s\n", id)
	}
	if report.Failed != "" {
		fmt.Printf("failed    %s\n", report.Failed)
	}
	for _, id := range report.Pending {
		fmt.Printf("pending   %s\n", id)
	}
}

func promptYes(prompt string) (bool, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(line), "YES"), nil
}

func flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	return fs
}
