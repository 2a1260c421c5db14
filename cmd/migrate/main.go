package main

import (
	"WyvernExchange/internal/observability"
	"WyvernExchange/internal/persistence"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

const usage = `usage: migrate <up|down|status>

  up      apply pending migrations
  down    roll back the newest applied migration
  status  show each migration as pending, applied or drifted

env:
  WYVERN_POSTGRES_DSN    Postgres connection string
  WYVERN_MIGRATIONS_DIR  migrations directory (default "migrations")
`

func main() {
	if len(os.Args) != 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("WARN: .env not loaded: %v", err)
	}

	dsn := envOrDefault("WYVERN_POSTGRES_DSN", "postgres://localhost:5432/wyvern?sslmode=disable")
	dir := envOrDefault("WYVERN_MIGRATIONS_DIR", "migrations")

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("FATAL: open db: %v", err)
	}
	defer db.Close()

	m := persistence.NewMigrator(db, dir, observability.NewLogger("migrate"))
	if err := run(context.Background(), m, os.Args[1], os.Stdout); err != nil {
		db.Close()
		log.Fatalf("FATAL: migrate %s: %v", os.Args[1], err)
	}
}

func run(ctx context.Context, m *persistence.Migrator, cmd string, out io.Writer) error {
	switch cmd {
	case "up":
		return m.Up(ctx)
	case "down":
		return m.Down(ctx)
	case "status":
		statuses, err := m.Status(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tSTATE\tFILE")
		drifted := 0
		for _, s := range statuses {
			state := "pending"
			switch {
			case s.Drifted:
				state = "drifted"
				drifted++
			case s.Applied:
				state = "applied"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Version, state, s.File)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if drifted > 0 {
			return fmt.Errorf("%w: %d file(s)", persistence.ErrMigrationDrift, drifted)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
