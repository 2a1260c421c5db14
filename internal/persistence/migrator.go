package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
)

// ErrMigrationDrift is returned when an applied migration file has been
// edited since it ran.
var ErrMigrationDrift = errors.New("applied migration changed on disk")

// migrationLockID serializes concurrent migrators through a Postgres
// transaction-scoped advisory lock.
const migrationLockID = 0x77797665726e // "wyvern"

// Migrator applies {version}_{name}.up.sql / .down.sql files in version order
// and records each with a keccak checksum of its up script.
type Migrator struct {
	db     *sql.DB
	dir    string
	logger zerolog.Logger
}

func NewMigrator(db *sql.DB, migrationsDir string, logger zerolog.Logger) *Migrator {
	return &Migrator{db: db, dir: migrationsDir, logger: logger.With().Str("component", "migrator").Logger()}
}

type migration struct {
	version  string
	upFile   string
	upSQL    string
	checksum string
}

type appliedMigration struct {
	file     string
	checksum string
}

// MigrationStatus describes one migration file.
type MigrationStatus struct {
	Version string
	File    string
	Applied bool
	// Drifted is set when the file no longer matches the checksum recorded
	// at apply time.
	Drifted bool
}

// Up applies every pending migration. Each runs in its own transaction; a
// drifted applied migration stops the run before anything executes.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.ensureMigrationTable(ctx); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	migrations, err := m.load()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return fmt.Errorf("read applied migrations: %w", err)
	}

	for _, mg := range migrations {
		if a, ok := applied[mg.version]; ok && a.checksum != mg.checksum {
			return fmt.Errorf("%w: %s", ErrMigrationDrift, mg.upFile)
		}
	}

	for _, mg := range migrations {
		if _, ok := applied[mg.version]; ok {
			continue
		}
		if err := m.apply(ctx, &mg); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) apply(ctx context.Context, mg *migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx for %s: %w", mg.upFile, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
		return fmt.Errorf("lock for %s: %w", mg.upFile, err)
	}
	// Another process may have applied it while we waited for the lock.
	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM public.wyvern_migrations WHERE version = $1)`, mg.version,
	).Scan(&exists); err != nil {
		return fmt.Errorf("recheck %s: %w", mg.upFile, err)
	}
	if exists {
		return nil
	}

	if _, err := tx.ExecContext(ctx, mg.upSQL); err != nil {
		return fmt.Errorf("exec migration %s: %w", mg.upFile, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO public.wyvern_migrations (version, filename, checksum) VALUES ($1, $2, $3)`,
		mg.version, mg.upFile, mg.checksum,
	); err != nil {
		return fmt.Errorf("record migration %s: %w", mg.upFile, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", mg.upFile, err)
	}

	m.logger.Info().Str("file", mg.upFile).Str("checksum", mg.checksum[:12]).Msg("applied migration")
	return nil
}

// Down rolls back the most recently applied migration.
func (m *Migrator) Down(ctx context.Context) error {
	if err := m.ensureMigrationTable(ctx); err != nil {
		return err
	}

	var version, filename string
	err := m.db.QueryRowContext(ctx,
		`SELECT version, filename FROM public.wyvern_migrations ORDER BY version DESC LIMIT 1`,
	).Scan(&version, &filename)
	if errors.Is(err, sql.ErrNoRows) {
		m.logger.Info().Msg("no migrations to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get latest migration: %w", err)
	}

	downFile := strings.TrimSuffix(filename, ".up.sql") + ".down.sql"
	content, err := os.ReadFile(filepath.Join(m.dir, downFile))
	if err != nil {
		return fmt.Errorf("read down migration %s: %w", downFile, err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
		return fmt.Errorf("lock for %s: %w", downFile, err)
	}
	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("exec down migration %s: %w", downFile, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM public.wyvern_migrations WHERE version = $1`, version,
	); err != nil {
		return fmt.Errorf("remove migration record %s: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	m.logger.Info().Str("file", downFile).Msg("rolled back migration")
	return nil
}

// Status lists every migration on disk with its applied and drift state.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.ensureMigrationTable(ctx); err != nil {
		return nil, err
	}
	migrations, err := m.load()
	if err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]MigrationStatus, 0, len(migrations))
	for _, mg := range migrations {
		a, ok := applied[mg.version]
		out = append(out, MigrationStatus{
			Version: mg.version,
			File:    mg.upFile,
			Applied: ok,
			Drifted: ok && a.checksum != mg.checksum,
		})
	}
	return out, nil
}

func (m *Migrator) ensureMigrationTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS public.wyvern_migrations (
			version    TEXT PRIMARY KEY,
			filename   TEXT NOT NULL,
			checksum   TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (m *Migrator) applied(ctx context.Context) (map[string]appliedMigration, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version, filename, checksum FROM public.wyvern_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]appliedMigration)
	for rows.Next() {
		var v string
		var a appliedMigration
		if err := rows.Scan(&v, &a.file, &a.checksum); err != nil {
			return nil, err
		}
		out[v] = a
	}
	return out, rows.Err()
}

// load reads every up script in the directory, sorted by version.
func (m *Migrator) load() ([]migration, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, err
	}

	var out []migration
	seen := make(map[string]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		version := extractVersion(name)
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %s", prev, name, version)
		}
		seen[version] = name

		content, err := os.ReadFile(filepath.Join(m.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		out = append(out, migration{
			version:  version,
			upFile:   name,
			upSQL:    string(content),
			checksum: crypto.Keccak256Hash(content).Hex(),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// extractVersion returns the prefix before the first underscore:
// "000002_event_log.up.sql" is version "000002".
func extractVersion(filename string) string {
	version, _, _ := strings.Cut(filename, "_")
	return version
}
