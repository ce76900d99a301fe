package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bankloan/internal/config"
	"bankloan/internal/db"
	"bankloan/internal/logging"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const downMarker = "-- +migrate Down"

func main() {
	direction := flag.String("direction", "up", "up applies pending migrations, down reverts applied ones")
	steps := flag.Int("steps", 1, "number of migrations to revert with -direction=down")
	dir := flag.String("dir", "migrations", "directory holding the numbered .sql files")
	flag.Parse()

	if err := run(*direction, *steps, *dir); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(direction string, steps int, dir string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.Connect(cfg.DatabaseURL, db.PoolOptions{MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close()

	if _, err := database.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (filename TEXT PRIMARY KEY, applied_at TIMESTAMPTZ DEFAULT NOW())`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Strings(files)

	m := migrator{db: database, logger: logger}
	switch direction {
	case "up":
		return m.up(files)
	case "down":
		return m.down(files, steps)
	}
	return fmt.Errorf("unknown direction %q", direction)
}

type migrator struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func (m migrator) up(files []string) error {
	for _, file := range files {
		filename := filepath.Base(file)
		var exists bool
		if err := m.db.Get(&exists, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, filename); err != nil {
			return fmt.Errorf("read migration state: %w", err)
		}
		if exists {
			continue
		}
		up, _, err := readSections(file)
		if err != nil {
			return err
		}
		err = db.WithTx(context.Background(), m.db, func(tx *sqlx.Tx) error {
			if err := execAll(tx, up); err != nil {
				return err
			}
			_, err := tx.Exec(`INSERT INTO schema_migrations (filename) VALUES ($1)`, filename)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply %s: %w", filename, err)
		}
		m.logger.Info("applied migration", zap.String("file", filename))
	}
	return nil
}

func (m migrator) down(files []string, steps int) error {
	for i := len(files) - 1; i >= 0 && steps > 0; i-- {
		filename := filepath.Base(files[i])
		var exists bool
		if err := m.db.Get(&exists, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, filename); err != nil {
			return fmt.Errorf("read migration state: %w", err)
		}
		if !exists {
			continue
		}
		_, down, err := readSections(files[i])
		if err != nil {
			return err
		}
		err = db.WithTx(context.Background(), m.db, func(tx *sqlx.Tx) error {
			if err := execAll(tx, down); err != nil {
				return err
			}
			_, err := tx.Exec(`DELETE FROM schema_migrations WHERE filename = $1`, filename)
			return err
		})
		if err != nil {
			return fmt.Errorf("revert %s: %w", filename, err)
		}
		m.logger.Info("reverted migration", zap.String("file", filename))
		steps--
	}
	return nil
}

func readSections(path string) ([]string, []string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	up, down := splitSections(string(content))
	return up, down, nil
}

// splitSections returns the up and down statements of one migration file.
func splitSections(content string) ([]string, []string) {
	upText, downText, _ := strings.Cut(content, downMarker)
	return splitSQL(upText), splitSQL(downText)
}

func execAll(tx *sqlx.Tx, statements []string) error {
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func splitSQL(sqlText string) []string {
	var statements []string
	var current strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(sqlText))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteRune('\n')
		if strings.HasSuffix(trimmed, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}
