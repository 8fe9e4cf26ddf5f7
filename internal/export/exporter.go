package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/danielbelay23/data-pipelines/pkg/config"
	"github.com/danielbelay23/data-pipelines/pkg/logger"
	"github.com/danielbelay23/data-pipelines/pkg/retry"
)

// Table maps one JSON document onto a relational table
type Table struct {
	Name string
	File string
	// PrimaryKey is the TEXT primary key column
	PrimaryKey string
	// StaticKey, when set, is written as the key of every record so the
	// document occupies a single updatable row
	StaticKey string
	// KeyFields, when set, build the key by joining these fields with ":"
	KeyFields []string
}

// Tables returns the documents exported by default
func Tables(cfg *config.StorageConfig) []Table {
	return []Table{
		{Name: "following", File: cfg.Path(cfg.FollowingFile), PrimaryKey: "id"},
		{Name: "tweets", File: cfg.Path(cfg.TweetsFile), PrimaryKey: "id"},
		{Name: "profile", File: cfg.Path(cfg.ProfileFile), PrimaryKey: "account", StaticKey: "active_account"},
		{Name: "session_log", File: cfg.Path(cfg.SessionLogFile), PrimaryKey: "entry_key", KeyFields: []string{"session_id", "status"}},
	}
}

// Report summarizes one table sync
type Report struct {
	Table        string   `json:"table"`
	Records      int      `json:"records"`
	Inserted     int      `json:"inserted"`
	Updated      int      `json:"updated"`
	Skipped      int      `json:"skipped"`
	AddedColumns []string `json:"added_columns,omitempty"`
}

// Exporter syncs JSON documents into a SQL database
type Exporter struct {
	db      *sqlx.DB
	dialect dialect
	logger  logger.Logger
}

// New wraps an open database. The driver name picks the dialect.
func New(db *sqlx.DB, log logger.Logger) (*Exporter, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	d, err := dialectFor(db.DriverName())
	if err != nil {
		return nil, err
	}
	return &Exporter{db: db, dialect: d, logger: log.WithField("component", "export")}, nil
}

// OpenSQLite opens (creating if needed) the SQLite database at path
func OpenSQLite(path string, log logger.Logger) (*Exporter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}
	return New(db, log)
}

// ConnectRetry is the retry policy for reaching the warehouse: a fixed pause
// between a handful of attempts, long enough to ride out a database restart
func ConnectRetry(log logger.Logger) *retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 5
	cfg.Backoff = &retry.ConstantBackoff{Delay: 3 * time.Second}
	if log != nil {
		cfg.Logger = log
	}
	return cfg
}

// OpenPostgres connects to the warehouse, retrying transient failures
func OpenPostgres(ctx context.Context, dsn string, retryCfg *retry.Config, log logger.Logger) (*Exporter, error) {
	db, err := retry.DoWithResult(ctx, func(ctx context.Context) (*sqlx.DB, error) {
		return sqlx.ConnectContext(ctx, "postgres", dsn)
	}, retryCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return New(db, log)
}

// Close closes the database
func (e *Exporter) Close() error {
	return e.db.Close()
}

// Sync exports every table, continuing past tables that fail
func (e *Exporter) Sync(ctx context.Context, tables []Table) ([]Report, error) {
	var reports []Report
	var failed []string
	for _, t := range tables {
		report, err := e.SyncTable(ctx, t)
		if err != nil {
			e.logger.WithError(err).WarnWithFields("Table sync failed", map[string]interface{}{
				"table": t.Name,
			})
			failed = append(failed, t.Name)
			continue
		}
		reports = append(reports, report)
	}
	if len(failed) > 0 {
		return reports, fmt.Errorf("failed to sync tables: %s", strings.Join(failed, ", "))
	}
	return reports, nil
}

// SyncTable creates the table, adds columns for new keys, and upserts
// every record of the table's document
func (e *Exporter) SyncTable(ctx context.Context, t Table) (Report, error) {
	report := Report{Table: t.Name}

	if err := e.createTable(ctx, t); err != nil {
		return report, err
	}

	records, err := LoadRecords(t.File)
	if err != nil {
		return report, fmt.Errorf("failed to load %s: %w", t.File, err)
	}
	report.Records = len(records)
	if len(records) == 0 {
		e.logger.InfoWithFields("No records to export", map[string]interface{}{
			"table": t.Name,
			"file":  t.File,
		})
		return report, nil
	}

	keyed := make([]Record, 0, len(records))
	for _, r := range records {
		k, ok := t.key(r)
		if !ok {
			report.Skipped++
			continue
		}
		row := make(Record, len(r)+1)
		for col, v := range r {
			row[col] = v
		}
		row[t.PrimaryKey] = k
		keyed = append(keyed, row)
	}

	added, err := e.syncSchema(ctx, t, Columns(keyed))
	if err != nil {
		return report, err
	}
	report.AddedColumns = added

	inserted, updated, err := e.upsert(ctx, t, keyed)
	if err != nil {
		return report, err
	}
	report.Inserted = inserted
	report.Updated = updated

	e.logger.InfoWithFields("Table exported", map[string]interface{}{
		"table":         t.Name,
		"records":       report.Records,
		"inserted":      report.Inserted,
		"updated":       report.Updated,
		"skipped":       report.Skipped,
		"added_columns": len(report.AddedColumns),
	})
	return report, nil
}

// key returns the primary key value of r
func (t Table) key(r Record) (string, bool) {
	if t.StaticKey != "" {
		return t.StaticKey, true
	}
	if len(t.KeyFields) > 0 {
		parts := make([]string, 0, len(t.KeyFields))
		for _, f := range t.KeyFields {
			v, ok := r[f]
			if !ok || v == nil {
				return "", false
			}
			s, _ := cellValue(v)
			parts = append(parts, fmt.Sprint(s))
		}
		return strings.Join(parts, ":"), true
	}
	v, ok := r[t.PrimaryKey]
	if !ok || v == nil {
		return "", false
	}
	s, err := cellValue(v)
	if err != nil {
		return "", false
	}
	str, _ := s.(string)
	return str, str != ""
}

func (e *Exporter) createTable(ctx context.Context, t Table) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s TEXT PRIMARY KEY)`,
		quoteIdent(t.Name), quoteIdent(t.PrimaryKey))
	if _, err := e.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", t.Name, err)
	}
	return nil
}

// syncSchema adds a TEXT column for every key the table lacks
func (e *Exporter) syncSchema(ctx context.Context, t Table, columns []string) ([]string, error) {
	var existing []string
	if err := e.db.SelectContext(ctx, &existing, e.db.Rebind(e.dialect.columnsQuery), t.Name); err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", t.Name, err)
	}
	have := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		have[c] = struct{}{}
	}

	var added []string
	for _, col := range columns {
		if _, ok := have[col]; ok {
			continue
		}
		query := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s TEXT`, quoteIdent(t.Name), quoteIdent(col))
		if _, err := e.db.ExecContext(ctx, query); err != nil {
			return added, fmt.Errorf("failed to add column %s to %s: %w", col, t.Name, err)
		}
		added = append(added, col)
	}
	if len(added) > 0 {
		e.logger.InfoWithFields("Schema synced", map[string]interface{}{
			"table":   t.Name,
			"columns": added,
		})
	}
	return added, nil
}

// upsert writes every record in one transaction, inserting unseen keys and
// updating the rest
func (e *Exporter) upsert(ctx context.Context, t Table, records []Record) (inserted, updated int, err error) {
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	table := quoteIdent(t.Name)
	pk := quoteIdent(t.PrimaryKey)
	existsQuery := tx.Rebind(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ?`, table, pk))

	for _, r := range records {
		keyValue := r[t.PrimaryKey]

		var n int
		if err = tx.GetContext(ctx, &n, existsQuery, keyValue); err != nil {
			return 0, 0, fmt.Errorf("failed to look up %v in %s: %w", keyValue, t.Name, err)
		}

		cols := Columns([]Record{r})

		args := make([]interface{}, 0, len(cols))
		quoted := make([]string, 0, len(cols))
		for _, c := range cols {
			var v interface{}
			if v, err = cellValue(r[c]); err != nil {
				return 0, 0, fmt.Errorf("record %v column %s: %w", keyValue, c, err)
			}
			args = append(args, v)
			quoted = append(quoted, quoteIdent(c))
		}

		if n == 0 {
			query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
				table, strings.Join(quoted, ", "), placeholders(len(cols)))
			if _, err = tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
				return 0, 0, fmt.Errorf("failed to insert %v into %s: %w", keyValue, t.Name, err)
			}
			inserted++
			continue
		}

		var sets []string
		var setArgs []interface{}
		for i, c := range cols {
			if c == t.PrimaryKey {
				continue
			}
			sets = append(sets, quoted[i]+" = ?")
			setArgs = append(setArgs, args[i])
		}
		if len(sets) == 0 {
			continue
		}
		setArgs = append(setArgs, keyValue)
		query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = ?`, table, strings.Join(sets, ", "), pk)
		res, execErr := tx.ExecContext(ctx, tx.Rebind(query), setArgs...)
		if execErr != nil {
			err = execErr
			return 0, 0, fmt.Errorf("failed to update %v in %s: %w", keyValue, t.Name, err)
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			updated++
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit %s: %w", t.Name, err)
	}
	return inserted, updated, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// quoteIdent double-quotes an identifier for both SQLite and Postgres
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
