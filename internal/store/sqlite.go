package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"quantlab/internal/config"
)

// Store 封装 SQLite 连接，仅承担运行结果的写入职责。
type Store struct {
	db *sql.DB
}

// NewSQLite 根据配置初始化 SQLite 存储。
func NewSQLite(cfg config.DatabaseConfig) (*Store, error) {
	dsn := cfg.Path
	if cfg.InMemory {
		dsn = ":memory:"
	} else {
		if err := ensureDir(filepath.Dir(cfg.Path)); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", dsn))
	if err != nil {
		return nil, fmt.Errorf("打开 SQLite 数据库失败: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("设置 SQLite WAL 模式失败: %w", err)
	}

	if _, err := conn.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("设置 SQLite 同步级别失败: %w", err)
	}

	store := &Store{db: conn}
	if err := store.initSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return store, nil
}

// DB 返回底层 *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			strategy TEXT NOT NULL,
			symbol TEXT NOT NULL,
			params TEXT NOT NULL,
			total_return REAL NOT NULL,
			cagr REAL NOT NULL,
			sharpe REAL NOT NULL,
			max_drawdown REAL NOT NULL,
			win_rate REAL NOT NULL,
			profit_factor REAL,
			num_trades INTEGER NOT NULL,
			final_equity REAL NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS optimization_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			strategy TEXT NOT NULL,
			symbol TEXT NOT NULL,
			mode TEXT NOT NULL,
			objective TEXT NOT NULL,
			evaluations INTEGER NOT NULL,
			best_params TEXT,
			best_objective REAL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS walkforward_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			strategy TEXT NOT NULL,
			symbol TEXT NOT NULL,
			objective TEXT NOT NULL,
			windows INTEGER NOT NULL,
			oos_total_return REAL NOT NULL,
			oos_sharpe REAL NOT NULL,
			oos_max_drawdown REAL NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS walkforward_windows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES walkforward_runs(id),
			window_index INTEGER NOT NULL,
			train_start INTEGER NOT NULL,
			train_end INTEGER NOT NULL,
			test_start INTEGER NOT NULL,
			test_end INTEGER NOT NULL,
			params TEXT NOT NULL,
			test_return REAL NOT NULL,
			test_sharpe REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_wf_windows_run ON walkforward_windows(run_id);`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: 初始化表结构失败: %w", err)
		}
	}

	return nil
}

func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("创建目录 %q 失败: %w", path, err)
	}
	return nil
}
