package registry

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"dex-router/internal/types"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS executor_registry (
	address    TEXT PRIMARY KEY,
	status     INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_executor_registry_status ON executor_registry (status);
`

// DBRegistryStore 在 SQLite 中持久化执行器集合。
// 撤销的执行器保留一行（status=revoked），便于审计。
type DBRegistryStore struct {
	db *sql.DB
}

// OpenDBRegistryStore 打开 SQLite 文件并建表
func OpenDBRegistryStore(path string) (*DBRegistryStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	store, err := NewDBRegistryStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func NewDBRegistryStore(db *sql.DB) (*DBRegistryStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("ensure registry schema: %w", err)
	}
	return &DBRegistryStore{db: db}, nil
}

func (d *DBRegistryStore) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DBRegistryStore) Load(ctx context.Context) ([]types.Address, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT address FROM executor_registry WHERE status = ? ORDER BY address`, ChangeAdmitted)
	if err != nil {
		return nil, fmt.Errorf("query registry error: %w", err)
	}
	defer rows.Close()

	var result []types.Address
	for rows.Next() {
		var hex string
		if err := rows.Scan(&hex); err != nil {
			return nil, fmt.Errorf("scan registry row: %w", err)
		}
		addr, err := types.TryAddressFromHex(hex)
		if err != nil {
			continue
		}
		result = append(result, addr)
	}
	return result, rows.Err()
}

func (d *DBRegistryStore) Add(ctx context.Context, addr types.Address) error {
	return d.upsert(ctx, addr, ChangeAdmitted)
}

func (d *DBRegistryStore) Remove(ctx context.Context, addr types.Address) error {
	return d.upsert(ctx, addr, ChangeRevoked)
}

// Status 查询单个执行器最近一次状态，不存在时返回 ChangeUnknown
func (d *DBRegistryStore) Status(ctx context.Context, addr types.Address) (ChangeKind, error) {
	var status int
	err := d.db.QueryRowContext(ctx,
		`SELECT status FROM executor_registry WHERE address = ?`, addr.Hex()).Scan(&status)
	if err == sql.ErrNoRows {
		return ChangeUnknown, nil
	}
	if err != nil {
		return ChangeUnknown, fmt.Errorf("query executor status error: %w", err)
	}
	return ChangeKind(status), nil
}

func (d *DBRegistryStore) upsert(ctx context.Context, addr types.Address, status ChangeKind) error {
	query := `
		INSERT INTO executor_registry (address, status, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (address) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at
	`
	_, err := d.db.ExecContext(ctx, query, addr.Hex(), status, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert executor %s failed: %w", addr.Hex(), err)
	}
	return nil
}
