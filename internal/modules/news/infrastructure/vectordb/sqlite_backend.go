package vectordb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"NewsPulse/internal/modules/news/domain/news"

	_ "modernc.org/sqlite"
)

const registrySchema = `
CREATE TABLE IF NOT EXISTS vector_collections (
	name       TEXT PRIMARY KEY,
	dim        INTEGER NOT NULL,
	created_at INTEGER NOT NULL
)`

const collectionSchema = `
CREATE TABLE %s (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	id        TEXT NOT NULL UNIQUE,
	text      TEXT NOT NULL,
	title     TEXT NOT NULL DEFAULT '',
	link      TEXT NOT NULL DEFAULT '',
	pub_date  TEXT NOT NULL DEFAULT '',
	source    TEXT NOT NULL DEFAULT '',
	embedding BLOB NOT NULL
)`

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteBackend 单文件持久化，检索为进程内 brute-force cosine 扫描
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

var _ Backend = (*SQLiteBackend)(nil)

// OpenSQLite 在 dir 下打开（或创建）vectors.db
func OpenSQLite(ctx context.Context, dir string) (*SQLiteBackend, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating vector dir: %w", err)
	}
	path := filepath.Join(dir, "vectors.db")

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// 写入串行化，避免 SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, registrySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating registry: %w", err)
	}
	return &SQLiteBackend{db: db, path: path}, nil
}

// Path 数据库文件路径
func (b *SQLiteBackend) Path() string { return b.path }

func (b *SQLiteBackend) Describe(ctx context.Context, collection string) (bool, int, error) {
	if err := checkIdent(collection); err != nil {
		return false, 0, err
	}
	var dim int
	err := b.db.QueryRowContext(ctx, `SELECT dim FROM vector_collections WHERE name = ?`, collection).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	return true, dim, nil
}

// Create 注册表插入与建表在同一事务内完成
func (b *SQLiteBackend) Create(ctx context.Context, collection string, dim int) error {
	if err := checkIdent(collection); err != nil {
		return err
	}
	if dim <= 0 {
		return fmt.Errorf("invalid dim: %d", dim)
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO vector_collections (name, dim, created_at) VALUES (?, ?, ?) ON CONFLICT(name) DO NOTHING`,
		collection, dim, time.Now().Unix())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCollectionExists
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(collectionSchema, quoteIdent(collection))); err != nil {
		return err
	}
	return tx.Commit()
}

func (b *SQLiteBackend) Insert(ctx context.Context, collection string, docs []news.Document) error {
	if err := checkIdent(collection); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, text, title, link, pub_date, source, embedding) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		quoteIdent(collection)))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range docs {
		m := d.Metadata
		if _, err := stmt.ExecContext(ctx, d.ID, d.Text, m.Title, m.Link, m.PublishedAt, m.Source, encodeVector(d.Vector)); err != nil {
			return fmt.Errorf("insert %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

func (b *SQLiteBackend) Search(ctx context.Context, collection string, vector []float32, k int) ([]Hit, error) {
	if err := checkIdent(collection); err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT seq, id, text, title, link, pub_date, source, embedding FROM %s ORDER BY seq`,
		quoteIdent(collection)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := make([]Hit, 0)
	for rows.Next() {
		var (
			h    Hit
			blob []byte
			m    = &h.Doc.Metadata
		)
		if err := rows.Scan(&h.Seq, &h.Doc.ID, &h.Doc.Text, &m.Title, &m.Link, &m.PublishedAt, &m.Source, &blob); err != nil {
			return nil, err
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		if h.Distance, err = CosineDistance(vector, vec); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 行已按 seq 读出，稳定排序保证同距离按写入顺序
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (b *SQLiteBackend) Drop(ctx context.Context, collection string) error {
	if err := checkIdent(collection); err != nil {
		return err
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(collection)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vector_collections WHERE name = ?`, collection); err != nil {
		return err
	}
	return tx.Commit()
}

func (b *SQLiteBackend) Count(ctx context.Context, collection string) (int64, error) {
	if err := checkIdent(collection); err != nil {
		return 0, err
	}
	var n int64
	err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(collection)).Scan(&n)
	return n, err
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func checkIdent(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}
