// Package tracestore persists finished trace sessions in SQLite: the full
// wire-schema JSON per session, plus flat per-invocation index rows so
// inspection tooling can list and filter without decoding whole trees.
package tracestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/choicepoint/internal/trace"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS trace_sessions (
	session_id  TEXT PRIMARY KEY,
	label       TEXT,
	created_at  TEXT NOT NULL,
	trace_json  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS invocations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	depth       INTEGER NOT NULL,
	func_name   TEXT NOT NULL,
	impl_name   TEXT NOT NULL,
	rule_count  INTEGER NOT NULL,
	FOREIGN KEY (session_id) REFERENCES trace_sessions(session_id)
);
CREATE INDEX IF NOT EXISTS idx_invocations_session ON invocations(session_id);
`

// #endregion schema

// #region types

// SessionRow summarizes one stored session.
type SessionRow struct {
	SessionID   string
	Label       string
	CreatedAt   time.Time
	Invocations int
}

// InvocationRow is one flattened invocation, pre-order within its session.
type InvocationRow struct {
	Seq       int
	Depth     int
	FuncName  string
	ImplName  string
	RuleCount int
}

// Store manages the trace database.
type Store struct {
	db *sql.DB
}

// #endregion types

// #region constructor

// NewStore opens the SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region save

// SaveSession stores a finished session and returns its generated id.
func (s *Store) SaveSession(label string, sess *trace.Session) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	data, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO trace_sessions (session_id, label, created_at, trace_json)
		 VALUES (?, ?, ?, ?)`,
		id, nullIfEmpty(label), now.Format(time.RFC3339Nano), string(data),
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}

	seq := 0
	for _, root := range sess.Roots {
		if err := insertInvocations(tx, id, root, 0, &seq); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

func insertInvocations(tx *sql.Tx, sessionID string, n *trace.Node, depth int, seq *int) error {
	_, err := tx.Exec(
		`INSERT INTO invocations (session_id, seq, depth, func_name, impl_name, rule_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, *seq, depth, nodeName(n.FuncName, n.Func.String()), nodeName(n.ImplName, n.Impl.String()), len(n.Rules),
	)
	if err != nil {
		return fmt.Errorf("insert invocation: %w", err)
	}
	*seq++
	for _, c := range n.Items {
		if err := insertInvocations(tx, sessionID, c, depth+1, seq); err != nil {
			return err
		}
	}
	return nil
}

func nodeName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion save

// #region queries

// ListSessions returns the most recent sessions, newest first.
func (s *Store) ListSessions(limit int) ([]SessionRow, error) {
	rows, err := s.db.Query(
		`SELECT t.session_id, COALESCE(t.label, ''), t.created_at,
		        (SELECT COUNT(*) FROM invocations i WHERE i.session_id = t.session_id)
		 FROM trace_sessions t
		 ORDER BY t.created_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		var createdAt string
		if err := rows.Scan(&r.SessionID, &r.Label, &createdAt, &r.Invocations); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetSession loads one stored session by id.
func (s *Store) GetSession(sessionID string) (*trace.Session, error) {
	var data string
	err := s.db.QueryRow(
		`SELECT trace_json FROM trace_sessions WHERE session_id = ?`,
		sessionID,
	).Scan(&data)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}

	var sess trace.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &sess, nil
}

// RawSession returns the stored wire JSON unchanged.
func (s *Store) RawSession(sessionID string) ([]byte, error) {
	var data string
	err := s.db.QueryRow(
		`SELECT trace_json FROM trace_sessions WHERE session_id = ?`,
		sessionID,
	).Scan(&data)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return []byte(data), nil
}

// ListInvocations returns a session's flattened invocations in pre-order.
func (s *Store) ListInvocations(sessionID string) ([]InvocationRow, error) {
	rows, err := s.db.Query(
		`SELECT seq, depth, func_name, impl_name, rule_count
		 FROM invocations
		 WHERE session_id = ?
		 ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InvocationRow
	for rows.Next() {
		var r InvocationRow
		if err := rows.Scan(&r.Seq, &r.Depth, &r.FuncName, &r.ImplName, &r.RuleCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// #endregion queries
