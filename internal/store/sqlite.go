// Package store is the durable tier: one sqlite record per receipt keyed
// by id, one per registered model, plus an events audit table. It is the
// single source of truth; the in-memory cache in package receipts is a
// read accelerator only.
package store

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aigoflow/proof-service/internal/models"
)

// timeLayout is a fixed-width RFC 3339 form: created_at is compared and
// ordered as a string in SQL, so every timestamp must carry the full
// nine fractional digits. RFC3339Nano strips trailing zeros and breaks
// lexicographic ordering within a second.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type DB struct {
	*sql.DB
}

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		return nil, err
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS receipts(
		id TEXT PRIMARY KEY,
		model_id TEXT NOT NULL,
		model_name TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		completed_at TEXT,
		model_hash TEXT NOT NULL,
		input_hash TEXT NOT NULL,
		output_hash TEXT NOT NULL,
		output_json TEXT NOT NULL,
		proof_hash TEXT,
		proof_size INTEGER,
		proof BLOB,
		prove_time_ms INTEGER,
		verify_time_ms INTEGER,
		error TEXT
	)`); err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_receipts_status ON receipts(status);
		CREATE INDEX IF NOT EXISTS idx_receipts_model_id ON receipts(model_id);
		CREATE INDEX IF NOT EXISTS idx_receipts_created_at ON receipts(created_at DESC)`); err != nil {
		return nil, err
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS model_records(
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		descriptor_json TEXT NOT NULL,
		model_hash TEXT NOT NULL,
		uploaded INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`); err != nil {
		return nil, err
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS events(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL,
		level TEXT,
		code TEXT,
		msg TEXT,
		meta TEXT
	)`); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

func (db *DB) Event(level, code, msg string, meta map[string]interface{}) {
	m := ""
	if meta != nil {
		b, _ := json.Marshal(meta)
		m = string(b)
	}
	_, _ = db.Exec(`INSERT INTO events(ts,level,code,msg,meta) VALUES(?,?,?,?,?)`,
		float64(time.Now().UnixNano())/1e9, level, code, msg, m)
}

// InsertReceipt writes the initial record. The id is unique; a duplicate
// insert is a programming error and surfaces as a constraint violation.
func (db *DB) InsertReceipt(r *models.Receipt) error {
	outputJSON, err := json.Marshal(r.Output)
	if err != nil {
		return err
	}
	var completed interface{}
	if r.CompletedAt != nil {
		completed = r.CompletedAt.UTC().Format(timeLayout)
	}
	_, err = db.Exec(`INSERT INTO receipts(
		id, model_id, model_name, status, created_at, completed_at,
		model_hash, input_hash, output_hash, output_json, error)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.ModelID, r.ModelName, string(r.Status),
		r.CreatedAt.UTC().Format(timeLayout), completed,
		r.ModelHash, r.InputHash, r.OutputHash, string(outputJSON), nullString(r.Error))
	return err
}

// TransitionReceipt is the compare-and-set edge of the state machine:
// the row is updated only when its current status still equals from.
// Returns false when the CAS lost (row missing or status moved on).
func (db *DB) TransitionReceipt(id string, from, to models.Status, f models.TransitionFields) (bool, error) {
	completed := time.Now().UTC().Format(timeLayout)
	res, err := db.Exec(`UPDATE receipts SET
		status=?, completed_at=?, proof_hash=?, proof_size=?, proof=?,
		prove_time_ms=?, verify_time_ms=?, error=?
		WHERE id=? AND status=?`,
		string(to), completed, nullString(f.ProofHash), f.ProofSize, f.Proof,
		f.ProveTimeMs, f.VerifyTimeMs, nullString(f.Error),
		id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (db *DB) GetReceipt(id string) (*models.Receipt, error) {
	row := db.QueryRow(`SELECT id, model_id, model_name, status, created_at, completed_at,
		model_hash, input_hash, output_hash, output_json,
		proof_hash, proof_size, prove_time_ms, verify_time_ms, error
		FROM receipts WHERE id=?`, id)
	return scanReceipt(row, id)
}

// GetProof returns the stored proof bytes, nil when none exist yet.
func (db *DB) GetProof(id string) ([]byte, error) {
	var proof []byte
	err := db.QueryRow(`SELECT proof FROM receipts WHERE id=?`, id).Scan(&proof)
	if err == sql.ErrNoRows {
		return nil, models.NotFound("receipt", id)
	}
	if err != nil {
		return nil, err
	}
	return proof, nil
}

// MarkInterrupted fails every proving receipt older than grace. Called once
// at startup: there is no persisted partial-proof state to resume from.
func (db *DB) MarkInterrupted(grace time.Duration) (int64, error) {
	cutoff := time.Now().Add(-grace).UTC().Format(timeLayout)
	now := time.Now().UTC().Format(timeLayout)
	res, err := db.Exec(`UPDATE receipts SET status=?, error=?, completed_at=?
		WHERE status=? AND created_at < ?`,
		string(models.StatusFailed), "interrupted", now,
		string(models.StatusProving), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (db *DB) Stats() (*models.Stats, error) {
	stats := &models.Stats{ByModel: make(map[string]uint64)}

	err := db.QueryRow(`SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN status = 'verified' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'proving' THEN 1 ELSE 0 END), 0),
		AVG(CASE WHEN prove_time_ms IS NOT NULL THEN prove_time_ms END),
		AVG(CASE WHEN verify_time_ms IS NOT NULL THEN verify_time_ms END)
		FROM receipts`).Scan(
		&stats.TotalProofs, &stats.Verified, &stats.Failed, &stats.Proving,
		&stats.AvgProveTimeMs, &stats.AvgVerifyTimeMs)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`SELECT model_id, COUNT(*) FROM receipts GROUP BY model_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var modelID string
		var count uint64
		if err := rows.Scan(&modelID, &count); err == nil {
			stats.ByModel[modelID] = count
		}
	}
	return stats, rows.Err()
}

func (db *DB) ListRecent(limit int) ([]*models.Summary, error) {
	rows, err := db.Query(`SELECT id, model_id, model_name, status, created_at,
		output_json, prove_time_ms, verify_time_ms
		FROM receipts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*models.Summary
	for rows.Next() {
		var s models.Summary
		var createdStr, outputJSON string
		if err := rows.Scan(&s.ID, &s.ModelID, &s.ModelName, &s.Status,
			&createdStr, &outputJSON, &s.ProveTimeMs, &s.VerifyTimeMs); err != nil {
			continue
		}
		s.CreatedAt = parseTime(createdStr)
		var output models.InferenceOutput
		if err := json.Unmarshal([]byte(outputJSON), &output); err == nil {
			s.Label = output.Label
			s.Confidence = output.Confidence
		}
		summaries = append(summaries, &s)
	}
	return summaries, rows.Err()
}

// InsertModelRecord persists the durable descriptor record for a model.
func (db *DB) InsertModelRecord(m *models.Model) error {
	descriptor, err := json.Marshal(m)
	if err != nil {
		return err
	}
	uploaded := 0
	if m.Uploaded {
		uploaded = 1
	}
	_, err = db.Exec(`INSERT OR REPLACE INTO model_records(id, name, descriptor_json, model_hash, uploaded, created_at)
		VALUES(?,?,?,?,?,?)`,
		m.ID, m.Name, string(descriptor), m.ModelHash, uploaded,
		time.Now().UTC().Format(timeLayout))
	return err
}

func scanReceipt(row *sql.Row, id string) (*models.Receipt, error) {
	var r models.Receipt
	var statusStr, createdStr, outputJSON string
	var completedStr, proofHash, errStr sql.NullString

	err := row.Scan(&r.ID, &r.ModelID, &r.ModelName, &statusStr, &createdStr, &completedStr,
		&r.ModelHash, &r.InputHash, &r.OutputHash, &outputJSON,
		&proofHash, &r.ProofSize, &r.ProveTimeMs, &r.VerifyTimeMs, &errStr)
	if err == sql.ErrNoRows {
		return nil, models.NotFound("receipt", id)
	}
	if err != nil {
		return nil, err
	}

	r.Status = models.ParseStatus(statusStr)
	r.CreatedAt = parseTime(createdStr)
	if completedStr.Valid {
		t := parseTime(completedStr.String)
		r.CompletedAt = &t
	}
	if proofHash.Valid {
		r.ProofHash = proofHash.String
	}
	if errStr.Valid {
		r.Error = errStr.String
	}
	if err := json.Unmarshal([]byte(outputJSON), &r.Output); err != nil {
		r.Output = models.InferenceOutput{Label: "unknown"}
	}
	return &r, nil
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	// Rows written before the fixed-width layout.
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Now().UTC()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
