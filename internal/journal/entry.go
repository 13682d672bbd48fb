package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/rosie/internal/canonical"
)

// Call describes one boundary call.
type Call struct {
	EngineID string
	Op       string
	Input    []byte
	Status   bool
	Items    int
	Bytes    int
	Detail   string
}

// Entry is a recorded call.
type Entry struct {
	Seq         int64  `json:"seq"`
	ID          string `json:"id"`
	EngineID    string `json:"engine_id"`
	Op          string `json:"op"`
	InputDigest string `json:"input_digest"`
	InputLen    int    `json:"input_len"`
	Status      bool   `json:"status"`
	Items       int    `json:"items"`
	Bytes       int    `json:"bytes"`
	Detail      string `json:"detail,omitempty"`
}

// entryID computes the content-addressed id of an entry.
func entryID(e Entry) (string, error) {
	return canonical.DigestValue(canonical.DomainEntry, map[string]any{
		"seq":          e.Seq,
		"engine_id":    e.EngineID,
		"op":           e.Op,
		"input_digest": e.InputDigest,
		"input_len":    e.InputLen,
		"status":       e.Status,
		"items":        e.Items,
		"bytes":        e.Bytes,
		"detail":       e.Detail,
	})
}

// Record appends c and returns the stored entry.
func (j *Journal) Record(ctx context.Context, c Call) (Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("record call: %w", err)
	}
	defer tx.Rollback()

	var last int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM calls`).Scan(&last); err != nil {
		return Entry{}, fmt.Errorf("record call: next seq: %w", err)
	}

	e := Entry{
		Seq:         last + 1,
		EngineID:    c.EngineID,
		Op:          c.Op,
		InputDigest: canonical.Digest(canonical.DomainInput, c.Input),
		InputLen:    len(c.Input),
		Status:      c.Status,
		Items:       c.Items,
		Bytes:       c.Bytes,
		Detail:      c.Detail,
	}
	if e.ID, err = entryID(e); err != nil {
		return Entry{}, fmt.Errorf("record call: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO calls
		(seq, id, engine_id, op, input_digest, input_len, status, items, bytes, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.Seq, e.ID, e.EngineID, e.Op, e.InputDigest, e.InputLen,
		e.Status, e.Items, e.Bytes, e.Detail,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("record call: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("record call: commit: %w", err)
	}
	return e, nil
}

// Filter selects entries. Zero values select everything.
type Filter struct {
	EngineID string
	Op       string
	Limit    int
}

// Entries returns matching entries ordered by seq.
// Returns an empty slice (not nil) if nothing matches.
func (j *Journal) Entries(ctx context.Context, f Filter) ([]Entry, error) {
	query := `
		SELECT seq, id, engine_id, op, input_digest, input_len, status, items, bytes, detail
		FROM calls
		WHERE (? = '' OR engine_id = ?) AND (? = '' OR op = ?)
		ORDER BY seq ASC, id COLLATE BINARY ASC`
	args := []any{f.EngineID, f.EngineID, f.Op, f.Op}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return entries, nil
}

// Entry returns the entry with the given id. Returns sql.ErrNoRows if not found.
func (j *Journal) Entry(ctx context.Context, id string) (Entry, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT seq, id, engine_id, op, input_digest, input_len, status, items, bytes, detail
		FROM calls
		WHERE id = ?
	`, id)
	return scanEntry(row)
}

// Verify recomputes every entry id and returns the seqs whose stored id does
// not match its content.
func (j *Journal) Verify(ctx context.Context) ([]int64, error) {
	entries, err := j.Entries(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	bad := []int64{}
	for _, e := range entries {
		id, err := entryID(e)
		if err != nil {
			return nil, err
		}
		if id != e.ID {
			bad = append(bad, e.Seq)
		}
	}
	return bad, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var e Entry
	err := s.Scan(&e.Seq, &e.ID, &e.EngineID, &e.Op, &e.InputDigest, &e.InputLen,
		&e.Status, &e.Items, &e.Bytes, &e.Detail)
	if err == sql.ErrNoRows {
		return Entry{}, err
	}
	if err != nil {
		return Entry{}, fmt.Errorf("scan call: %w", err)
	}
	return e, nil
}
