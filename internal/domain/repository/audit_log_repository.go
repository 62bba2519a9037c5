package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"polyboard/internal/domain/model"
)

type AuditLogRepository interface {
	// AddSolveLogEntry appends an entry to a solve's audit trail within the
	// caller's transaction.
	AddSolveLogEntry(ctx context.Context, tx *sql.Tx, editor *model.User, solveID model.SolveID, event model.AuditLogEvent) error
	// AddGeneralLogEntry appends an entry not tied to any object within the
	// caller's transaction.
	AddGeneralLogEntry(ctx context.Context, tx *sql.Tx, editor *model.User, event model.AuditLogEvent) error
	// ListSolveLogEntries returns a solve's entries in reverse-chronological
	// order.
	ListSolveLogEntries(ctx context.Context, solveID model.SolveID) ([]model.AuditLogEntry, error)
	ListGeneralLogEntries(ctx context.Context) ([]model.AuditLogEntry, error)
}

type pgAuditLogRepository struct {
	db *sql.DB
}

func NewPgAuditLogRepository(db *sql.DB) AuditLogRepository {
	return &pgAuditLogRepository{db: db}
}

func (r *pgAuditLogRepository) AddSolveLogEntry(ctx context.Context, tx *sql.Tx, editor *model.User, solveID model.SolveID, event model.AuditLogEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("pgAuditLogRepository.AddSolveLogEntry marshal: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO solve_log (solve_id, editor_id, json_data) VALUES ($1, $2, $3)`,
		solveID, editor.ID, data,
	)
	if err != nil {
		return fmt.Errorf("pgAuditLogRepository.AddSolveLogEntry: %w", err)
	}
	return nil
}

func (r *pgAuditLogRepository) AddGeneralLogEntry(ctx context.Context, tx *sql.Tx, editor *model.User, event model.AuditLogEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("pgAuditLogRepository.AddGeneralLogEntry marshal: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO general_log (editor_id, json_data) VALUES ($1, $2)`,
		editor.ID, data,
	)
	if err != nil {
		return fmt.Errorf("pgAuditLogRepository.AddGeneralLogEntry: %w", err)
	}
	return nil
}

func (r *pgAuditLogRepository) ListSolveLogEntries(ctx context.Context, solveID model.SolveID) ([]model.AuditLogEntry, error) {
	query := `SELECT solve_log.timestamp, solve_log.editor_id, users.username, solve_log.json_data
              FROM solve_log
              LEFT JOIN users ON solve_log.editor_id = users.id
              WHERE solve_log.solve_id = $1
              ORDER BY solve_log.timestamp DESC`
	return r.listEntries(ctx, query, solveID)
}

func (r *pgAuditLogRepository) ListGeneralLogEntries(ctx context.Context) ([]model.AuditLogEntry, error) {
	query := `SELECT general_log.timestamp, general_log.editor_id, users.username, general_log.json_data
              FROM general_log
              LEFT JOIN users ON general_log.editor_id = users.id
              ORDER BY general_log.timestamp DESC`
	return r.listEntries(ctx, query)
}

func (r *pgAuditLogRepository) listEntries(ctx context.Context, query string, args ...interface{}) ([]model.AuditLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgAuditLogRepository.listEntries query: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditLogEntry
	for rows.Next() {
		var entry model.AuditLogEntry
		var data []byte
		if err := rows.Scan(&entry.Timestamp, &entry.EditorID, &entry.EditorName, &data); err != nil {
			return nil, fmt.Errorf("pgAuditLogRepository.listEntries scan: %w", err)
		}
		if err := json.Unmarshal(data, &entry.Event); err != nil {
			// Malformed rows are kept visible rather than dropped.
			entry.Event = model.AuditLogEvent{Type: "unknown", Comment: string(data)}
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgAuditLogRepository.listEntries rows.Err: %w", err)
	}
	return entries, nil
}
