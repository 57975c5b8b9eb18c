package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"swellwatch/internal/types"
)

// AlertRepository provides data access for the sent_alerts ledger table.
// Rows are append-only; nothing here updates or deletes.
type AlertRepository struct {
	db DBTX
}

// NewAlertRepository creates an AlertRepository backed by the given database
// connection (pool or transaction).
func NewAlertRepository(db DBTX) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `a.id, a.trigger_id, a.spot_id, a.user_id,
	a.sent_at, a.label, a.message, a.outcomes`

// RecordAlert appends one row to the ledger. Failures surface as
// ErrCodeLedgerWrite so the orchestrator can count them separately from
// ordinary database errors.
func (r *AlertRepository) RecordAlert(ctx context.Context, alert *types.SentAlert) error {
	query := `
		INSERT INTO sent_alerts (id, trigger_id, spot_id, user_id, sent_at, label, message, outcomes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		alert.ID,
		alert.TriggerID,
		alert.SpotID,
		alert.UserID,
		alert.SentAt,
		string(alert.Label),
		alert.Message,
		alert.Outcomes,
	)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrCodeLedgerWrite,
			"failed to record sent alert", err,
			map[string]any{"trigger_id": alert.TriggerID})
	}
	return nil
}

// LastAlertFor returns the most recent ledger row for the trigger, or nil
// when the trigger has never alerted.
func (r *AlertRepository) LastAlertFor(ctx context.Context, triggerID string) (*types.SentAlert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM sent_alerts a
		WHERE a.trigger_id = $1
		ORDER BY a.sent_at DESC
		LIMIT 1`

	alert, err := scanAlert(r.db.QueryRow(ctx, query, triggerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read last alert", err)
	}
	return alert, nil
}

// ListRecentByUser returns the user's alert history, newest first. limit
// values outside (0, 100] clamp to 50.
func (r *AlertRepository) ListRecentByUser(ctx context.Context, userID string, limit int) ([]types.SentAlert, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT ` + alertColumns + `
		FROM sent_alerts a
		WHERE a.user_id = $1
		ORDER BY a.sent_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list alerts", err)
	}
	defer rows.Close()

	var alerts []types.SentAlert
	for rows.Next() {
		alert, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan alert row", scanErr)
		}
		alerts = append(alerts, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating alert rows", err)
	}

	return alerts, nil
}

// scanAlert scans one ledger row. Column order must match alertColumns.
func scanAlert(row pgx.Row) (*types.SentAlert, error) {
	var a types.SentAlert
	var label *string

	err := row.Scan(
		&a.ID,
		&a.TriggerID,
		&a.SpotID,
		&a.UserID,
		&a.SentAt,
		&label,
		&a.Message,
		&a.Outcomes,
	)
	if err != nil {
		return nil, err
	}
	if label != nil {
		a.Label = types.ConditionLabel(*label)
	}
	return &a, nil
}

// Compile-time assertion that AlertRepository satisfies AlertLedger.
var _ types.AlertLedger = (*AlertRepository)(nil)
