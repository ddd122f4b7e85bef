package approval

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Action enumerates approval event actions.
type Action string

const (
	// ActionSubmit marks chain creation.
	ActionSubmit Action = "SUBMIT"
	// ActionApprove marks a step approval.
	ActionApprove Action = "APPROVE"
	// ActionReject marks a terminal rejection.
	ActionReject Action = "REJECT"
	// ActionSkip marks an auto-advanced step with no configured approver.
	ActionSkip Action = "SKIP"
	// ActionDisburse marks the payout of an approved request.
	ActionDisburse Action = "DISBURSE"
)

// Event is a single immutable row in the approval history.
type Event struct {
	ID      int64
	Module  string
	RefID   uuid.UUID
	Level   int
	ActorID int64
	Action  Action
	Note    string
	At      time.Time
}

// EventLog persists approval history as append-only rows, one per event.
type EventLog struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewEventLog constructs an EventLog.
func NewEventLog(pool *pgxpool.Pool, logger *slog.Logger) *EventLog {
	return &EventLog{pool: pool, logger: logger}
}

// Record writes an approval event to the database.
func (l *EventLog) Record(ctx context.Context, evt Event) error {
	if l == nil {
		return errors.New("approval event log not initialised")
	}
	if evt.Module == "" {
		return errors.New("approval module required")
	}
	if evt.RefID == uuid.Nil {
		return errors.New("approval ref id required")
	}
	if evt.Action == "" {
		return errors.New("approval action required")
	}
	_, err := l.pool.Exec(ctx, `INSERT INTO approval_events (module, ref_id, level, actor_id, action, note, at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`, evt.Module, evt.RefID, evt.Level, evt.ActorID, string(evt.Action), evt.Note, evt.At)
	if err != nil {
		if l.logger != nil {
			l.logger.Error("record approval event", slog.Any("error", err))
		}
		return err
	}
	return nil
}

// List returns the approval history for a module/ref in insertion order.
func (l *EventLog) List(ctx context.Context, module string, ref uuid.UUID) ([]Event, error) {
	if l == nil {
		return nil, errors.New("approval event log not initialised")
	}
	rows, err := l.pool.Query(ctx, `SELECT id, module, ref_id, level, actor_id, action, note, at
FROM approval_events WHERE module=$1 AND ref_id=$2 ORDER BY id ASC`, module, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []Event
	for rows.Next() {
		var evt Event
		var action string
		if err := rows.Scan(&evt.ID, &evt.Module, &evt.RefID, &evt.Level, &evt.ActorID, &action, &evt.Note, &evt.At); err != nil {
			return nil, err
		}
		evt.Action = Action(action)
		events = append(events, evt)
	}
	return events, rows.Err()
}
