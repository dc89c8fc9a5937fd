package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/storage"
)

const operationColumns = `id, kind, collection, payload, enqueued_at, attempts, last_error, status`

func (s *Store) EnqueueOperation(ctx context.Context, op models.PendingOperation) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if op.Status == "" {
		op.Status = models.OpStatusPending
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO pending_operations (`+operationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, string(op.Kind), string(op.Collection), string(op.Payload),
		formatTime(op.EnqueuedAt), op.Attempts, op.LastError, string(op.Status))
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", op, err)
	}
	return nil
}

func scanOperation(row scanner) (models.PendingOperation, error) {
	var op models.PendingOperation
	var kind, collection, payload, enqueuedAt, status string

	if err := row.Scan(&op.ID, &kind, &collection, &payload, &enqueuedAt, &op.Attempts, &op.LastError, &status); err != nil {
		return models.PendingOperation{}, err
	}
	op.Kind = models.OpKind(kind)
	op.Collection = models.Collection(collection)
	op.Payload = []byte(payload)
	op.Status = models.OpStatus(status)

	var err error
	if op.EnqueuedAt, err = parseTime(enqueuedAt, "enqueued_at"); err != nil {
		return models.PendingOperation{}, err
	}
	return op, nil
}

func (s *Store) operationsByStatus(ctx context.Context, status models.OpStatus) ([]models.PendingOperation, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+operationColumns+`
		FROM pending_operations WHERE status = ?
		ORDER BY enqueued_at, seq`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ops := []models.PendingOperation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func (s *Store) PendingOperations(ctx context.Context) ([]models.PendingOperation, error) {
	return s.operationsByStatus(ctx, models.OpStatusPending)
}

func (s *Store) DeadOperations(ctx context.Context) ([]models.PendingOperation, error) {
	return s.operationsByStatus(ctx, models.OpStatusDead)
}

func (s *Store) GetOperation(ctx context.Context, id string) (models.PendingOperation, error) {
	db, err := s.conn()
	if err != nil {
		return models.PendingOperation{}, err
	}

	op, err := scanOperation(db.QueryRowContext(ctx, `SELECT `+operationColumns+` FROM pending_operations WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PendingOperation{}, fmt.Errorf("operation %s: %w", id, storage.ErrNotFound)
		}
		return models.PendingOperation{}, err
	}
	return op, nil
}

// UpdateOperation persists the attempt bookkeeping of op. Kind, collection,
// payload and queue position never change.
func (s *Store) UpdateOperation(ctx context.Context, op models.PendingOperation) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `
		UPDATE pending_operations SET attempts = ?, last_error = ?, status = ?
		WHERE id = ?`,
		op.Attempts, op.LastError, string(op.Status), op.ID)
	if err != nil {
		return fmt.Errorf("failed to update operation %s: %w", op.ID, err)
	}
	return requireAffected(res, "operation", op.ID)
}

func (s *Store) DeleteOperation(ctx context.Context, id string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM pending_operations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete operation %s: %w", id, err)
	}
	return nil
}

func (s *Store) RequeueOperation(ctx context.Context, id string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `
		UPDATE pending_operations SET attempts = 0, last_error = '', status = ?
		WHERE id = ? AND status = ?`,
		string(models.OpStatusPending), id, string(models.OpStatusDead))
	if err != nil {
		return fmt.Errorf("failed to requeue operation %s: %w", id, err)
	}
	return requireAffected(res, "dead operation", id)
}

func requireAffected(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, storage.ErrNotFound)
	}
	return nil
}
