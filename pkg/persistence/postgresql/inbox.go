package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/foreman-hq/foreman/pkg/models"
	"github.com/foreman-hq/foreman/pkg/persistence"
)

// InboxRepository handles inbox item database operations.
type InboxRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const inboxColumns = `
		id
	  , team_id
	  , ref_type
	  , ref_id
	  , title
	  , urgency
	  , confidence
	  , approved_at
	  , rejected_at
	  , created_at
	  , updated_at
`

func (r *InboxRepository) Save(ctx context.Context, item *models.InboxItem) error {
	now := time.Now().UTC()

	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}

	item.UpdatedAt = now

	if item.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate inbox item ID: %w", err)
		}

		item.ID = id.String()
	}

	query := `
		INSERT INTO inbox_items (id, team_id, ref_type, ref_id, title, urgency,
confidence, approved_at, rejected_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			urgency = EXCLUDED.urgency,
			confidence = EXCLUDED.confidence,
			approved_at = EXCLUDED.approved_at,
			rejected_at = EXCLUDED.rejected_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.TeamID,
		item.RefType,
		item.RefID,
		item.Title,
		item.Urgency,
		item.Confidence,
		item.ApprovedAt,
		item.RejectedAt,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save inbox item: %w", err)
	}

	return nil
}

func (r *InboxRepository) GetByID(ctx context.Context, id string) (*models.InboxItem, error) {
	query := `SELECT ` + inboxColumns + ` FROM inbox_items WHERE id = $1`

	item, err := r.scanInboxItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "inbox_item", id, persistence.ErrInboxItemNotFound)
		}

		return nil, fmt.Errorf("failed to scan inbox item: %w", err)
	}

	return item, nil
}

func (r *InboxRepository) ListPendingByTeam(ctx context.Context, teamID string) ([]*models.InboxItem, error) {
	query := `
		SELECT ` + inboxColumns + `
		FROM inbox_items
		WHERE team_id = $1 AND approved_at IS NULL AND rejected_at IS NULL
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query inbox items: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	items := make([]*models.InboxItem, 0)

	for rows.Next() {
		item, err := r.scanInboxItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inbox item: %w", err)
		}

		items = append(items, item)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating inbox items: %w", err)
	}

	return items, nil
}

func (r *InboxRepository) scanInboxItem(scanner interface {
	Scan(dest ...any) error
}) (*models.InboxItem, error) {
	var item models.InboxItem

	err := scanner.Scan(
		&item.ID,
		&item.TeamID,
		&item.RefType,
		&item.RefID,
		&item.Title,
		&item.Urgency,
		&item.Confidence,
		&item.ApprovedAt,
		&item.RejectedAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &item, nil
}
