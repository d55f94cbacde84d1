package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/soakstead/soakstead-backend/pkg/db/models"
	apperrors "github.com/soakstead/soakstead-backend/pkg/errors"
)

// Repository persists outbox events in the same transaction as the domain
// write that produced them.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "outbox repository requires db")
	}
	return &Repository{db: db}, nil
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Insert(ctx context.Context, event *models.OutboxEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "insert outbox event")
	}
	return nil
}

// FetchUnpublished returns up to limit unpublished events, oldest first,
// locking the rows so concurrent publishers do not double-send.
func (r *Repository) FetchUnpublished(ctx context.Context, limit int, maxAttempts int) ([]models.OutboxEvent, error) {
	q := r.db.WithContext(ctx)
	// SKIP LOCKED is Postgres-only; the sqlite test harness runs single-writer.
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var events []models.OutboxEvent
	err := q.
		Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "fetch unpublished outbox events")
	}
	return events, nil
}

func (r *Repository) MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published_at": publishedAt,
			"last_error":   nil,
		}).Error
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "mark outbox event published")
	}
	return nil
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, cause string) error {
	err := r.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"last_error":    cause,
		}).Error
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "mark outbox event failed")
	}
	return nil
}

// DeletePublishedBefore removes published events older than the cutoff.
// Used by the retention cron job.
func (r *Repository) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("published_at IS NOT NULL AND published_at < ?", cutoff).
		Delete(&models.OutboxEvent{})
	if res.Error != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, res.Error, "delete published outbox events")
	}
	return res.RowsAffected, nil
}
