package repository

import (
	"context"
	"errors"
	"time"

	"mailwatch/internal/domain/emaillog"
	mailwatch_errors "mailwatch/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresEventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &PostgresEventRepository{db: db}
}

func (r *PostgresEventRepository) Create(ctx context.Context, e *emaillog.EmailEvent) error {
	res := r.db.WithContext(ctx).Create(e)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return mailwatch_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresEventRepository) GetByMessageIDAndType(ctx context.Context, messageID string, evtType emaillog.EventType) (emaillog.EmailEvent, error) {
	var e emaillog.EmailEvent
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND event_type = ?", messageID, evtType).
		First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emaillog.EmailEvent{}, mailwatch_errors.ErrNotFound
		}
		return emaillog.EmailEvent{}, err
	}
	return e, nil
}

func (r *PostgresEventRepository) ListByLog(ctx context.Context, logID uuid.UUID) ([]emaillog.EmailEvent, error) {
	var events []emaillog.EmailEvent
	err := r.db.WithContext(ctx).
		Where("log_id = ?", logID).
		Order("occurred_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *PostgresEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("occurred_at < ?", cutoff).
		Delete(&emaillog.EmailEvent{})
	return res.RowsAffected, res.Error
}

func (r *PostgresEventRepository) GeoCounts(ctx context.Context, from, to time.Time) ([]GeoCount, error) {
	var rows []GeoCount
	err := r.db.WithContext(ctx).
		Model(&emaillog.EmailEvent{}).
		Select(`country, region,
			COUNT(*) FILTER (WHERE event_type = 'open') AS opens,
			COUNT(*) FILTER (WHERE event_type = 'click') AS clicks`).
		Where("occurred_at >= ? AND occurred_at < ? AND country IS NOT NULL", from, to).
		Group("country, region").
		Order("opens DESC").
		Scan(&rows).Error
	return rows, err
}
