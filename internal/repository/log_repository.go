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

type PostgresLogRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) LogRepository {
	return &PostgresLogRepository{db: db}
}

func (r *PostgresLogRepository) Create(ctx context.Context, l *emaillog.EmailLog) error {
	res := r.db.WithContext(ctx).Create(l)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return mailwatch_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresLogRepository) GetByID(ctx context.Context, id uuid.UUID) (emaillog.EmailLog, error) {
	var l emaillog.EmailLog
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&l).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emaillog.EmailLog{}, mailwatch_errors.ErrNotFound
		}
		return emaillog.EmailLog{}, err
	}
	return l, nil
}

func (r *PostgresLogRepository) GetByTrackingID(ctx context.Context, trackingID string) (emaillog.EmailLog, error) {
	var l emaillog.EmailLog
	err := r.db.WithContext(ctx).Where("tracking_id = ?", trackingID).First(&l).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emaillog.EmailLog{}, mailwatch_errors.ErrNotFound
		}
		return emaillog.EmailLog{}, err
	}
	return l, nil
}

func (r *PostgresLogRepository) GetByProviderMessageID(ctx context.Context, messageID string) (emaillog.EmailLog, error) {
	var l emaillog.EmailLog
	err := r.db.WithContext(ctx).Where("provider_message_id = ?", messageID).First(&l).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emaillog.EmailLog{}, mailwatch_errors.ErrNotFound
		}
		return emaillog.EmailLog{}, err
	}
	return l, nil
}

func (r *PostgresLogRepository) Update(ctx context.Context, l emaillog.EmailLog) error {
	res := r.db.WithContext(ctx).Save(&l)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return mailwatch_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresLogRepository) List(ctx context.Context, filter ListFilter) ([]emaillog.EmailLog, int64, error) {
	q := r.db.WithContext(ctx).Model(&emaillog.EmailLog{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Recipient != "" {
		q = q.Where("recipient = ?", filter.Recipient)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	var logs []emaillog.EmailLog
	err := q.Order("sent_at DESC").Limit(limit).Offset(offset).Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func (r *PostgresLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("sent_at < ?", cutoff).
		Delete(&emaillog.EmailLog{})
	return res.RowsAffected, res.Error
}

func (r *PostgresLogRepository) CompressBodiesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&emaillog.EmailLog{}).
		Where("sent_at < ? AND (body IS NOT NULL OR headers IS NOT NULL)", cutoff).
		Updates(map[string]interface{}{
			"body":    nil,
			"headers": nil,
		})
	return res.RowsAffected, res.Error
}

func (r *PostgresLogRepository) CountsByStatus(ctx context.Context, from, to time.Time) (StatusCounts, error) {
	var counts StatusCounts
	err := r.db.WithContext(ctx).
		Model(&emaillog.EmailLog{}).
		Select(`COUNT(*) AS sent,
			COUNT(delivered_at) AS delivered,
			COUNT(opened_at) AS opened,
			COUNT(clicked_at) AS clicked,
			COUNT(*) FILTER (WHERE status = 'bounced') AS bounced,
			COUNT(*) FILTER (WHERE status = 'complained') AS complained`).
		Where("sent_at >= ? AND sent_at < ?", from, to).
		Scan(&counts).Error
	return counts, err
}

func (r *PostgresLogRepository) DailyCounts(ctx context.Context, from, to time.Time) ([]DailyCount, error) {
	var rows []DailyCount
	err := r.db.WithContext(ctx).
		Model(&emaillog.EmailLog{}).
		Select(`date_trunc('day', sent_at) AS day,
			COUNT(*) AS sent,
			COUNT(delivered_at) AS delivered,
			COUNT(opened_at) AS opened,
			COUNT(clicked_at) AS clicked,
			COUNT(*) FILTER (WHERE status = 'bounced') AS bounced`).
		Where("sent_at >= ? AND sent_at < ?", from, to).
		Group("date_trunc('day', sent_at)").
		Order("day ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *PostgresLogRepository) TemplateEngagement(ctx context.Context, from, to time.Time) ([]TemplateEngagement, error) {
	var rows []TemplateEngagement
	err := r.db.WithContext(ctx).
		Model(&emaillog.EmailLog{}).
		Select(`template_id,
			COUNT(*) AS sent,
			COUNT(opened_at) AS opened,
			COUNT(clicked_at) AS clicked`).
		Where("sent_at >= ? AND sent_at < ? AND template_id IS NOT NULL", from, to).
		Group("template_id").
		Scan(&rows).Error
	return rows, err
}

func (r *PostgresLogRepository) DomainCounts(ctx context.Context, from, to time.Time) ([]DomainCount, error) {
	var rows []DomainCount
	err := r.db.WithContext(ctx).
		Model(&emaillog.EmailLog{}).
		Select(`split_part(recipient, '@', 2) AS domain,
			COUNT(*) AS sent,
			COUNT(delivered_at) AS delivered,
			COUNT(*) FILTER (WHERE status = 'bounced') AS bounced,
			COUNT(opened_at) AS opened,
			COUNT(clicked_at) AS clicked`).
		Where("sent_at >= ? AND sent_at < ?", from, to).
		Group("split_part(recipient, '@', 2)").
		Scan(&rows).Error
	return rows, err
}
