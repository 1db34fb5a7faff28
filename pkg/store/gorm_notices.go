package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marmos91/thunder/pkg/store/models"
)

func (s *GORMStore) GetRestartNotice(ctx context.Context) (*models.RestartNotice, error) {
	var n models.RestartNotice
	err := s.db.WithContext(ctx).Order("created_at DESC").Order("message_id DESC").First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *GORMStore) SaveRestartNotice(ctx context.Context, n *models.RestartNotice) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"chat_id", "created_at"}),
		}).
		Create(n).Error
}

func (s *GORMStore) DeleteRestartNotice(ctx context.Context, messageID int64) error {
	return s.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Delete(&models.RestartNotice{}).Error
}
