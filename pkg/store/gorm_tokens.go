package store

import (
	"context"
	"time"

	"github.com/marmos91/thunder/pkg/store/models"
)

// Times are stored in UTC so SQLite's textual comparison orders them correctly.

func (s *GORMStore) CreateToken(ctx context.Context, t *models.AccessToken) error {
	t.ExpiresAt = t.ExpiresAt.UTC()
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.ErrDuplicateToken
		}
		return err
	}
	return nil
}

func (s *GORMStore) GetToken(ctx context.Context, token string) (*models.AccessToken, error) {
	var t models.AccessToken
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&t).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrTokenNotFound)
	}
	return &t, nil
}

func (s *GORMStore) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&models.AccessToken{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
