package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bazaar-chat/internal/domain/offer"
	bazaar_errors "bazaar-chat/pkg/errors"
)

type PostgresOfferRepository struct {
	db *gorm.DB
}

func NewOfferRepository(db *gorm.DB) OfferRepository {
	return &PostgresOfferRepository{db: db}
}

func (r *PostgresOfferRepository) Create(ctx context.Context, o *offer.Offer) error {
	err := r.db.WithContext(ctx).Create(o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return bazaar_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PostgresOfferRepository) GetByID(ctx context.Context, id uuid.UUID) (offer.Offer, error) {
	var o offer.Offer
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return offer.Offer{}, bazaar_errors.ErrNotFound
		}
		return offer.Offer{}, err
	}
	return o, nil
}

// UpdateStatusIfPending is the single guarded transition point. The WHERE
// clause on status makes lost-update races impossible at the storage level.
func (r *PostgresOfferRepository) UpdateStatusIfPending(ctx context.Context, id uuid.UUID, status string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&offer.Offer{}).
		Where("id = ? AND status = ?", id, offer.StatusPending).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PostgresOfferRepository) ListPendingExpired(ctx context.Context, now time.Time, limit int) ([]offer.Offer, error) {
	var offers []offer.Offer
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", offer.StatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&offers).Error
	if err != nil {
		return nil, err
	}
	return offers, nil
}
