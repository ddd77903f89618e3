package repository

import (
	"gorm.io/gorm"

	"miba-assist-go/internal/model"
)

// InteractionLogRepository persists the analytics rows for answered queries.
type InteractionLogRepository interface {
	Create(entry *model.InteractionLog) error
	UpdateFeedback(interactionID, sentiment string) error
}

type interactionLogRepository struct {
	db *gorm.DB
}

// NewInteractionLogRepository creates the gorm-backed interaction log and
// migrates its table.
func NewInteractionLogRepository(db *gorm.DB) (InteractionLogRepository, error) {
	if err := db.AutoMigrate(&model.InteractionLog{}); err != nil {
		return nil, err
	}
	return &interactionLogRepository{db: db}, nil
}

func (r *interactionLogRepository) Create(entry *model.InteractionLog) error {
	return r.db.Create(entry).Error
}

func (r *interactionLogRepository) UpdateFeedback(interactionID, sentiment string) error {
	return r.db.Model(&model.InteractionLog{}).
		Where("interaction_id = ?", interactionID).
		Update("feedback", sentiment).Error
}
