package repository

import (
	"dealintake/cmd/internal/domain/entity"

	"gorm.io/gorm"
)

type DefaultEventLinkRepository struct {
	db *gorm.DB
}

func NewEventLinkRepository(db *gorm.DB) *DefaultEventLinkRepository {
	return &DefaultEventLinkRepository{db: db}
}

func (e *DefaultEventLinkRepository) FindEventIDs(formType entity.FormType, host string) ([]string, error) {
	var ids []string
	err := e.db.Model(&entity.EventLink{}).
		Where("form_type = ? AND host = ?", formType, host).
		Order("event_id asc").
		Pluck("event_id", &ids).Error
	return ids, err
}

func (e *DefaultEventLinkRepository) FindAll() ([]*entity.EventLink, error) {
	var links []*entity.EventLink
	err := e.db.Order("form_type asc, host asc").Find(&links).Error
	return links, err
}

// ReplaceAll swaps the whole index in one transaction. The index is
// admin-written and reader-many; a full rebuild on sync keeps it simple.
func (e *DefaultEventLinkRepository) ReplaceAll(links []*entity.EventLink) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&entity.EventLink{}).Error; err != nil {
			return err
		}
		if len(links) == 0 {
			return nil
		}
		return tx.Create(&links).Error
	})
}

func (e *DefaultEventLinkRepository) DeleteByEventID(eventID string) error {
	return e.db.Where("event_id = ?", eventID).Delete(&entity.EventLink{}).Error
}
