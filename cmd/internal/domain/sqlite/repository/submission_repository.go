package repository

import (
	"dealintake/cmd/internal/domain/entity"
	"errors"

	"gorm.io/gorm"
)

type DefaultSubmissionRepository struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *DefaultSubmissionRepository {
	return &DefaultSubmissionRepository{db: db}
}

func (s *DefaultSubmissionRepository) Save(submission *entity.Submission) error {
	return s.db.Save(submission).Error
}

func (s *DefaultSubmissionRepository) FindByID(id int) (*entity.Submission, error) {
	var sub entity.Submission
	err := s.db.First(&sub, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &sub, err
}

func (s *DefaultSubmissionRepository) FindAll(formType entity.FormType, limit, offset int) ([]*entity.Submission, error) {
	q := s.db.Order("created_at desc")
	if formType != "" {
		q = q.Where("form_type = ?", formType)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var subs []*entity.Submission
	err := q.Find(&subs).Error
	return subs, err
}

// UpdateFlags persists only the processing-status columns, so background
// jobs never race the admin dashboard over questionnaire content.
func (s *DefaultSubmissionRepository) UpdateFlags(id int, updates map[string]any) error {
	return s.db.Model(&entity.Submission{}).
		Where("id = ?", id).
		Updates(updates).Error
}
