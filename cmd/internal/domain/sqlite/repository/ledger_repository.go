package repository

import (
	"dealintake/cmd/internal/domain/entity"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RegisterOutcome is what the registration transaction decided. Duplicate
// and Full are normal business results, not errors.
type RegisterOutcome int

const (
	RegisterFailed RegisterOutcome = iota
	RegisterCreated
	RegisterDuplicate
	RegisterFull
)

type DefaultLedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *DefaultLedgerRepository {
	return &DefaultLedgerRepository{db: db}
}

// EnsureOccurrence lazily creates the ledger row for a provider occurrence
// the first time anything asks about it. Existing rows keep their capacity,
// even if the configured default changed since.
func (l *DefaultLedgerRepository) EnsureOccurrence(occurrenceID string, beginsAt int64, capacity int, now int64) (*entity.MeetingOccurrence, error) {
	occ := entity.MeetingOccurrence{
		OccurrenceID: occurrenceID,
		BeginsAt:     beginsAt,
	}
	err := l.db.
		Where("occurrence_id = ? AND begins_at = ?", occurrenceID, beginsAt).
		Attrs(entity.MeetingOccurrence{Capacity: capacity, GuestCount: 0, CreatedAt: now}).
		FirstOrCreate(&occ).Error
	if err != nil {
		return nil, err
	}
	return &occ, nil
}

func (l *DefaultLedgerRepository) FindOccurrence(occurrenceID string, beginsAt int64) (*entity.MeetingOccurrence, error) {
	var occ entity.MeetingOccurrence
	err := l.db.
		Where("occurrence_id = ? AND begins_at = ?", occurrenceID, beginsAt).
		First(&occ).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &occ, nil
}

// Register runs the whole admit-or-reject decision in one transaction
// against the occurrence row: dedupe check, recount, insert, counter bump.
// The row lock makes count-then-insert serializable per occurrence, so two
// concurrent requests can never both claim the last seat.
func (l *DefaultLedgerRepository) Register(instanceID int, fullName, email string, registeredAt int64) (RegisterOutcome, *entity.Registration, error) {
	outcome := RegisterFailed
	var reg *entity.Registration

	err := l.db.Transaction(func(tx *gorm.DB) error {
		var occ entity.MeetingOccurrence
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&occ, instanceID).Error
		if err != nil {
			return err
		}

		var existing entity.Registration
		err = tx.
			Where("instance_id = ? AND email = ?", instanceID, email).
			First(&existing).Error
		if err == nil {
			outcome = RegisterDuplicate
			reg = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var count int64
		err = tx.Model(&entity.Registration{}).
			Where("instance_id = ?", instanceID).
			Count(&count).Error
		if err != nil {
			return err
		}

		if count >= int64(occ.Capacity) {
			outcome = RegisterFull
			return nil
		}

		created := &entity.Registration{
			InstanceID:   instanceID,
			FullName:     fullName,
			Email:        email,
			RegisteredAt: registeredAt,
		}
		if err := tx.Create(created).Error; err != nil {
			return err
		}

		err = tx.Model(&entity.MeetingOccurrence{}).
			Where("id = ?", instanceID).
			Update("guest_count", count+1).Error
		if err != nil {
			return err
		}

		outcome = RegisterCreated
		reg = created
		return nil
	})
	if err != nil {
		return RegisterFailed, nil, err
	}
	return outcome, reg, nil
}

func (l *DefaultLedgerRepository) CountRegistrations(instanceID int) (int, error) {
	var count int64
	err := l.db.Model(&entity.Registration{}).
		Where("instance_id = ?", instanceID).
		Count(&count).Error
	return int(count), err
}

func (l *DefaultLedgerRepository) FindRegistrations(instanceID int) ([]*entity.Registration, error) {
	var regs []*entity.Registration
	err := l.db.
		Where("instance_id = ?", instanceID).
		Order("registered_at asc").
		Find(&regs).Error
	return regs, err
}
