package sqlite

import (
	"dealintake/cmd/internal/domain/entity"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func Init(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&entity.User{},
		&entity.Submission{},
		&entity.MeetingOccurrence{},
		&entity.Registration{},
		&entity.EventLink{},
	)
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer; one pooled connection keeps gorm from
	// tripping over SQLITE_BUSY under concurrent requests.
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}
