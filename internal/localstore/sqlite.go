package localstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type kvEntity struct {
	Key       string    `gorm:"primaryKey;column:name"`
	Value     string    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (kvEntity) TableName() string {
	return "kv"
}

// SQLiteStore keeps the console's local state in a single SQLite file.
type SQLiteStore struct {
	db *gorm.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "kamoa_local.db"
	}
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_journal_mode=WAL"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// one writer at a time; also keeps :memory: databases on one connection
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&kvEntity{}); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	return get(s.db.WithContext(ctx), key)
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	return set(s.db.WithContext(ctx), key, value)
}

func (s *SQLiteStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, ok, err := get(tx, key)
		if err != nil {
			return err
		}
		next, err := fn(current, ok)
		if err != nil {
			return err
		}
		return set(tx, key, next)
	})
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func get(db *gorm.DB, key string) (string, bool, error) {
	var e kvEntity
	err := db.Where("name = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return e.Value, true, nil
}

func set(db *gorm.DB, key, value string) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&kvEntity{Key: key, Value: value}).Error
}
