package history

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// list is one persisted history list, entries stored as a JSON document.
type list struct {
	Key       string    `gorm:"column:list_key;primaryKey;type:varchar(200)"`
	Entries   string    `gorm:"column:entries;type:text"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (list) TableName() string {
	return "history_lists"
}

type SQLBackend struct {
	db *gorm.DB
}

var _ Backend = (*SQLBackend)(nil)

func OpenSQLite(path string) (*SQLBackend, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return NewSQLBackend(db)
}

func NewSQLBackend(db *gorm.DB) (*SQLBackend, error) {
	if err := db.AutoMigrate(&list{}); err != nil {
		return nil, err
	}
	return &SQLBackend{db: db}, nil
}

func (s *SQLBackend) Load(ctx context.Context, key string) ([]Entry, error) {
	var row list
	err := s.db.WithContext(ctx).Where("list_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(row.Entries), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *SQLBackend) Save(ctx context.Context, key string, entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	row := list{Key: key, Entries: string(data)}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "list_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"entries", "updated_at"}),
		}).Create(&row).Error
	})
}
