package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentStore keeps whole JSON documents in the documents table. It
// satisfies storage.Store.
type DocumentStore struct {
	db *gorm.DB
}

func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) Load(ctx context.Context, name string, v any) error {
	var doc Document
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load document %s: %w", name, err)
	}
	if err := json.Unmarshal(doc.Body, v); err != nil {
		return fmt.Errorf("decode document %s: %w", name, err)
	}
	return nil
}

func (s *DocumentStore) Save(ctx context.Context, name string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", name, err)
	}

	doc := Document{Name: name, Body: datatypes.JSON(body), Revision: 1}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"body":       doc.Body,
			"revision":   gorm.Expr("documents.revision + 1"),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&doc).Error
	if err != nil {
		return fmt.Errorf("save document %s: %w", name, err)
	}
	return nil
}
