package database

import (
	"time"

	"gorm.io/datatypes"
)

// Document is one whole JSON document (users or numbers) stored as a row.
type Document struct {
	Name      string         `gorm:"primaryKey;size:64"`
	Body      datatypes.JSON `gorm:"not null"`
	Revision  int64          `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Document) TableName() string {
	return "documents"
}
