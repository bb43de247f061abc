package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Book is a catalog title with a finite number of circulating copies.
// AvailableCopies never leaves [0, TotalCopies]; Version guards concurrent writers.
type Book struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ISBN            string    `gorm:"column:isbn;type:varchar(32);not null;uniqueIndex:ux_books_isbn"`
	Title           string    `gorm:"column:title;type:varchar(255);not null"`
	Author          string    `gorm:"column:author;type:varchar(255);not null"`
	Publisher       *string   `gorm:"column:publisher;type:varchar(255)"`
	PublicationYear *int      `gorm:"column:publication_year"`
	TotalCopies     int       `gorm:"column:total_copies;not null"`
	AvailableCopies int       `gorm:"column:available_copies;not null"`
	Version         int64     `gorm:"column:version;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Book) TableName() string { return "books" }

func (b *Book) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Version == 0 {
		b.Version = 1
	}
	return nil
}
