package models

import "time"

// Document is one row of the SQL-backed document store. Data holds the JSON
// encoded field map; Version increases on every committed write.
type Document struct {
	Collection string    `gorm:"column:collection;primaryKey;type:varchar(512)"`
	ID         string    `gorm:"column:id;primaryKey;type:varchar(255)"`
	Data       string    `gorm:"column:data;type:text;not null"`
	Version    int64     `gorm:"column:version;not null;default:1"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null"`
}

func (Document) TableName() string { return "documents" }
