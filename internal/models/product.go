package models

import "time"

type Product struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	DesignerID string    `gorm:"size:64;not null;index" json:"designer_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Product) TableName() string {
	return "products"
}
