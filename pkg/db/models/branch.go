package models

import (
	"time"

	"github.com/google/uuid"
)

// Branch is a physical store location. Branches are managed outside the engine.
type Branch struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Branch) TableName() string { return "branches" }
