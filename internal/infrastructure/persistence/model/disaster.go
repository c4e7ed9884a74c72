package model

import (
	"time"

	"gorm.io/datatypes"
)

type AuditEntry struct {
	Action    string  `json:"action"`
	UserID    *string `json:"user_id"`
	Timestamp string  `json:"timestamp"`
}

type Disaster struct {
	ID           string                          `gorm:"column:id;type:text;primaryKey"`
	Title        string                          `gorm:"column:title;type:text;not null"`
	Description  string                          `gorm:"column:description;type:text;not null"`
	Location     string                          `gorm:"column:location;type:text;not null"`
	LocationName string                          `gorm:"column:location_name;type:text;not null"`
	Lat          float64                         `gorm:"column:lat;not null"`
	Lon          float64                         `gorm:"column:lon;not null"`
	OwnerID      *string                         `gorm:"column:owner_id;type:text;index"`
	AuditTrail   datatypes.JSONSlice[AuditEntry] `gorm:"column:audit_trail;not null"`
	CreatedAt    time.Time                       `gorm:"column:created_at;not null;index"`
	UpdatedAt    time.Time                       `gorm:"column:updated_at;not null"`
}

func (Disaster) TableName() string {
	return "disasters"
}

// DisasterTag holds one normalized tag. Position keeps the order tags were given in.
type DisasterTag struct {
	DisasterID string `gorm:"column:disaster_id;type:text;not null;primaryKey"`
	Tag        string `gorm:"column:tag;type:text;not null;primaryKey;index"`
	Position   int    `gorm:"column:position;not null;default:0"`
}

func (DisasterTag) TableName() string {
	return "disaster_tags"
}
