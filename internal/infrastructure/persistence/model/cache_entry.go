package model

import "time"

// CacheEntry is one row of the store-backed cache. Value holds the serialized payload.
type CacheEntry struct {
	Key       string    `gorm:"column:key;type:text;primaryKey"`
	Value     string    `gorm:"column:value;type:text;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (CacheEntry) TableName() string {
	return "cache"
}
