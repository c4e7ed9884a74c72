package model

import "time"

type Resource struct {
	ID           string    `gorm:"column:id;type:text;primaryKey"`
	DisasterID   string    `gorm:"column:disaster_id;type:text;not null;index"`
	Name         string    `gorm:"column:name;type:text;not null"`
	Type         string    `gorm:"column:type;type:text;not null;default:''"`
	Location     string    `gorm:"column:location;type:text;not null"`
	LocationName string    `gorm:"column:location_name;type:text;not null"`
	Lat          float64   `gorm:"column:lat;not null;index"`
	Lon          float64   `gorm:"column:lon;not null;index"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
}

func (Resource) TableName() string {
	return "resources"
}
