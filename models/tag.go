package models

import "time"

// Tag is a named label; posts reference tags through tagIds.
type Tag struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
