package models

import "time"

// FieldMapping declares how one external feed item field lands on an
// internal post field.
type FieldMapping struct {
	InternalField string `bson:"internalField" json:"internalField"`
	ExternalField string `bson:"externalField" json:"externalField"`
}

// RssSource is a polled external feed. Interval is in seconds; while
// IsStopped is false a recurring task keyed by the source ID ingests it.
type RssSource struct {
	ID          string         `bson:"_id" json:"id"`
	Source      string         `bson:"source" json:"source"`
	Interval    int            `bson:"interval" json:"interval"`
	IsStopped   bool           `bson:"isStopped" json:"isStopped"`
	CreatedBy   string         `bson:"createdBy" json:"createdBy"`
	Connections []FieldMapping `bson:"connections" json:"connections"`
	CreatedAt   time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time      `bson:"updatedAt" json:"updatedAt"`
}
