package models

import "time"

type MixinStatus string

const (
	MixinHidden  MixinStatus = "HIDDEN"
	MixinVisible MixinStatus = "VISIBLE"
)

// Mixin is secondary content spliced into listings. OrderPercentage ranks
// candidates (higher first); ConcatTypes names the listing contexts it may
// appear in.
type Mixin struct {
	ID              string      `bson:"_id" json:"id"`
	ConcatTypes     []string    `bson:"concatTypes" json:"concatTypes"`
	OrderPercentage int         `bson:"orderPercentage" json:"orderPercentage"`
	Status          MixinStatus `bson:"status" json:"status"`
	Text            string      `bson:"text,omitempty" json:"text,omitempty"`
	Link            string      `bson:"link,omitempty" json:"link,omitempty"`
	MediaID         *string     `bson:"mediaId,omitempty" json:"mediaId,omitempty"`
	Media           *Media      `bson:"-" json:"media,omitempty"`
	CreatedAt       time.Time   `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time   `bson:"updatedAt" json:"updatedAt"`
}

// MixinSetting caps how many mixins are injected per page for one context.
type MixinSetting struct {
	ID            string `bson:"_id" json:"id"`
	ConcatType    string `bson:"concatType" json:"concatType"`
	AmountPerPage int    `bson:"amountPerPage" json:"amountPerPage"`
}
