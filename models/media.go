package models

import "time"

// Media is a stored binary object. FileKey is the opaque object-store key;
// URLs are resolved lazily from it and never persisted.
type Media struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	MimeType  string    `bson:"mimeType" json:"mimeType"`
	Size      int64     `bson:"size" json:"size"`
	Encoding  string    `bson:"encoding,omitempty" json:"encoding,omitempty"`
	FileKey   string    `bson:"fileKey" json:"-"`
	ThumbKey  string    `bson:"thumbKey,omitempty" json:"-"`
	FileSrc   string    `bson:"-" json:"fileSrc,omitempty"`
	ThumbSrc  string    `bson:"-" json:"thumbSrc,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
