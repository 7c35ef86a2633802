package models

import "time"

type PostStatus string

const (
	PostHidden    PostStatus = "HIDDEN"
	PostDraft     PostStatus = "DRAFT"
	PostPublished PostStatus = "PUBLISHED"
)

type BlockKind string

const (
	BlockRichText BlockKind = "RICH_TEXT"
	BlockMedia    BlockKind = "MEDIA"
)

type Post struct {
	ID               string     `bson:"_id" json:"id"`
	Title            string     `bson:"title" json:"title"`
	ShortDescription string     `bson:"shortDescription" json:"shortDescription"`
	Status           PostStatus `bson:"status" json:"status"`
	TagIDs           []string   `bson:"tagIds" json:"tagIds"`
	MediaID          *string    `bson:"mediaId,omitempty" json:"mediaId,omitempty"`
	Media            *Media     `bson:"-" json:"media,omitempty"`
	Blocks           []Block    `bson:"-" json:"blocks,omitempty"`
	ExternalID       string     `bson:"externalId,omitempty" json:"externalId,omitempty"`
	CreatedBy        string     `bson:"createdBy" json:"createdBy"`
	CreatedAt        time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time  `bson:"updatedAt" json:"updatedAt"`
	DeletedAt        *time.Time `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
}

// Block is one ordered unit of a post's body. Order values are unique within
// a post and renumbered to 1..N whenever reconciliation changes membership.
type Block struct {
	ID      string    `bson:"_id" json:"id"`
	PostID  string    `bson:"postId" json:"postId"`
	Order   int       `bson:"order" json:"order"`
	Kind    BlockKind `bson:"kind" json:"kind"`
	Content string    `bson:"content,omitempty" json:"content,omitempty"`
	MediaID *string   `bson:"mediaId,omitempty" json:"mediaId,omitempty"`
	Media   *Media    `bson:"-" json:"media,omitempty"`
}

type DeltaAction string

const (
	DeltaCreate DeltaAction = "create"
	DeltaUpdate DeltaAction = "update"
	DeltaDelete DeltaAction = "delete"
)

// BlockDelta is one tagged instruction against a post's block sequence.
// Optional fields are pointers: nil means "leave untouched", never "clear".
// FileRef is the symbolic handle into the request's upload batch; on update,
// a non-nil empty FileRef means "clear the block's media" while nil leaves it.
type BlockDelta struct {
	Action  DeltaAction `json:"action"`
	BlockID string      `json:"blockId,omitempty"`
	Kind    *BlockKind  `json:"kind,omitempty"`
	Content *string     `json:"content,omitempty"`
	Order   *int        `json:"order,omitempty"`
	FileRef *string     `json:"fileRef,omitempty"`
}
