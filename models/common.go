package models

// PaginationMeta describes one page of a listing.
type PaginationMeta struct {
	Count      int64 `json:"count"`
	Limit      int64 `json:"limit"`
	Page       int64 `json:"page"`
	TotalPages int64 `json:"totalPages"`
}

// Index represents an indexing-related message emitted on entity changes.
type Index struct {
	EntityType string `json:"entity_type"`
	Method     string `json:"method"`
	EntityId   string `json:"entity_id"`
	Title      string `json:"title,omitempty"`
}
