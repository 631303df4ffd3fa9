package store

import (
	"time"

	"github.com/ibeckermayer/xmedia/internal/types"
)

// CacheEntry is the persisted media list of one post
type CacheEntry struct {
	PostID     string                 `json:"postId"`
	Items      []types.MediaReference `json:"items"`
	SourceKind types.SourceKind       `json:"sourceKind"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// HistoryEntry summarizes one finished extraction
type HistoryEntry struct {
	ExtractionID string           `json:"extractionId"`
	PostID       string           `json:"postId"`
	SourceKind   types.SourceKind `json:"sourceKind"`
	Succeeded    bool             `json:"succeeded"`
	ItemCount    int              `json:"itemCount"`
	ElapsedMs    int64            `json:"elapsedMs"`
	CreatedAt    time.Time        `json:"createdAt"`
}
