package types

// MediaKind distinguishes images from videos
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

// SourceKind records which pipeline stage produced an outcome
type SourceKind string

const (
	SourceCache   SourceKind = "cache"
	SourceAPI     SourceKind = "api"
	SourceDOM     SourceKind = "dom"
	SourceMinimal SourceKind = "minimal"
	SourceNone    SourceKind = "none"
)

// MediaReference is one resolved image or video belonging to a post.
// Values are passed by copy and never modified after they are produced.
type MediaReference struct {
	ID           string    `json:"id"`
	SourceURL    string    `json:"sourceUrl"`
	PreviewURL   string    `json:"previewUrl"`
	Kind         MediaKind `json:"kind"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	AspectRatio  []int     `json:"aspectRatio,omitempty"`
	Ordinal      int       `json:"ordinal"`
	OriginPostID string    `json:"originPostId"`
	OriginAuthor string    `json:"originAuthor"`
	DisplayIndex int       `json:"displayIndex"`
	MediaID      string    `json:"mediaId,omitempty"`
	Quoted       bool      `json:"quoted,omitempty"`
}

// IsVideo reports whether the reference points at playable media
func (m MediaReference) IsVideo() bool {
	return m.Kind == KindVideo
}

// PostContext is the best-effort identity of the post being extracted
type PostContext struct {
	AuthorHandle string  `json:"authorHandle"`
	PostID       string  `json:"postId"`
	CanonicalURL string  `json:"canonicalUrl"`
	DisplayText  string  `json:"displayText,omitempty"`
	Source       string  `json:"source"`
	Confidence   float64 `json:"confidence"`
}

// Diagnostic describes one pipeline stage of an extraction
type Diagnostic struct {
	StrategyName string `json:"strategyName"`
	Succeeded    bool   `json:"succeeded"`
	ItemCount    int    `json:"itemCount"`
	ElapsedMs    int64  `json:"elapsedMs"`
	Skipped      bool   `json:"skipped,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ExtractionOutcome is the full result of one extraction attempt
type ExtractionOutcome struct {
	ExtractionID   string           `json:"extractionId"`
	Succeeded      bool             `json:"succeeded"`
	Items          []MediaReference `json:"items"`
	ActivatedIndex int              `json:"activatedIndex"`
	Diagnostics    []Diagnostic     `json:"diagnostics"`
	SourceKind     SourceKind       `json:"sourceKind"`
	ErrorMessage   string           `json:"errorMessage,omitempty"`
	PostID         string           `json:"postId,omitempty"`
	Context        *PostContext     `json:"context,omitempty"`
	ElapsedMs      int64            `json:"elapsedMs"`
}

// Options toggles optional branches of the extraction pipeline
type Options struct {
	IncludeVideoElements   bool `json:"includeVideoElements" toml:"include_video_elements"`
	PreserveVideoState     bool `json:"preserveVideoState" toml:"preserve_video_state"`
	EnableMutationObserver bool `json:"enableMutationObserver" toml:"enable_mutation_observer"`
	FallbackToVideoAPI     bool `json:"fallbackToVideoApi" toml:"fallback_to_video_api"`
}

// DefaultOptions returns the options used when the caller supplies none
func DefaultOptions() Options {
	return Options{
		IncludeVideoElements: true,
		PreserveVideoState:   true,
		FallbackToVideoAPI:   true,
	}
}

// CloneItems returns a copy of items that shares no backing array with the input
func CloneItems(items []MediaReference) []MediaReference {
	if items == nil {
		return nil
	}
	out := make([]MediaReference, len(items))
	for i, it := range items {
		if it.AspectRatio != nil {
			it.AspectRatio = append([]int(nil), it.AspectRatio...)
		}
		out[i] = it
	}
	return out
}
