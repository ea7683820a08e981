package model

import "time"

// Tier is an asset's processing stage. Promotion only ever moves forward:
// raw -> reviewed -> finalized.
type Tier string

const (
	TierRaw       Tier = "raw"
	TierReviewed  Tier = "reviewed"
	TierFinalized Tier = "finalized"
)

// Next returns the tier a successful promotion from t produces.
// ok is false for the terminal tier.
func (t Tier) Next() (next Tier, ok bool) {
	switch t {
	case TierRaw:
		return TierReviewed, true
	case TierReviewed:
		return TierFinalized, true
	default:
		return "", false
	}
}

// Valid reports whether t is one of the three known tiers.
func (t Tier) Valid() bool {
	return t == TierRaw || t == TierReviewed || t == TierFinalized
}

// Asset is an abstract photographic work. It is immutable once created and
// is never deleted while any FileInstance references it.
type Asset struct {
	ID               string // UUID
	OriginalFilename string
	CreatedAt        time.Time
}

// FileInstance is one concrete stored file representing an Asset at a given
// tier. Promotion creates the next tier's instance and marks the prior one
// superseded; superseded instances are retained for audit.
type FileInstance struct {
	ID             string // UUID
	AssetID        string // Foreign key to Asset
	Tier           Tier
	FilePath       string // Blob store content key
	FileSize       int64
	MimeType       string
	ContentHash    string  // SHA-256 over the exact byte stream, hex
	PerceptualHash *uint64 // 64-bit average hash; nil when the content was undecodable
	IsReviewed     bool
	Rating         int // 0-5
	Discarded      bool // Lost a duplicate/burst decision; excluded from grouping and promotion
	KeptDuplicate  bool // Explicitly kept despite a matching group; exempt from content-hash uniqueness
	Superseded     bool // A later-tier instance exists for the same asset
	Metadata       Metadata
	CaptureTime    *time.Time // From EXIF when available
	CreatedAt      time.Time
}

// Metadata is the structured metadata blob carried by a FileInstance.
// Both halves are optional; fields are typed rather than an open map so
// transition preconditions stay checkable.
type Metadata struct {
	Exif *ExifMetadata `json:"exif,omitempty"`
	AI   *AIAnnotation `json:"ai,omitempty"`
}

// ExifMetadata is the best-effort capture metadata supplied by the
// metadata reader collaborator. Any field may be absent.
type ExifMetadata struct {
	CaptureTime  *time.Time `json:"captureTime,omitempty"`
	Camera       string     `json:"camera,omitempty"`
	Lens         string     `json:"lens,omitempty"`
	ISO          string     `json:"iso,omitempty"`
	Aperture     string     `json:"aperture,omitempty"`
	GPSLatitude  *float64   `json:"gpsLatitude,omitempty"`
	GPSLongitude *float64   `json:"gpsLongitude,omitempty"`
}

// AIAnnotation is the output of the external annotator collaborator.
type AIAnnotation struct {
	Tags        []string           `json:"tags,omitempty"`
	Description string             `json:"description,omitempty"`
	Confidence  map[string]float64 `json:"confidence,omitempty"`
	// Sharpness is the annotator's quality score (0-100) when supplied;
	// burst best-of-group selection prefers it.
	Sharpness *float64 `json:"sharpness,omitempty"`
}

// TransitionRecord is an append-only log entry for an attempted promotion.
// Records are never mutated or deleted; a successful record doubles as the
// idempotence marker for its (asset, from-tier) pair.
type TransitionRecord struct {
	Seq       int64  // Auto-increment, used as the catalog snapshot version
	ID        string // UUID
	AssetID   string
	FromTier  Tier
	ToTier    Tier
	Actor     string
	Outcome   Outcome
	Reason    string // Populated on failure
	CreatedAt time.Time
}

// Outcome is the result of an attempted transition.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)
