package library

import (
	"errors"

	"github.com/metcalfcloud/pictallion/internal/identity"
)

// Error taxonomy for the pipeline. Callers branch with errors.Is; everything
// else (storage, blob store) is propagated as plain wrapped errors.
var (
	// ErrUndecodable means the content could not be decoded as an image, so
	// no perceptual hash exists. Non-fatal at ingestion (the instance
	// degrades to content-hash-only matching) but blocks annotation until
	// the hash is backfilled. Aliases the identity package's sentinel so
	// both spellings satisfy errors.Is.
	ErrUndecodable = identity.ErrUndecodable

	// ErrAnnotationFailed means the external annotator errored or timed out.
	// The asset stays in raw; the caller may retry.
	ErrAnnotationFailed = errors.New("annotation failed")

	// ErrInstanceDiscarded means the instance lost a duplicate or burst
	// decision. Not retryable until the group decision is revisited.
	ErrInstanceDiscarded = errors.New("instance discarded by group decision")

	// ErrTransitionConflict means a concurrent promotion won the race. The
	// caller should re-read current state before deciding whether to retry.
	ErrTransitionConflict = errors.New("transition conflict")

	// ErrAssetNotFound is returned when an asset id resolves to nothing.
	ErrAssetNotFound = errors.New("asset not found")
)
