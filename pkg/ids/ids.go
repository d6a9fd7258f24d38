// Package ids generates identifiers for control-plane callers that
// register an input, output, component, or renderer without supplying
// their own id — mirroring the pack's own `uuid.NewString()` /
// `uuid.New().String()` one-liners used wherever a caller-supplied id
// is optional (e.g. dark_vod's anonymous-creator fallback, goop2's
// message ids).
package ids

import (
	"github.com/google/uuid"

	"github.com/bialy-nvr/compositor/pkg/media"
)

// NewInputId generates a fresh, unique InputId.
func NewInputId() media.InputId { return media.InputId(uuid.NewString()) }

// NewOutputId generates a fresh, unique OutputId.
func NewOutputId() media.OutputId { return media.OutputId(uuid.NewString()) }

// NewComponentId generates a fresh, unique ComponentId.
func NewComponentId() media.ComponentId { return media.ComponentId(uuid.NewString()) }

// NewRendererId generates a fresh, unique RendererId.
func NewRendererId() media.RendererId { return media.RendererId(uuid.NewString()) }

// IsValid reports whether id parses as a UUID, the shape every
// ids.New* constructor produces. Caller-supplied ids that don't need
// to be UUIDs (e.g. a human-chosen "cam1") are still accepted
// everywhere else in this codebase; IsValid exists only for control
// surfaces that specifically want to confirm an id round-trips
// through this package's generator.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
