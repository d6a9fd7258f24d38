// Package media defines the data model shared by every stage of the
// pipeline: identifiers, presentation timestamps, frames, audio
// samples, and the per-tick sets that bind them to inputs and outputs.
package media

// InputId identifies a registered input, unique within one pipeline
// instance.
type InputId string

// OutputId identifies a registered output, unique within one pipeline
// instance.
type OutputId string

// ComponentId identifies a scene component across updates so that its
// stateful counterpart can be matched by reconciliation.
type ComponentId string

// RendererId identifies a registered renderer (image, shader, web).
type RendererId string
