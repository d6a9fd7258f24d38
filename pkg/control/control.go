// Package control defines the request/response shapes the (excluded)
// HTTP/JSON control surface would marshal to and from — plain Go
// structs only, no handler, consistent with spec.md's "interfaces are
// specified only where the core consumes or produces data."
package control

import (
	"time"

	"github.com/bialy-nvr/compositor/pkg/media"
	"github.com/bialy-nvr/compositor/pkg/orchestrator"
	"github.com/bialy-nvr/compositor/pkg/scene"
)

// InputKind enumerates the Decoder Adapter transports register_input
// can request.
type InputKind string

const (
	InputKindRTP           InputKind = "rtp"
	InputKindMP4File       InputKind = "mp4_file"
	InputKindMP4Fragmented InputKind = "mp4_fragmented"
	InputKindHLS           InputKind = "hls"
)

// QueueOptions mirrors pkg/inputqueue.Options at the control-surface
// boundary (kept as a separate type rather than reusing Options
// directly so this package has no dependency on pkg/inputqueue, which
// wires decoder-package-specific types control shouldn't need).
type QueueOptions struct {
	Required       bool          `json:"required"`
	Offset         time.Duration `json:"offset"`
	BufferDuration time.Duration `json:"bufferDuration"`
}

// InputSpec is register_input's request body.
type InputSpec struct {
	Kind         InputKind        `json:"kind"`
	Source       string           `json:"source"` // SDP path, file path, playlist URL, depending on Kind
	QueueOptions QueueOptions     `json:"queueOptions"`
	Resolution   media.Resolution `json:"resolution"`
}

// RegisterInputRequest is register_input's full request.
type RegisterInputRequest struct {
	InputId media.InputId `json:"inputId"`
	Spec     InputSpec    `json:"spec"`
}

// RegisterInputResponse is register_input's response. AssignedPort is
// set only for transports that bind a socket (e.g. rtp).
type RegisterInputResponse struct {
	AssignedPort int `json:"assignedPort,omitempty"`
}

// UnregisterInputRequest is unregister_input's request.
type UnregisterInputRequest struct {
	InputId      media.InputId `json:"inputId"`
	ScheduleTime time.Duration `json:"scheduleTime,omitempty"`
}

// OutputSpec is register_output's request body.
type OutputSpec struct {
	Protocol    string           `json:"protocol"` // e.g. "rtp", "file"
	Destination string           `json:"destination"`
	Video       *VideoOutputSpec `json:"video,omitempty"`
	Audio       *AudioOutputSpec `json:"audio,omitempty"`
}

// VideoOutputSpec configures a video stream's resolution and end
// condition.
type VideoOutputSpec struct {
	Resolution   media.Resolution `json:"resolution"`
	EndCondition EndCondition     `json:"endCondition"`
}

// AudioOutputSpec configures an audio stream's sample rate and end
// condition.
type AudioOutputSpec struct {
	SampleRate   int          `json:"sampleRate"`
	EndCondition EndCondition `json:"endCondition"`
}

// EndCondition is the wire form of orchestrator.EndCondition: a kind
// tag plus the input list AnyOf/AllOf need. ToOrchestrator translates
// it into the concrete type the Orchestrator's registration calls
// expect.
type EndCondition struct {
	Kind   string          `json:"kind"` // "any_of", "all_of", "any_input", "all_inputs", "never"
	Inputs []media.InputId `json:"inputs,omitempty"`
}

// ToOrchestrator resolves the wire EndCondition into the concrete
// orchestrator.EndCondition variant RegisterVideoOutput/
// RegisterAudioOutput expect.
func (e EndCondition) ToOrchestrator() orchestrator.EndCondition {
	switch e.Kind {
	case "any_of":
		return orchestrator.AnyOf{Inputs: e.Inputs}
	case "all_of":
		return orchestrator.AllOf{Inputs: e.Inputs}
	case "any_input":
		return orchestrator.AnyInput{}
	case "all_inputs":
		return orchestrator.AllInputs{}
	default:
		return orchestrator.Never{}
	}
}

// RegisterOutputRequest is register_output's full request.
type RegisterOutputRequest struct {
	OutputId media.OutputId `json:"outputId"`
	Spec     OutputSpec     `json:"spec"`
}

// RegisterOutputResponse is register_output's response. AssignedPort
// is set only for protocols that bind a socket.
type RegisterOutputResponse struct {
	AssignedPort int `json:"assignedPort,omitempty"`
}

// UnregisterOutputRequest is unregister_output's request.
type UnregisterOutputRequest struct {
	OutputId     media.OutputId `json:"outputId"`
	ScheduleTime time.Duration  `json:"scheduleTime,omitempty"`
}

// RendererKind enumerates register_renderer's asset kinds.
type RendererKind string

const (
	RendererKindImage  RendererKind = "image"
	RendererKindShader RendererKind = "shader"
	RendererKindWeb    RendererKind = "web"
)

// RendererSpec is register_renderer's request body. Only the fields
// matching Kind are meaningful.
type RendererSpec struct {
	Kind       RendererKind     `json:"kind"`
	Source     string           `json:"source"`     // image: URL or local path; shader: Kage source path
	Resolution media.Resolution `json:"resolution"` // image: target decode resolution
}

// RegisterRendererRequest is register_renderer's full request.
type RegisterRendererRequest struct {
	RendererId media.RendererId `json:"rendererId"`
	Spec       RendererSpec     `json:"spec"`
}

// SceneOutputUpdate is one entry of update_scene's request list: the
// new declarative tree (and, for outputs carrying audio, the subtree
// the mixer should sum) for one output.
type SceneOutputUpdate struct {
	OutputId   media.OutputId   `json:"outputId"`
	Resolution media.Resolution `json:"resolution"`
	Video      scene.Component  `json:"-"` // not JSON-serializable as specified; wire encoding is out of scope
	Audio      scene.Component  `json:"-"`
}

// UpdateSceneRequest is update_scene's full request: a batch of
// per-output updates applied atomically (spec's "a tick sees either
// the pre-update or post-update scene").
type UpdateSceneRequest struct {
	Outputs []SceneOutputUpdate
}

// StartRequest is the start request: latches start-of-epoch for all
// sources. It carries no fields; the control plane tracks elapsed time
// against the epoch this call establishes.
type StartRequest struct{}
