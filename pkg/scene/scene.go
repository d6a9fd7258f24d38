package scene

import (
	"fmt"
	"sync"

	"github.com/bialy-nvr/compositor/pkg/media"
)

// outputConfig is what a registered output remembers about itself
// between UpdateScene calls: its resolution (the parent box every
// root-level Static component resolves against) and its current
// reconciled tree.
type outputConfig struct {
	resolution media.Resolution
	tree       *StatefulComponent
}

// SceneState is the single subsystem described by the spec as
// owning the declarative scene, its registered inputs/renderers, and
// the stateful node graph reconciled from it each update. All
// mutating operations take the same lock, so register/unregister and
// UpdateScene calls never interleave with a GetOutputs snapshot.
type SceneState struct {
	mu        sync.RWMutex
	inputs    map[media.InputId]struct{}
	renderers map[media.RendererId]struct{}
	outputs   map[media.OutputId]*outputConfig
	lastPTS   media.PTS
	inputSize map[media.InputId]media.Resolution
	lastReleased []media.ComponentId
}

// NewSceneState returns an empty Scene State with no registered
// inputs, renderers, or outputs.
func NewSceneState() *SceneState {
	return &SceneState{
		inputs:    map[media.InputId]struct{}{},
		renderers: map[media.RendererId]struct{}{},
		outputs:   map[media.OutputId]*outputConfig{},
		inputSize: map[media.InputId]media.Resolution{},
	}
}

// InputRegistered implements Registry.
func (s *SceneState) InputRegistered(id media.InputId) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.inputs[id]
	return ok
}

// RendererRegistered implements Registry.
func (s *SceneState) RendererRegistered(id media.RendererId) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.renderers[id]
	return ok
}

// RegisterInput marks an input id as available for InputStream
// components to reference. Re-registering an already-registered id is
// a no-op, matching the control plane's idempotent register semantics.
func (s *SceneState) RegisterInput(id media.InputId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs[id] = struct{}{}
}

// UnregisterInput removes an input id. Any InputStream component still
// referencing it is left in place until the next scene update rejects
// or replaces it; existing stateful nodes are not torn down eagerly.
func (s *SceneState) UnregisterInput(id media.InputId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inputs, id)
	delete(s.inputSize, id)
}

// RegisterRenderer marks an Image/Shader/WebView asset id as available.
func (s *SceneState) RegisterRenderer(id media.RendererId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderers[id] = struct{}{}
}

// UnregisterRenderer removes a renderer asset id.
func (s *SceneState) UnregisterRenderer(id media.RendererId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.renderers, id)
}

// RegisterOutput declares an output and the resolution its root
// component resolves against. UpdateScene rejects updates naming an
// output that was never registered.
func (s *SceneState) RegisterOutput(id media.OutputId, resolution media.Resolution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg, ok := s.outputs[id]; ok {
		cfg.resolution = resolution
		return
	}
	s.outputs[id] = &outputConfig{resolution: resolution}
}

// UnregisterOutput removes an output entirely. Its last tree's
// ComponentIds are dropped with it and are not reported by
// TakeReleasedComponents.
func (s *SceneState) UnregisterOutput(id media.OutputId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.outputs, id)
}

// RegisterRenderEvent records the pts and each live input's currently
// decoded frame resolution ahead of the next UpdateScene/GetOutputs
// call. Intrinsic-size layout decisions (e.g. an unconstrained
// InputStream inside a Rescaler) resolve against these sizes.
func (s *SceneState) RegisterRenderEvent(pts media.PTS, inputResolutions map[media.InputId]media.Resolution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPTS = pts
	for id, res := range inputResolutions {
		s.inputSize[id] = res
	}
}

// UpdateScene validates and, if valid, atomically replaces the scene
// for the given outputs. Validation failure leaves every output's
// existing tree untouched (testable property 3: a tick observes either
// the pre-update or the post-update scene, never a partial mix).
func (s *SceneState) UpdateScene(updates map[media.OutputId]Component) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for outputID := range updates {
		if _, ok := s.outputs[outputID]; !ok {
			return fmt.Errorf("scene update references unregistered output %q", outputID)
		}
	}
	if err := ValidateUpdate(updates, s); err != nil {
		return err
	}

	prevOutputs := make(map[media.OutputId]*StatefulComponent, len(s.outputs))
	for id, cfg := range s.outputs {
		if cfg.tree != nil {
			prevOutputs[id] = cfg.tree
		}
	}

	// Recompute the old tree's layout against the last-known pts before
	// reconciling, so in-flight transitions see a consistent box right
	// up to the moment they're replaced.
	for id, tree := range prevOutputs {
		w, h := s.outputs[id].resolution.Width, s.outputs[id].resolution.Height
		_ = recalculateLayout(tree, &w, &h)
	}

	result := reconcileOutputs(updates, prevOutputs, s.lastPTS)

	for id, tree := range result.outputs {
		w, h := s.outputs[id].resolution.Width, s.outputs[id].resolution.Height
		if err := recalculateLayout(tree, &w, &h); err != nil {
			return err
		}
	}

	for id, tree := range result.outputs {
		s.outputs[id].tree = tree
	}
	// result.released ComponentIds are no longer reachable from any
	// output; TakeReleasedComponents hands them out once the new tree
	// above is already live.
	s.lastReleased = result.released

	return nil
}

// GetOutputs returns the current IntermediateNode tree for every
// registered output, ready for the Layout Engine and Renderer Driver.
// An output with no tree yet (never targeted by a successful
// UpdateScene) is omitted.
func (s *SceneState) GetOutputs() map[media.OutputId]IntermediateNode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[media.OutputId]IntermediateNode, len(s.outputs))
	for id, cfg := range s.outputs {
		if cfg.tree == nil {
			continue
		}
		out[id] = buildIntermediateTree(cfg.tree)
	}
	return out
}

// TakeReleasedComponents returns the ComponentIds dropped by the most
// recent UpdateScene and clears the pending list.
func (s *SceneState) TakeReleasedComponents() []media.ComponentId {
	s.mu.Lock()
	defer s.mu.Unlock()
	released := s.lastReleased
	s.lastReleased = nil
	return released
}
