package scene

import "github.com/bialy-nvr/compositor/pkg/media"

// NodeState is the mutable, per-component state the Scene State
// preserves across updates when a ComponentId matches. It is the
// "stateful counterpart" the design notes call for: first-seen PTS
// for animations, a render-once flag (set by the Renderer Driver after
// a node's first upload; it does not stop later uploads, which happen
// on every tick), the last resolved size, and any cached GPU texture
// handle.
type NodeState struct {
	FirstSeenPTS  media.PTS
	RenderOnce    bool
	ResolvedWidth int
	ResolvedHeight int
	TextureHandle interface{}
	// TransitionStartPTS anchors an in-progress transition so its
	// elapsed time survives scene updates that keep the same id.
	TransitionStartPTS media.PTS
	HasTransition      bool
}

// StatefulComponent pairs one declarative Component with its preserved
// NodeState and the stateful counterparts of its children. Sizes are
// resolved top-down by recalculateLayout (see layout_resolve.go) and are
// valid for the pts they were last computed at.
type StatefulComponent struct {
	Component Component
	State     *NodeState
	Children  []*StatefulComponent
}

// ComponentID forwards to the wrapped declarative component.
func (s *StatefulComponent) ComponentID() (media.ComponentId, bool) {
	return s.Component.ID()
}

// Width returns the component's last-resolved width in pixels. It does
// not depend on pts directly; animations that alter layout do so by
// mutating ResolvedWidth/Height during the next recalculateLayout pass
// using State.FirstSeenPTS/TransitionStartPTS as their reference.
func (s *StatefulComponent) Width() int { return s.State.ResolvedWidth }

// Height returns the component's last-resolved height in pixels.
func (s *StatefulComponent) Height() int { return s.State.ResolvedHeight }

// gatherComponentsWithID walks a stateful tree and indexes every node
// that declares a ComponentId, for use as the prevState map handed to
// the next reconciliation pass.
func gatherComponentsWithID(root *StatefulComponent, into map[media.ComponentId]*StatefulComponent) {
	if root == nil {
		return
	}
	if id, ok := root.ComponentID(); ok {
		into[id] = root
	}
	for _, c := range root.Children {
		gatherComponentsWithID(c, into)
	}
}
