package scene

import "github.com/bialy-nvr/compositor/pkg/media"

// reconcileCtx carries everything buildStatefulTree needs to match
// state across updates. It does no validation: renderer and input
// references are checked by ValidateUpdate before reconciliation runs.
type reconcileCtx struct {
	prevState map[media.ComponentId]*StatefulComponent
	used      map[media.ComponentId]bool
	pts       media.PTS
}

// buildStatefulTree turns one declarative Component into its stateful
// counterpart, recursively, matching NodeState across updates by
// ComponentId. Invariant 5 (first_seen_pts is preserved for a
// ComponentId present in two consecutive updates) falls directly out
// of this reuse step.
func buildStatefulTree(c Component, ctx *reconcileCtx) *StatefulComponent {
	node := &StatefulComponent{Component: c}

	if id, ok := c.ID(); ok {
		if prev, found := ctx.prevState[id]; found {
			ctx.used[id] = true
			node.State = prev.State
		}
	}
	if node.State == nil {
		node.State = &NodeState{FirstSeenPTS: ctx.pts}
	}

	for _, child := range Children(c) {
		node.Children = append(node.Children, buildStatefulTree(child, ctx))
	}
	return node
}

// reconcileResult is the outcome of reconciling one scene update: the
// new stateful trees (one per output) plus the ComponentIds dropped
// from the previous scene, whose textures may now be released (the
// design notes require this happen only after the new tree is fully
// in place, which is exactly the order reconcileOutputs follows).
type reconcileResult struct {
	outputs   map[media.OutputId]*StatefulComponent
	released  []media.ComponentId
}

// reconcileOutputs builds fresh stateful trees for every output in a
// scene update, sharing one prevState/used bookkeeping pass across all
// of them since ComponentIds are unique across the whole scene, not
// per-output.
func reconcileOutputs(
	updates map[media.OutputId]Component,
	prevOutputs map[media.OutputId]*StatefulComponent,
	pts media.PTS,
) reconcileResult {
	prevState := map[media.ComponentId]*StatefulComponent{}
	for _, root := range prevOutputs {
		gatherComponentsWithID(root, prevState)
	}

	ctx := &reconcileCtx{prevState: prevState, used: map[media.ComponentId]bool{}, pts: pts}

	newOutputs := make(map[media.OutputId]*StatefulComponent, len(updates))
	for outputID, root := range updates {
		newOutputs[outputID] = buildStatefulTree(root, ctx)
	}

	var released []media.ComponentId
	for id := range prevState {
		if !ctx.used[id] {
			released = append(released, id)
		}
	}

	return reconcileResult{outputs: newOutputs, released: released}
}
