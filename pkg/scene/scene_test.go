package scene

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bialy-nvr/compositor/pkg/media"
)

func idPtr(id media.ComponentId) *media.ComponentId { return &id }

func TestUpdateSceneRejectsUnknownOutput(t *testing.T) {
	s := NewSceneState()
	s.RegisterInput("cam1")

	err := s.UpdateScene(map[media.OutputId]Component{
		"out1": InputStream{base: base{ComponentId: idPtr("root")}, InputId: "cam1"},
	})
	require.Error(t, err)
}

func TestUpdateSceneAtomicOnValidationFailure(t *testing.T) {
	s := NewSceneState()
	s.RegisterOutput("out1", media.Resolution{Width: 1280, Height: 720})
	s.RegisterInput("cam1")

	good := InputStream{base: base{ComponentId: idPtr("hero")}, InputId: "cam1"}
	require.NoError(t, s.UpdateScene(map[media.OutputId]Component{"out1": good}))

	before := s.GetOutputs()
	require.Contains(t, before, media.OutputId("out1"))

	// References an input that was never registered; the whole update
	// must be rejected and the previous tree left untouched.
	bad := InputStream{base: base{ComponentId: idPtr("hero")}, InputId: "does-not-exist"}
	err := s.UpdateScene(map[media.OutputId]Component{"out1": bad})
	require.Error(t, err)

	after := s.GetOutputs()
	afterRoot, ok := after["out1"].(INInputStream)
	require.True(t, ok)
	require.Equal(t, media.InputId("cam1"), afterRoot.InputId)
}

func TestUpdateSceneReplacesChildButPreservesComponentIdState(t *testing.T) {
	s := NewSceneState()
	s.RegisterOutput("out1", media.Resolution{Width: 1280, Height: 720})
	s.RegisterInput("cam1")
	s.RegisterInput("cam2")

	heroID := idPtr("hero")
	first := View{
		base:     base{ComponentId: idPtr("root")},
		Children: []Component{InputStream{base: base{ComponentId: heroID}, InputId: "cam1"}},
	}
	require.NoError(t, s.UpdateScene(map[media.OutputId]Component{"out1": first}))

	firstOut := s.outputs["out1"].tree
	firstHero := findByID(t, firstOut, "hero")
	firstSeenPTS := firstHero.State.FirstSeenPTS

	s.RegisterRenderEvent(media.PTS(0).Add(1000), nil)

	// Replace the hero's underlying input but keep the same ComponentId.
	second := View{
		base:     base{ComponentId: idPtr("root")},
		Children: []Component{InputStream{base: base{ComponentId: heroID}, InputId: "cam2"}},
	}
	require.NoError(t, s.UpdateScene(map[media.OutputId]Component{"out1": second}))

	secondOut := s.outputs["out1"].tree
	secondHero := findByID(t, secondOut, "hero")

	require.Same(t, firstHero.State, secondHero.State)
	require.Equal(t, firstSeenPTS, secondHero.State.FirstSeenPTS)

	secondComponent, ok := secondHero.Component.(InputStream)
	require.True(t, ok)
	require.Equal(t, media.InputId("cam2"), secondComponent.InputId)
}

func TestUpdateSceneReleasesDroppedComponentIds(t *testing.T) {
	s := NewSceneState()
	s.RegisterOutput("out1", media.Resolution{Width: 1280, Height: 720})
	s.RegisterInput("cam1")

	first := View{
		base: base{ComponentId: idPtr("root")},
		Children: []Component{
			InputStream{base: base{ComponentId: idPtr("a")}, InputId: "cam1"},
			InputStream{base: base{ComponentId: idPtr("b")}, InputId: "cam1"},
		},
	}
	require.NoError(t, s.UpdateScene(map[media.OutputId]Component{"out1": first}))

	second := View{
		base: base{ComponentId: idPtr("root")},
		Children: []Component{
			InputStream{base: base{ComponentId: idPtr("a")}, InputId: "cam1"},
		},
	}
	require.NoError(t, s.UpdateScene(map[media.OutputId]Component{"out1": second}))

	released := s.TakeReleasedComponents()
	require.Contains(t, released, media.ComponentId("b"))
	require.Empty(t, s.TakeReleasedComponents())
}

func TestUpdateSceneRejectsTooManyTiles(t *testing.T) {
	s := NewSceneState()
	s.RegisterOutput("out1", media.Resolution{Width: 1280, Height: 720})
	s.RegisterInput("cam1")

	children := make([]Component, maxTiles+1)
	for i := range children {
		children[i] = InputStream{InputId: "cam1"}
	}
	root := Tiles{Children: children}

	err := s.UpdateScene(map[media.OutputId]Component{"out1": root})
	require.Error(t, err)
}

func findByID(t *testing.T, root *StatefulComponent, id media.ComponentId) *StatefulComponent {
	t.Helper()
	var find func(n *StatefulComponent) *StatefulComponent
	find = func(n *StatefulComponent) *StatefulComponent {
		if n == nil {
			return nil
		}
		if cid, ok := n.ComponentID(); ok && cid == id {
			return n
		}
		for _, c := range n.Children {
			if found := find(c); found != nil {
				return found
			}
		}
		return nil
	}
	found := find(root)
	require.NotNil(t, found, "component %q not found", id)
	return found
}
