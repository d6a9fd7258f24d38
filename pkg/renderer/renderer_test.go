package renderer

import (
	"testing"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/stretchr/testify/require"

	"github.com/bialy-nvr/compositor/pkg/layout"
	"github.com/bialy-nvr/compositor/pkg/media"
	"github.com/bialy-nvr/compositor/pkg/scene"
)

type fakeAssets struct{}

func (fakeAssets) ImageFrame(media.RendererId, time.Duration) (media.Frame, bool) {
	return media.Frame{}, false
}
func (fakeAssets) ImageTotalDuration(media.RendererId) time.Duration { return 0 }
func (fakeAssets) ShaderApply(media.RendererId, []byte, []*ebiten.Image, layout.BoxLayout) (*ebiten.Image, error) {
	return ebiten.NewImage(1, 1), nil
}
func (fakeAssets) WebViewFrame(media.RendererId) (media.Frame, bool) {
	return media.Frame{}, false
}

// sceneWithInputRoot builds a one-output Scene State whose root is a
// bare InputStream, and returns its current IntermediateNode tree —
// the only supported way to obtain a sized, renderable tree, since
// Scene State owns all layout resolution.
func sceneWithInputRoot(t *testing.T, res media.Resolution, inputID media.InputId) scene.IntermediateNode {
	t.Helper()
	s := scene.NewSceneState()
	s.RegisterOutput("out1", res)
	s.RegisterInput(inputID)

	in := scene.InputStream{InputId: inputID}

	require.NoError(t, s.UpdateScene(map[media.OutputId]scene.Component{"out1": in}))
	return s.GetOutputs()["out1"]
}

func TestRenderTickMissingFrameRendersTransparent(t *testing.T) {
	r := New(fakeAssets{})

	root := sceneWithInputRoot(t, media.Resolution{Width: 4, Height: 4}, "cam1")
	outputs := map[media.OutputId]scene.IntermediateNode{"out1": root}

	result, err := r.RenderTick(media.PTS(0), outputs, media.FrameSet{})
	require.NoError(t, err)
	require.Contains(t, result, media.OutputId("out1"))
	require.Equal(t, 4, result["out1"].Bounds().Dx())
}

func TestRenderTickUploadsInputFrame(t *testing.T) {
	r := New(fakeAssets{})

	root := sceneWithInputRoot(t, media.Resolution{Width: 2, Height: 2}, "cam1")
	outputs := map[media.OutputId]scene.IntermediateNode{"out1": root}

	frame := &media.Frame{
		Data:       media.RGBA8{Bytes: make([]byte, 2*2*4)},
		Resolution: media.Resolution{Width: 2, Height: 2},
	}
	frames := media.FrameSet{"cam1": frame}

	result, err := r.RenderTick(media.PTS(0), outputs, frames)
	require.NoError(t, err)
	require.Equal(t, 2, result["out1"].Bounds().Dx())
}
