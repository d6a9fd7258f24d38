package gpu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bialy-nvr/compositor/pkg/media"
	"github.com/bialy-nvr/compositor/pkg/perr"
)

func TestNewTextureRejectsNonPositiveResolution(t *testing.T) {
	_, err := NewTexture(media.Resolution{Width: 0, Height: 10})
	require.Error(t, err)
	require.ErrorAs(t, err, new(*perr.DeviceFatalError))
}

func TestUploadRGBA8(t *testing.T) {
	tex, err := NewTexture(media.Resolution{Width: 2, Height: 2})
	require.NoError(t, err)

	frame := media.Frame{
		Data:       media.RGBA8{Bytes: make([]byte, 2*2*4)},
		Resolution: media.Resolution{Width: 2, Height: 2},
	}
	require.NoError(t, tex.Upload(frame))
}

func TestYuvToRGBGray(t *testing.T) {
	r, g, b := yuvToRGB(235, 128, 128, true)
	require.InDelta(t, 235, r, 1)
	require.InDelta(t, 235, g, 1)
	require.InDelta(t, 235, b, 1)
}
