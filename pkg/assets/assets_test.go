package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bialy-nvr/compositor/pkg/culog"
	"github.com/bialy-nvr/compositor/pkg/layout"
	"github.com/bialy-nvr/compositor/pkg/media"
)

func encodePNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeGIF(t *testing.T, frames []color.RGBA, delay int) []byte {
	t.Helper()
	g := &gif.GIF{}
	for _, c := range frames {
		pal := image.NewPaletted(image.Rect(0, 0, 4, 4), []color.Color{c})
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				pal.SetColorIndex(x, y, 0)
			}
		}
		g.Image = append(g.Image, pal)
		g.Delay = append(g.Delay, delay)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))
	return buf.Bytes()
}

func TestRegisterImageStaticHasSingleZeroPTSFrame(t *testing.T) {
	reg := NewRegistry(nil, culog.NewLogger())
	t.Cleanup(reg.log.Close)

	pngBytes := encodePNG(t, 4, 4, color.RGBA{R: 255, A: 255})
	require.NoError(t, reg.RegisterImage("logo", bytes.NewReader(pngBytes), media.Resolution{Width: 2, Height: 2}))

	require.Equal(t, time.Duration(0), reg.ImageTotalDuration("logo"))
	frame, ok := reg.ImageFrame("logo", 0)
	require.True(t, ok)
	require.Equal(t, media.Resolution{Width: 2, Height: 2}, frame.Resolution)
	require.Len(t, frame.Data.(media.RGBA8).Bytes, 2*2*4)
}

func TestRegisterImageAnimatedGIFAccumulatesDuration(t *testing.T) {
	reg := NewRegistry(nil, culog.NewLogger())
	t.Cleanup(reg.log.Close)

	data := encodeGIF(t, []color.RGBA{
		{R: 255, A: 255},
		{G: 255, A: 255},
		{B: 255, A: 255},
	}, 10) // 10 * 10ms = 100ms per frame

	require.NoError(t, reg.RegisterImage("spinner", bytes.NewReader(data), media.Resolution{Width: 4, Height: 4}))

	require.Equal(t, 300*time.Millisecond, reg.ImageTotalDuration("spinner"))

	first, ok := reg.ImageFrame("spinner", 0)
	require.True(t, ok)
	second, ok := reg.ImageFrame("spinner", 100*time.Millisecond)
	require.True(t, ok)
	require.NotEqual(t, first.Data.(media.RGBA8).Bytes, second.Data.(media.RGBA8).Bytes)
}

func TestImageFrameSelectsNearestPTS(t *testing.T) {
	reg := NewRegistry(nil, culog.NewLogger())
	t.Cleanup(reg.log.Close)

	data := encodeGIF(t, []color.RGBA{{R: 255, A: 255}, {G: 255, A: 255}}, 10)
	require.NoError(t, reg.RegisterImage("a", bytes.NewReader(data), media.Resolution{Width: 2, Height: 2}))

	// pts=120ms is nearer frame[1] (100ms) than a hypothetical next loop
	// start at 200ms.
	frame, ok := reg.ImageFrame("a", 120*time.Millisecond)
	require.True(t, ok)
	second, _ := reg.ImageFrame("a", 100*time.Millisecond)
	require.Equal(t, second.Data, frame.Data)
}

func TestUnregisterImageRemovesAsset(t *testing.T) {
	reg := NewRegistry(nil, culog.NewLogger())
	t.Cleanup(reg.log.Close)

	pngBytes := encodePNG(t, 2, 2, color.RGBA{A: 255})
	require.NoError(t, reg.RegisterImage("x", bytes.NewReader(pngBytes), media.Resolution{Width: 2, Height: 2}))
	reg.UnregisterImage("x")

	_, ok := reg.ImageFrame("x", 0)
	require.False(t, ok)
}

func TestCacheRoundTripsThroughRestore(t *testing.T) {
	dir := t.TempDir()
	var wg sync.WaitGroup
	cache := NewCache(dir+"/assets.db", &wg)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, cache.Init(ctx))
	t.Cleanup(func() { cancel(); wg.Wait() })

	reg := NewRegistry(cache, culog.NewLogger())
	t.Cleanup(reg.log.Close)

	res := media.Resolution{Width: 2, Height: 2}
	pngBytes := encodePNG(t, 2, 2, color.RGBA{B: 255, A: 255})
	require.NoError(t, reg.RegisterImage("cached", bytes.NewReader(pngBytes), res))

	// Simulate a restart: a fresh registry sharing the same cache.
	reg2 := NewRegistry(cache, culog.NewLogger())
	t.Cleanup(reg2.log.Close)
	restored, err := reg2.RestoreImage("cached", res)
	require.NoError(t, err)
	require.True(t, restored)

	frame, ok := reg2.ImageFrame("cached", 0)
	require.True(t, ok)
	require.Equal(t, res, frame.Resolution)
}

func TestCacheDeleteEvictsAllResolutions(t *testing.T) {
	dir := t.TempDir()
	var wg sync.WaitGroup
	cache := NewCache(dir+"/assets.db", &wg)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, cache.Init(ctx))
	t.Cleanup(func() { cancel(); wg.Wait() })

	require.NoError(t, cache.Put("id1", media.Resolution{Width: 1, Height: 1}, []byte("a")))
	require.NoError(t, cache.Put("id1", media.Resolution{Width: 2, Height: 2}, []byte("b")))
	require.NoError(t, cache.Delete("id1"))

	_, ok, err := cache.Get("id1", media.Resolution{Width: 1, Height: 1})
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = cache.Get("id1", media.Resolution{Width: 2, Height: 2})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWebViewFrameReflectsLastPush(t *testing.T) {
	reg := NewRegistry(nil, culog.NewLogger())
	t.Cleanup(reg.log.Close)

	reg.RegisterWebView("panel")
	_, ok := reg.WebViewFrame("panel")
	require.False(t, ok)

	reg.PushWebViewFrame("panel", media.Frame{Resolution: media.Resolution{Width: 1, Height: 1}})
	frame, ok := reg.WebViewFrame("panel")
	require.True(t, ok)
	require.Equal(t, media.Resolution{Width: 1, Height: 1}, frame.Resolution)

	reg.UnregisterWebView("panel")
	_, ok = reg.WebViewFrame("panel")
	require.False(t, ok)
}

func TestShaderApplyRejectsUnregisteredShader(t *testing.T) {
	reg := NewRegistry(nil, culog.NewLogger())
	t.Cleanup(reg.log.Close)

	_, err := reg.ShaderApply("missing", nil, nil, layout.BoxLayout{Width: 4, Height: 4})
	require.Error(t, err)
}
