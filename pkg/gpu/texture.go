// Package gpu wraps the GPU-backed textures the Renderer Driver
// uploads decoded frames and rendered assets into, grounded on the
// ebiten.Image upload pattern other examples in the pack use for
// software-decoded frame buffers (see video_backend_ebiten.go's
// WritePixels-style frame buffer copy, generalized here from a single
// fixed-size window buffer to one texture per scene node).
package gpu

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/bialy-nvr/compositor/pkg/media"
	"github.com/bialy-nvr/compositor/pkg/perr"
)

// Texture owns one GPU-backed image and the resolution it was last
// uploaded at.
type Texture struct {
	Image      *ebiten.Image
	Resolution media.Resolution
}

// NewTexture allocates a texture of the given resolution. A
// non-positive dimension is a device-fatal condition: ebiten panics on
// invalid image dimensions, so this package validates first rather
// than relying on recover().
func NewTexture(res media.Resolution) (*Texture, error) {
	if res.Width <= 0 || res.Height <= 0 {
		return nil, &perr.DeviceFatalError{Msg: fmt.Sprintf("invalid texture resolution %dx%d", res.Width, res.Height)}
	}
	return &Texture{Image: ebiten.NewImage(res.Width, res.Height), Resolution: res}, nil
}

// Upload writes a decoded Frame into the texture, reallocating it
// first if the frame's resolution changed. RGBA8Texture frames are
// already GPU-resident (e.g. handed off from a hardware decoder) and
// are referenced directly rather than copied.
func (t *Texture) Upload(frame media.Frame) error {
	if frame.Resolution != t.Resolution {
		fresh, err := NewTexture(frame.Resolution)
		if err != nil {
			return err
		}
		*t = *fresh
	}

	switch d := frame.Data.(type) {
	case media.RGBA8:
		t.Image.WritePixels(d.Bytes)
	case media.PlanarYUV420:
		t.Image.WritePixels(yuv420ToRGBA(d.Y, d.U, d.V, t.Resolution, false))
	case media.PlanarYUVJ420:
		t.Image.WritePixels(yuv420ToRGBA(d.Y, d.U, d.V, t.Resolution, true))
	case media.InterleavedYUV422:
		t.Image.WritePixels(yuv422ToRGBA(d.Bytes, t.Resolution))
	case media.RGBA8Texture:
		if img, ok := d.Handle.(*ebiten.Image); ok {
			t.Image = img
			return nil
		}
		return &perr.DeviceFatalError{Msg: "RGBA8Texture handle is not an *ebiten.Image"}
	default:
		return &perr.DeviceFatalError{Msg: fmt.Sprintf("unsupported frame data type %T", frame.Data)}
	}
	return nil
}

// yuv420ToRGBA converts planar 4:2:0 to interleaved RGBA8 using
// BT.601 coefficients. fullRange selects JPEG (0-255) vs studio
// (16-235/16-240) luma/chroma ranges.
func yuv420ToRGBA(y, u, v []byte, res media.Resolution, fullRange bool) []byte {
	w, h := res.Width, res.Height
	out := make([]byte, w*h*4)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			yi := row*w + col
			ci := (row/2)*(w/2) + col/2
			if yi >= len(y) || ci >= len(u) || ci >= len(v) {
				continue
			}
			r, g, b := yuvToRGB(y[yi], u[ci], v[ci], fullRange)
			o := yi * 4
			out[o], out[o+1], out[o+2], out[o+3] = r, g, b, 0xFF
		}
	}
	return out
}

// yuv422ToRGBA converts interleaved YUYV (4:2:2) to RGBA8.
func yuv422ToRGBA(src []byte, res media.Resolution) []byte {
	w, h := res.Width, res.Height
	out := make([]byte, w*h*4)
	for row := 0; row < h; row++ {
		rowOff := row * w * 2
		for col := 0; col < w; col += 2 {
			i := rowOff + col*2
			if i+3 >= len(src) {
				break
			}
			y0, u, y1, v := src[i], src[i+1], src[i+2], src[i+3]

			r0, g0, b0 := yuvToRGB(y0, u, v, false)
			o0 := (row*w + col) * 4
			out[o0], out[o0+1], out[o0+2], out[o0+3] = r0, g0, b0, 0xFF

			if col+1 < w {
				r1, g1, b1 := yuvToRGB(y1, u, v, false)
				o1 := (row*w + col + 1) * 4
				out[o1], out[o1+1], out[o1+2], out[o1+3] = r1, g1, b1, 0xFF
			}
		}
	}
	return out
}

func yuvToRGB(yy, uu, vv byte, fullRange bool) (byte, byte, byte) {
	y := float64(yy)
	u := float64(uu) - 128
	v := float64(vv) - 128
	if !fullRange {
		y = (y - 16) * 255 / 219
		u = u * 255 / 224
		v = v * 255 / 224
	}
	r := clamp8(y + 1.402*v)
	g := clamp8(y - 0.344136*u - 0.714136*v)
	b := clamp8(y + 1.772*u)
	return r, g, b
}

func clamp8(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
