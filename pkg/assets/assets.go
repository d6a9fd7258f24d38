// Package assets is the Asset registry consulted by the Renderer
// Driver for every non-input leaf (Image, Shader, WebView). Unlike the
// teacher's pkg/video.pathManager, which serializes every registry
// operation through a single channel-actor goroutine, this registry is
// a read-mostly map guarded by sync.RWMutex: renders vastly outnumber
// registrations, and a render must never block behind another render.
package assets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	xdraw "golang.org/x/image/draw"

	"github.com/bialy-nvr/compositor/pkg/culog"
	"github.com/bialy-nvr/compositor/pkg/layout"
	"github.com/bialy-nvr/compositor/pkg/media"
)

// imageFrame is one decoded-and-resized frame of a registered image
// asset, at an offset from the asset's own animation start.
type imageFrame struct {
	pts  time.Duration
	data media.Frame
}

type imageAsset struct {
	frames        []imageFrame // sorted by pts; len==1 and pts==0 for a static image
	totalDuration time.Duration
	resolution    media.Resolution
}

type shaderAsset struct {
	shader *ebiten.Shader
}

type webviewAsset struct {
	mu    sync.Mutex
	frame media.Frame
	have  bool
}

// Registry implements renderer.AssetProvider plus the registration
// operations the control surface drives.
type Registry struct {
	cache *Cache
	log   *culog.Logger

	mu       sync.RWMutex
	images   map[media.RendererId]*imageAsset
	shaders  map[media.RendererId]*shaderAsset
	webviews map[media.RendererId]*webviewAsset
}

// NewRegistry returns an empty Registry. cache may be nil, in which
// case decoded image bytes are never persisted across restarts.
func NewRegistry(cache *Cache, log *culog.Logger) *Registry {
	return &Registry{
		cache:    cache,
		log:      log,
		images:   map[media.RendererId]*imageAsset{},
		shaders:  map[media.RendererId]*shaderAsset{},
		webviews: map[media.RendererId]*webviewAsset{},
	}
}

// RegisterImage decodes r (PNG/JPEG/static-GIF via the standard
// decoders registered by the blank image/jpeg and image/png imports,
// or an animated GIF via image/gif.DecodeAll) and resizes every frame
// to targetRes using golang.org/x/image/draw's quality Scale, the way
// a thumbnail pipeline resamples source art to a fixed display size.
// An animated GIF's per-frame delays become the frame's pts offset
// from the loop start; a single-frame image gets one pts-0 frame and
// a zero totalDuration (spec's static/animated distinction).
func (reg *Registry) RegisterImage(id media.RendererId, r io.Reader, targetRes media.Resolution) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read image asset %q: %w", id, err)
	}

	asset, err := decodeImageAsset(raw, targetRes)
	if err != nil {
		return fmt.Errorf("decode image asset %q: %w", id, err)
	}

	reg.mu.Lock()
	reg.images[id] = asset
	reg.mu.Unlock()

	if reg.cache != nil {
		if err := reg.cache.Put(id, targetRes, raw); err != nil {
			reg.log.Warn().Src("assets").Msgf("cache image %q: %v", id, err)
		}
	}
	return nil
}

// RestoreImage re-registers id from previously cached raw bytes
// without the caller needing to keep the source around, the way a
// process restart repopulates its working set from durable storage.
func (reg *Registry) RestoreImage(id media.RendererId, targetRes media.Resolution) (bool, error) {
	if reg.cache == nil {
		return false, nil
	}
	raw, ok, err := reg.cache.Get(id, targetRes)
	if err != nil || !ok {
		return false, err
	}
	asset, err := decodeImageAsset(raw, targetRes)
	if err != nil {
		return false, err
	}
	reg.mu.Lock()
	reg.images[id] = asset
	reg.mu.Unlock()
	return true, nil
}

// UnregisterImage drops id from the live registry and evicts every
// cached resolution for it.
func (reg *Registry) UnregisterImage(id media.RendererId) {
	reg.mu.Lock()
	delete(reg.images, id)
	reg.mu.Unlock()

	if reg.cache != nil {
		if err := reg.cache.Delete(id); err != nil {
			reg.log.Warn().Src("assets").Msgf("evict cached image %q: %v", id, err)
		}
	}
}

// ImageFrame implements renderer.AssetProvider.
func (reg *Registry) ImageFrame(id media.RendererId, animationPTS time.Duration) (media.Frame, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	asset, ok := reg.images[id]
	if !ok || len(asset.frames) == 0 {
		return media.Frame{}, false
	}
	return nearestFrame(asset.frames, animationPTS).data, true
}

// ImageTotalDuration implements renderer.AssetProvider.
func (reg *Registry) ImageTotalDuration(id media.RendererId) time.Duration {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	asset, ok := reg.images[id]
	if !ok {
		return 0
	}
	return asset.totalDuration
}

// nearestFrame returns the frame whose pts is closest to target,
// matching spec's "select the frame whose PTS is nearest" rule for
// animated image playback.
func nearestFrame(frames []imageFrame, target time.Duration) imageFrame {
	best := frames[0]
	bestDelta := absDuration(target - best.pts)
	for _, f := range frames[1:] {
		if d := absDuration(target - f.pts); d < bestDelta {
			best, bestDelta = f, d
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func decodeImageAsset(raw []byte, targetRes media.Resolution) (*imageAsset, error) {
	if g, err := gif.DecodeAll(bytes.NewReader(raw)); err == nil && len(g.Image) > 1 {
		return decodeAnimatedGIF(g, targetRes)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	resized := resizeToRGBA(img, targetRes)
	return &imageAsset{
		frames: []imageFrame{{
			pts: 0,
			data: media.Frame{
				Data:       media.RGBA8{Bytes: resized.Pix},
				Resolution: targetRes,
			},
		}},
		resolution: targetRes,
	}, nil
}

// decodeAnimatedGIF resizes every disposed frame independently and
// accumulates each one's delay (in 1/100s, per the GIF spec) into a
// running pts offset from the loop start.
func decodeAnimatedGIF(g *gif.GIF, targetRes media.Resolution) (*imageAsset, error) {
	frames := make([]imageFrame, 0, len(g.Image))
	var cursor time.Duration

	canvas := image.NewRGBA(g.Image[0].Bounds())
	for i, paletted := range g.Image {
		draw.Draw(canvas, paletted.Bounds(), paletted, paletted.Bounds().Min, draw.Over)
		resized := resizeToRGBA(canvas, targetRes)
		frames = append(frames, imageFrame{
			pts: cursor,
			data: media.Frame{
				Data:       media.RGBA8{Bytes: append([]byte(nil), resized.Pix...)},
				Resolution: targetRes,
			},
		})
		delay := time.Duration(g.Delay[i]) * 10 * time.Millisecond
		if delay <= 0 {
			delay = 100 * time.Millisecond
		}
		cursor += delay
	}

	sort.Slice(frames, func(i, j int) bool { return frames[i].pts < frames[j].pts })
	return &imageAsset{frames: frames, totalDuration: cursor, resolution: targetRes}, nil
}

// resizeToRGBA rescales src to exactly targetRes using a
// quality-over-speed Catmull-Rom kernel (golang.org/x/image/draw),
// the same library the pack's IntuitionEngine/gazed-vu examples reach
// for instead of a hand-rolled nearest-neighbour resample.
func resizeToRGBA(src image.Image, targetRes media.Resolution) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, targetRes.Width, targetRes.Height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

// RegisterShader compiles a Kage shader source for later application
// by ShaderApply.
func (reg *Registry) RegisterShader(id media.RendererId, kageSrc []byte) error {
	shader, err := ebiten.NewShader(kageSrc)
	if err != nil {
		return fmt.Errorf("compile shader %q: %w", id, err)
	}
	reg.mu.Lock()
	reg.shaders[id] = &shaderAsset{shader: shader}
	reg.mu.Unlock()
	return nil
}

// UnregisterShader drops a compiled shader.
func (reg *Registry) UnregisterShader(id media.RendererId) {
	reg.mu.Lock()
	delete(reg.shaders, id)
	reg.mu.Unlock()
}

// ShaderApply implements renderer.AssetProvider. param, if non-empty,
// is a JSON object decoded into Kage uniform values.
func (reg *Registry) ShaderApply(id media.RendererId, param []byte, children []*ebiten.Image, box layout.BoxLayout) (*ebiten.Image, error) {
	reg.mu.RLock()
	asset, ok := reg.shaders[id]
	reg.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("shader %q not registered", id)
	}

	uniforms := map[string]interface{}{}
	if len(param) > 0 {
		if err := json.Unmarshal(param, &uniforms); err != nil {
			return nil, fmt.Errorf("shader %q param: %w", id, err)
		}
	}

	w, h := int(box.Width), int(box.Height)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("shader %q: non-positive target size %dx%d", id, w, h)
	}

	opts := &ebiten.DrawRectShaderOptions{Uniforms: uniforms}
	for i, child := range children {
		if i >= len(opts.Images) {
			break
		}
		opts.Images[i] = child
	}

	dst := ebiten.NewImage(w, h)
	dst.DrawRectShader(w, h, asset.shader, opts)
	return dst, nil
}

// RegisterWebView registers instance id as an eligible WebView
// compositing target. Actual page rendering is out of scope (spec's
// embedded-browser surface is an external collaborator); this
// registry only holds whatever frame that external collaborator last
// pushed via PushWebViewFrame.
func (reg *Registry) RegisterWebView(id media.RendererId) {
	reg.mu.Lock()
	reg.webviews[id] = &webviewAsset{}
	reg.mu.Unlock()
}

// UnregisterWebView drops a WebView instance.
func (reg *Registry) UnregisterWebView(id media.RendererId) {
	reg.mu.Lock()
	delete(reg.webviews, id)
	reg.mu.Unlock()
}

// PushWebViewFrame is called by the (out-of-scope) browser-embedding
// collaborator each time it has a freshly painted page surface ready.
func (reg *Registry) PushWebViewFrame(id media.RendererId, frame media.Frame) {
	reg.mu.RLock()
	wv, ok := reg.webviews[id]
	reg.mu.RUnlock()
	if !ok {
		return
	}
	wv.mu.Lock()
	wv.frame, wv.have = frame, true
	wv.mu.Unlock()
}

// WebViewFrame implements renderer.AssetProvider.
func (reg *Registry) WebViewFrame(id media.RendererId) (media.Frame, bool) {
	reg.mu.RLock()
	wv, ok := reg.webviews[id]
	reg.mu.RUnlock()
	if !ok {
		return media.Frame{}, false
	}
	wv.mu.Lock()
	defer wv.mu.Unlock()
	return wv.frame, wv.have
}
