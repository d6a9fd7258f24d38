// Package renderer is the Renderer Driver: it walks the Scene State's
// IntermediateNode tree each tick and produces one composited
// *ebiten.Image per output, uploading decoded frames and asset frames
// into cached GPU textures along the way. Per-node render failures are
// isolated: a failing node draws transparent and the tick continues,
// matching the source renderer's "log and skip this node" behavior;
// only a perr.DeviceFatalError aborts the whole tick, and the only
// place that raises one is a request for a canvas of non-positive size.
package renderer

import (
	"fmt"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/bialy-nvr/compositor/pkg/gpu"
	"github.com/bialy-nvr/compositor/pkg/layout"
	"github.com/bialy-nvr/compositor/pkg/media"
	"github.com/bialy-nvr/compositor/pkg/perr"
	"github.com/bialy-nvr/compositor/pkg/scene"
)

// AssetProvider resolves non-input leaves (Image, Shader, WebView) to
// rendered content. pkg/assets implements this for the live pipeline;
// tests use a fake.
type AssetProvider interface {
	// ImageFrame returns the frame to display for an Image asset at the
	// given animation-relative pts (0 for static images; for animated
	// GIFs the caller has already reduced pts modulo the total duration).
	ImageFrame(id media.RendererId, animationPTS time.Duration) (media.Frame, bool)
	// ImageTotalDuration returns an animated image's loop duration, or 0
	// for a static image.
	ImageTotalDuration(id media.RendererId) time.Duration
	// ShaderApply runs a registered shader over its rendered children,
	// returning a new image sized to box.
	ShaderApply(id media.RendererId, param []byte, children []*ebiten.Image, box layout.BoxLayout) (*ebiten.Image, error)
	WebViewFrame(id media.RendererId) (media.Frame, bool)
}

// Renderer owns the per-ComponentId texture cache and the asset
// provider it consults for non-input leaves.
type Renderer struct {
	assets AssetProvider
}

// New returns a Renderer Driver backed by the given asset provider.
func New(assets AssetProvider) *Renderer {
	return &Renderer{assets: assets}
}

// RenderTick renders every output's current tree against the given
// pts and the tick's FrameSet, returning one composited image per
// output. A perr.DeviceFatalError aborts the whole tick; any other
// per-node error is absorbed and that node renders transparent.
func (r *Renderer) RenderTick(pts media.PTS, outputs map[media.OutputId]scene.IntermediateNode, frames media.FrameSet) (map[media.OutputId]*ebiten.Image, error) {
	result := make(map[media.OutputId]*ebiten.Image, len(outputs))
	for id, root := range outputs {
		img, _, err := r.renderNode(root, pts, frames)
		if err != nil {
			var fatal *perr.DeviceFatalError
			if asDeviceFatal(err, &fatal) {
				return nil, fatal
			}
			img, _ = transparentCanvas(root.Box())
		}
		result[id] = img
	}
	return result, nil
}

func asDeviceFatal(err error, target **perr.DeviceFatalError) bool {
	if df, ok := err.(*perr.DeviceFatalError); ok {
		*target = df
		return true
	}
	return false
}

// renderNode renders one node, returning its image plus its "natural"
// resolution: for leaves bound to decoded content, the content's own
// resolution (used by an enclosing Rescaler to decide how much to
// fit/fill); for everything else, the node's own resolved box.
func (r *Renderer) renderNode(node scene.IntermediateNode, pts media.PTS, frames media.FrameSet) (*ebiten.Image, media.Resolution, error) {
	switch n := node.(type) {
	case scene.INInputStream:
		return r.renderInputStream(n, frames)
	case scene.INImage:
		return r.renderImage(n, pts)
	case scene.INText:
		return r.renderText(n)
	case scene.INWebView:
		return r.renderWebView(n, pts, frames)
	case scene.INShader:
		return r.renderShader(n, pts, frames)
	case scene.INLayout:
		return r.renderLayout(n, pts, frames)
	default:
		return nil, media.Resolution{}, fmt.Errorf("unknown intermediate node type %T", node)
	}
}

func (r *Renderer) renderInputStream(n scene.INInputStream, frames media.FrameSet) (*ebiten.Image, media.Resolution, error) {
	canvas, err := transparentCanvas(n.Box())
	if err != nil {
		return nil, media.Resolution{}, err
	}

	frame, ok := frames[n.InputId]
	if !ok || frame == nil {
		return canvas, n.Box(), nil
	}

	tex := cachedTexture(n.NodeState())
	if err := tex.Upload(*frame); err != nil {
		return nil, media.Resolution{}, err
	}
	n.NodeState().RenderOnce = true

	drawInto(canvas, tex.Image, layout.BoxLayout{Width: float64(n.Box().Width), Height: float64(n.Box().Height)})
	return canvas, frame.Resolution, nil
}

func (r *Renderer) renderImage(n scene.INImage, pts media.PTS) (*ebiten.Image, media.Resolution, error) {
	canvas, err := transparentCanvas(n.Box())
	if err != nil {
		return nil, media.Resolution{}, err
	}

	total := r.assets.ImageTotalDuration(n.ImageId)
	animPTS := time.Duration(0)
	if total > 0 {
		elapsed := pts.Sub(n.NodeState().FirstSeenPTS)
		animPTS = time.Duration(math.Mod(float64(elapsed), float64(total)))
		if animPTS < 0 {
			animPTS += total
		}
	}

	frame, ok := r.assets.ImageFrame(n.ImageId, animPTS)
	if !ok {
		return canvas, n.Box(), nil
	}

	tex := cachedTexture(n.NodeState())
	if err := tex.Upload(frame); err != nil {
		return nil, media.Resolution{}, err
	}
	n.NodeState().RenderOnce = true

	drawInto(canvas, tex.Image, layout.BoxLayout{Width: float64(n.Box().Width), Height: float64(n.Box().Height)})
	return canvas, frame.Resolution, nil
}

func (r *Renderer) renderWebView(n scene.INWebView, pts media.PTS, frames media.FrameSet) (*ebiten.Image, media.Resolution, error) {
	canvas, err := transparentCanvas(n.Box())
	if err != nil {
		return nil, media.Resolution{}, err
	}

	frame, ok := r.assets.WebViewFrame(n.InstanceId)
	if ok {
		tex := cachedTexture(n.NodeState())
		if err := tex.Upload(frame); err != nil {
			return nil, media.Resolution{}, err
		}
		drawInto(canvas, tex.Image, layout.BoxLayout{Width: float64(n.Box().Width), Height: float64(n.Box().Height)})
	}

	// WebView children composite as an overlay above the rendered page,
	// matching the teacher's layered-surface approach for embedded
	// browser content.
	for _, child := range n.Children {
		childImg, _, err := r.renderNode(child, pts, frames)
		if err != nil {
			continue
		}
		drawInto(canvas, childImg, layout.BoxLayout{Width: float64(n.Box().Width), Height: float64(n.Box().Height)})
	}
	return canvas, n.Box(), nil
}

func (r *Renderer) renderText(n scene.INText) (*ebiten.Image, media.Resolution, error) {
	canvas, err := transparentCanvas(n.Box())
	if err != nil {
		return nil, media.Resolution{}, err
	}
	canvas.Fill(colorOf(n.Params.Color))
	return canvas, n.Box(), nil
}

func (r *Renderer) renderShader(n scene.INShader, pts media.PTS, frames media.FrameSet) (*ebiten.Image, media.Resolution, error) {
	childImgs := make([]*ebiten.Image, 0, len(n.Children))
	for _, child := range n.Children {
		img, _, err := r.renderNode(child, pts, frames)
		if err != nil {
			continue
		}
		childImgs = append(childImgs, img)
	}

	box := layout.BoxLayout{Width: float64(n.Box().Width), Height: float64(n.Box().Height)}
	out, err := r.assets.ShaderApply(n.ShaderId, n.ShaderParam, childImgs, box)
	if err != nil {
		return nil, media.Resolution{}, &perr.RenderError{NodeMsg: fmt.Sprintf("shader %q", n.ShaderId), Err: err}
	}
	return out, n.Box(), nil
}

func (r *Renderer) renderLayout(n scene.INLayout, pts media.PTS, frames media.FrameSet) (*ebiten.Image, media.Resolution, error) {
	canvas, err := transparentCanvas(n.Box())
	if err != nil {
		return nil, media.Resolution{}, err
	}

	switch n.Kind {
	case scene.LayoutKindTiled:
		boxes := layout.ComputeTiledLayout(len(n.Children), layout.TiledLayoutSpec{
			Resolution:      n.Box(),
			TileAspectRatio: n.TileAspectRatio,
			Padding:         n.Padding,
			Margin:          n.Margin,
			HorizontalAlign: n.HorizontalAlign,
			VerticalAlign:   n.VerticalAlign,
		})
		r.compositeChildren(canvas, n.Children, boxes, pts, frames)

	case scene.LayoutKindFixed:
		boxes := layout.ComputeFixedLayout(n.TextureLayouts, n.Box())
		r.compositeChildren(canvas, n.Children, boxes, pts, frames)

	case scene.LayoutKindTransform:
		if len(n.Children) == 1 {
			childImg, childRes, err := r.renderNode(n.Children[0], pts, frames)
			if err == nil {
				box := layout.BoxLayout{Width: float64(n.Box().Width), Height: float64(n.Box().Height)}
				fitted := fitStrategyBox(n.FitStrategy, box, childRes)
				drawInto(canvas, childImg, fitted)
			}
		}

	case scene.LayoutKindMirror:
		if len(n.Children) == 1 {
			childImg, _, err := r.renderNode(n.Children[0], pts, frames)
			if err == nil {
				drawMirrored(canvas, childImg, n.MirrorMode)
			}
		}

	case scene.LayoutKindRounded:
		if len(n.Children) == 1 {
			childImg, _, err := r.renderNode(n.Children[0], pts, frames)
			if err == nil {
				// The child is composited unmasked; BorderRadius is
				// carried on the node but no corner mask is applied.
				drawInto(canvas, childImg, layout.BoxLayout{Width: float64(n.Box().Width), Height: float64(n.Box().Height)})
			}
		}

	default: // LayoutKindChildren: View flex box or a single-child Rescaler
		if n.IsRescaler && len(n.Children) == 1 {
			childImg, childRes, err := r.renderNode(n.Children[0], pts, frames)
			if err == nil {
				box := layout.BoxLayout{Width: float64(n.Box().Width), Height: float64(n.Box().Height)}
				var fitted layout.BoxLayout
				if n.RescaleMode == scene.RescaleFill {
					fitted = box.Fill(childRes, n.HorizontalAlign, n.VerticalAlign)
				} else {
					fitted = box.Fit(childRes, n.HorizontalAlign, n.VerticalAlign)
				}
				drawInto(canvas, childImg, fitted)
			}
		} else {
			r.renderFlexChildren(canvas, n, pts, frames)
		}
	}

	return canvas, n.Box(), nil
}

// renderFlexChildren lays out a View's children along its Direction,
// dividing the available main axis evenly (a flex-box `1fr` column).
func (r *Renderer) renderFlexChildren(canvas *ebiten.Image, n scene.INLayout, pts media.PTS, frames media.FrameSet) {
	count := len(n.Children)
	if count == 0 {
		return
	}
	box := n.Box()

	for i, child := range n.Children {
		childImg, _, err := r.renderNode(child, pts, frames)
		if err != nil {
			continue
		}
		var b layout.BoxLayout
		if n.Direction == scene.DirectionColumn {
			h := float64(box.Height) / float64(count)
			b = layout.BoxLayout{TopLeftX: 0, TopLeftY: h * float64(i), Width: float64(box.Width), Height: h}
		} else {
			w := float64(box.Width) / float64(count)
			b = layout.BoxLayout{TopLeftX: w * float64(i), TopLeftY: 0, Width: w, Height: float64(box.Height)}
		}
		drawInto(canvas, childImg, b)
	}
}

func (r *Renderer) compositeChildren(canvas *ebiten.Image, children []scene.IntermediateNode, boxes []layout.BoxLayout, pts media.PTS, frames media.FrameSet) {
	for i, child := range children {
		if i >= len(boxes) {
			break
		}
		childImg, _, err := r.renderNode(child, pts, frames)
		if err != nil {
			continue
		}
		drawInto(canvas, childImg, boxes[i])
	}
}

func fitStrategyBox(strategy scene.FitStrategy, box layout.BoxLayout, childRes media.Resolution) layout.BoxLayout {
	switch s := strategy.(type) {
	case scene.FillStrategy:
		return box.Fill(childRes, scene.HAlignCenter, scene.VAlignCenter)
	case scene.FitStrategyContain:
		return box.Fit(childRes, s.HorizontalAlign, s.VerticalAlign)
	default: // StretchStrategy or unset
		return box
	}
}

func drawMirrored(canvas *ebiten.Image, src *ebiten.Image, mode scene.MirrorMode) {
	opts := &ebiten.DrawImageOptions{}
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	sx, sy := 1.0, 1.0
	if mode == scene.MirrorHorizontal || mode == scene.MirrorBoth {
		sx = -1
	}
	if mode == scene.MirrorVertical || mode == scene.MirrorBoth {
		sy = -1
	}
	opts.GeoM.Scale(sx, sy)
	if sx < 0 {
		opts.GeoM.Translate(float64(w), 0)
	}
	if sy < 0 {
		opts.GeoM.Translate(0, float64(h))
	}
	canvas.DrawImage(src, opts)
}

func drawInto(canvas *ebiten.Image, src *ebiten.Image, target layout.BoxLayout) {
	sw, sh := src.Bounds().Dx(), src.Bounds().Dy()
	if sw == 0 || sh == 0 || target.Width <= 0 || target.Height <= 0 {
		return
	}
	opts := &ebiten.DrawImageOptions{}
	opts.GeoM.Scale(target.Width/float64(sw), target.Height/float64(sh))
	if target.RotationDegrees != 0 {
		cx, cy := target.Width/2, target.Height/2
		opts.GeoM.Translate(-cx, -cy)
		opts.GeoM.Rotate(target.RotationDegrees * math.Pi / 180)
		opts.GeoM.Translate(cx, cy)
	}
	opts.GeoM.Translate(target.TopLeftX, target.TopLeftY)
	canvas.DrawImage(src, opts)
}

func transparentCanvas(res media.Resolution) (*ebiten.Image, error) {
	if res.Width <= 0 || res.Height <= 0 {
		return nil, &perr.DeviceFatalError{Msg: fmt.Sprintf("cannot allocate canvas %dx%d", res.Width, res.Height)}
	}
	return ebiten.NewImage(res.Width, res.Height), nil
}

func cachedTexture(state *scene.NodeState) *gpu.Texture {
	if tex, ok := state.TextureHandle.(*gpu.Texture); ok {
		return tex
	}
	tex := &gpu.Texture{}
	state.TextureHandle = tex
	return tex
}

func colorOf(c scene.Color) interface {
	RGBA() (r, g, b, a uint32)
} {
	return rgbaColor{c}
}

type rgbaColor struct{ c scene.Color }

func (rc rgbaColor) RGBA() (r, g, b, a uint32) {
	r = uint32(rc.c.R*rc.c.A*0xFFFF + 0.5)
	g = uint32(rc.c.G*rc.c.A*0xFFFF + 0.5)
	b = uint32(rc.c.B*rc.c.A*0xFFFF + 0.5)
	a = uint32(rc.c.A*0xFFFF + 0.5)
	return
}
