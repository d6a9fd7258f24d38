// Package layout is the Layout Engine: it turns a scene's
// IntermediateNode tree into concrete placement (BoxLayout) and GPU
// transformation matrices for each leaf, given the leaf's own
// intrinsic resolution and the box its parent granted it.
package layout

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/bialy-nvr/compositor/pkg/media"
	"github.com/bialy-nvr/compositor/pkg/scene"
)

// BoxLayout is one leaf's placement within its output frame, in
// pixels, top-left origin.
type BoxLayout struct {
	TopLeftX, TopLeftY float64
	Width, Height      float64
	RotationDegrees    float64
}

// Fit computes the sub-box of b that an input of inputRes should be
// drawn into to preserve its aspect ratio while staying fully inside b
// (RescaleFit / FitStrategyContain semantics), aligned per hAlign/vAlign.
func (b BoxLayout) Fit(inputRes media.Resolution, hAlign scene.HorizontalAlign, vAlign scene.VerticalAlign) BoxLayout {
	if inputRes.Width <= 0 || inputRes.Height <= 0 {
		return b
	}
	scaleX := b.Width / float64(inputRes.Width)
	scaleY := b.Height / float64(inputRes.Height)
	s := math.Min(scaleX, scaleY)

	w := float64(inputRes.Width) * s
	h := float64(inputRes.Height) * s

	return BoxLayout{
		TopLeftX:        b.TopLeftX + alignOffset(hAlign, b.Width, w),
		TopLeftY:        b.TopLeftY + alignOffsetV(vAlign, b.Height, h),
		Width:           w,
		Height:          h,
		RotationDegrees: b.RotationDegrees,
	}
}

// Fill computes the sub-box that covers all of b while preserving
// aspect ratio, cropping the input as needed (RescaleFill semantics).
func (b BoxLayout) Fill(inputRes media.Resolution, hAlign scene.HorizontalAlign, vAlign scene.VerticalAlign) BoxLayout {
	if inputRes.Width <= 0 || inputRes.Height <= 0 {
		return b
	}
	scaleX := b.Width / float64(inputRes.Width)
	scaleY := b.Height / float64(inputRes.Height)
	s := math.Max(scaleX, scaleY)

	w := float64(inputRes.Width) * s
	h := float64(inputRes.Height) * s

	return BoxLayout{
		TopLeftX:        b.TopLeftX - alignOffset(hAlign, w, b.Width),
		TopLeftY:        b.TopLeftY - alignOffsetV(vAlign, h, b.Height),
		Width:           w,
		Height:          h,
		RotationDegrees: b.RotationDegrees,
	}
}

func alignOffset(a scene.HorizontalAlign, outer, inner float64) float64 {
	switch a {
	case scene.HAlignLeft:
		return 0
	case scene.HAlignRight:
		return outer - inner
	default: // Center, Justified: a single tile has nothing to justify against
		return (outer - inner) / 2
	}
}

func alignOffsetV(a scene.VerticalAlign, outer, inner float64) float64 {
	switch a {
	case scene.VAlignTop:
		return 0
	case scene.VAlignBottom:
		return outer - inner
	default:
		return (outer - inner) / 2
	}
}

// TransformationMatrix builds the ebiten affine transform that maps a
// unit source texture onto this box within an output frame of
// outputRes, applying rotation about the box's own center first.
func (b BoxLayout) TransformationMatrix(outputRes media.Resolution) ebiten.GeoM {
	var m ebiten.GeoM
	_ = outputRes // output resolution only matters to callers translating device coords; kept for symmetry with the source algorithm's signature
	m.Scale(b.Width, b.Height)
	if b.RotationDegrees != 0 {
		m.Translate(-b.Width/2, -b.Height/2)
		m.Rotate(b.RotationDegrees * math.Pi / 180)
		m.Translate(b.Width/2, b.Height/2)
	}
	m.Translate(b.TopLeftX, b.TopLeftY)
	return m
}
