package layout

import (
	"github.com/bialy-nvr/compositor/pkg/media"
	"github.com/bialy-nvr/compositor/pkg/scene"
)

// ComputeFixedLayout resolves each TextureLayout's explicit edge
// offsets into an absolute BoxLayout within outputRes. Exactly one of
// Top/Bottom and exactly one of Left/Right is set per entry (enforced
// by pkg/scene's validation), so resolution only needs to pick which
// anchor is present.
func ComputeFixedLayout(layouts []scene.TextureLayout, outputRes media.Resolution) []BoxLayout {
	out := make([]BoxLayout, len(layouts))
	for i, tl := range layouts {
		var top, left float64
		switch {
		case tl.Top != nil:
			top = float64(*tl.Top)
		case tl.Bottom != nil:
			top = float64(outputRes.Height-tl.Height) - float64(*tl.Bottom)
		}
		switch {
		case tl.Left != nil:
			left = float64(*tl.Left)
		case tl.Right != nil:
			left = float64(outputRes.Width-tl.Width) - float64(*tl.Right)
		}
		out[i] = BoxLayout{
			TopLeftX:        left,
			TopLeftY:        top,
			Width:           float64(tl.Width),
			Height:          float64(tl.Height),
			RotationDegrees: tl.RotationDeg,
		}
	}
	return out
}

// MirrorMatrix returns box unchanged: mirroring does not alter a box's
// placement, and mode is not applied here.
func MirrorMatrix(mode scene.MirrorMode, box BoxLayout) BoxLayout {
	// The flip itself is drawn by pkg/renderer (drawMirrored), which
	// scales the child's GeoM by -1 on the mirrored axes.
	return box
}
