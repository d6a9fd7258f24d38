package layout

import (
	"github.com/bialy-nvr/compositor/pkg/media"
	"github.com/bialy-nvr/compositor/pkg/scene"
)

// TiledLayoutSpec configures ComputeTiledLayout; field names and the
// algorithm itself are a direct port of the Rust compositor's
// TiledLayoutParams (optimize_inputs_layout / tile_size / layout_tiles).
type TiledLayoutSpec struct {
	Resolution      media.Resolution
	TileAspectRatio [2]int
	Padding, Margin int
	HorizontalAlign scene.HorizontalAlign
	VerticalAlign   scene.VerticalAlign
}

type rowsCols struct{ rows, cols int }

func rowsColsFromRowsCount(inputsCount, rows int) rowsCols {
	return rowsCols{rows: rows, cols: ceilDiv(inputsCount, rows)}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// ComputeTiledLayout returns one BoxLayout per tile, in the same order
// as the inputsCount tiles are enumerated (row-major). Padding and
// margin are in pixels; TileAspectRatio defaults to (16, 9) when
// either component is zero.
func ComputeTiledLayout(inputsCount int, spec TiledLayoutSpec) []BoxLayout {
	if inputsCount == 0 {
		return nil
	}
	if spec.TileAspectRatio[0] == 0 || spec.TileAspectRatio[1] == 0 {
		spec.TileAspectRatio = [2]int{16, 9}
	}

	best := optimizeInputsLayout(inputsCount, spec)
	tileSize := tileSize(best, spec)
	return layoutTiles(inputsCount, best, tileSize, spec)
}

// optimizeInputsLayout picks the row count maximizing tile width
// (equivalently, tile area, since aspect ratio is fixed), preserving
// the original's ascending-rows tie-break: the first rows count to hit
// the best width wins, so ties resolve to the smallest row count.
func optimizeInputsLayout(inputsCount int, spec TiledLayoutSpec) rowsCols {
	best := rowsColsFromRowsCount(inputsCount, 1)
	bestWidth := 0

	for rows := 1; rows <= inputsCount; rows++ {
		rc := rowsColsFromRowsCount(inputsCount, rows)
		width := tileSize(rc, spec).Width
		if width > bestWidth {
			best = rc
			bestWidth = width
		}
	}
	return best
}

func tileSize(rc rowsCols, spec TiledLayoutSpec) media.Resolution {
	xPadding := float64(rc.cols * 2 * spec.Padding)
	yPadding := float64(rc.rows * 2 * spec.Padding)
	xMargin := float64((rc.cols + 1) * spec.Margin)
	yMargin := float64((rc.rows + 1) * spec.Margin)

	xScale := max0(float64(spec.Resolution.Width)-xPadding-xMargin) / float64(rc.cols) / float64(spec.TileAspectRatio[0])
	yScale := max0(float64(spec.Resolution.Height)-yPadding-yMargin) / float64(rc.rows) / float64(spec.TileAspectRatio[1])

	scale := xScale
	if yScale < xScale {
		scale = yScale
	}

	return media.Resolution{
		Width:  int(float64(spec.TileAspectRatio[0]) * scale),
		Height: int(float64(spec.TileAspectRatio[1]) * scale),
	}
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func layoutTiles(inputsCount int, rc rowsCols, tileSize media.Resolution, spec TiledLayoutSpec) []BoxLayout {
	layouts := make([]BoxLayout, 0, inputsCount)

	additionalYPadding := float64(spec.Resolution.Height) -
		float64(tileSize.Height+2*spec.Padding)*float64(rc.rows) -
		float64(spec.Margin*(rc.rows+1))

	var additionalTopPadding, justifiedPaddingY float64
	switch spec.VerticalAlign {
	case scene.VAlignTop:
		additionalTopPadding, justifiedPaddingY = 0, 0
	case scene.VAlignCenter:
		additionalTopPadding, justifiedPaddingY = additionalYPadding/2, 0
	case scene.VAlignBottom:
		additionalTopPadding, justifiedPaddingY = additionalYPadding, 0
	case scene.VAlignJustified:
		additionalTopPadding, justifiedPaddingY = 0, additionalYPadding/float64(rc.rows+1)
	}

	top := additionalTopPadding + justifiedPaddingY + float64(spec.Padding) + float64(spec.Margin)

	for row := 0; row < rc.rows; row++ {
		tilesInRow := rc.cols
		if row == rc.rows-1 {
			tilesInRow = inputsCount - (rc.rows-1)*rc.cols
		}

		additionalXPadding := float64(spec.Resolution.Width) -
			float64(tileSize.Width+2*spec.Padding)*float64(tilesInRow) -
			float64(spec.Margin*(tilesInRow+1))

		var additionalLeftPadding, justifiedPaddingX float64
		switch spec.HorizontalAlign {
		case scene.HAlignLeft:
			additionalLeftPadding, justifiedPaddingX = 0, 0
		case scene.HAlignRight:
			additionalLeftPadding, justifiedPaddingX = additionalXPadding, 0
		case scene.HAlignJustified:
			additionalLeftPadding, justifiedPaddingX = 0, additionalXPadding/float64(tilesInRow+1)
		case scene.HAlignCenter:
			additionalLeftPadding, justifiedPaddingX = additionalXPadding/2, 0
		}

		left := additionalLeftPadding + justifiedPaddingX + float64(spec.Margin) + float64(spec.Padding)

		for col := 0; col < tilesInRow; col++ {
			_ = col
			layouts = append(layouts, BoxLayout{
				TopLeftX: left,
				TopLeftY: top,
				Width:    float64(tileSize.Width),
				Height:   float64(tileSize.Height),
			})
			left += float64(tileSize.Width) + float64(spec.Margin) + float64(spec.Padding)*2 + justifiedPaddingX
		}
		top += float64(tileSize.Height) + float64(spec.Margin) + float64(spec.Padding)*2 + justifiedPaddingY
	}

	return layouts
}
