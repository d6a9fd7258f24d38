package scene

import (
	"fmt"

	"github.com/bialy-nvr/compositor/pkg/perr"
)

// recalculateLayout resolves node.State.ResolvedWidth/Height top-down
// given the box the parent grants this node, mirroring the Rust
// renderer's "recompute layout against the previous tree before
// reconciling" step: it is run once against the *old* tree at the
// start of update_scene (so in-flight animations see a consistent
// last-known size) and once again against the *new* tree after
// reconciliation.
func recalculateLayout(node *StatefulComponent, parentW, parentH *int) error {
	w, h, err := resolveOwnSize(node.Component, parentW, parentH)
	if err != nil {
		return err
	}
	node.State.ResolvedWidth = w
	node.State.ResolvedHeight = h

	for _, child := range node.Children {
		// Builtins that carry their own explicit resolution hand that
		// resolution down as the box for every child; everything else
		// passes its own resolved box through unchanged.
		cw, ch := w, h
		if err := recalculateLayout(child, &cw, &ch); err != nil {
			return err
		}
	}
	return nil
}

func resolveOwnSize(c Component, parentW, parentH *int) (int, int, error) {
	switch v := c.(type) {
	case TransformToResolution:
		return v.Resolution.Width, v.Resolution.Height, nil

	case FixedPositionLayout:
		return v.Resolution.Width, v.Resolution.Height, nil

	case TiledLayout:
		return v.Resolution.Width, v.Resolution.Height, nil

	case Shader:
		if v.Size.Width > 0 && v.Size.Height > 0 {
			return v.Size.Width, v.Size.Height, nil
		}
		return fromParentOrStatic(nil, parentW, parentH, "shader")

	case View:
		return fromParentOrStatic(v.Position, parentW, parentH, "view")

	case Rescaler:
		return fromParentOrStatic(v.Position, parentW, parentH, "rescaler")

	case MirrorImage, CornersRounding, Tiles, WebView, InputStream, Image, Text:
		return fromParentOrStatic(nil, parentW, parentH, fmt.Sprintf("%T", c))

	default:
		return fromParentOrStatic(nil, parentW, parentH, fmt.Sprintf("%T", c))
	}
}

func fromParentOrStatic(pos Position, parentW, parentH *int, what string) (int, int, error) {
	var w, h int
	wOK, hOK := false, false

	switch p := pos.(type) {
	case AbsolutePosition:
		return p.Width, p.Height, nil
	case StaticPosition:
		if p.Width != nil {
			w, wOK = *p.Width, true
		}
		if p.Height != nil {
			h, hOK = *p.Height, true
		}
	}

	if !wOK {
		if parentW == nil {
			return 0, 0, &perr.SceneValidationError{
				Msg: fmt.Sprintf("%s: cannot resolve width, parent provides none and no explicit width was set", what),
			}
		}
		w = *parentW
	}
	if !hOK {
		if parentH == nil {
			return 0, 0, &perr.SceneValidationError{
				Msg: fmt.Sprintf("%s: cannot resolve height, parent provides none and no explicit height was set", what),
			}
		}
		h = *parentH
	}
	return w, h, nil
}
