package scene

import (
	"fmt"

	"github.com/bialy-nvr/compositor/pkg/media"
	"github.com/bialy-nvr/compositor/pkg/perr"
)

// maxTiles is the input-count cap for Tiles/TiledLayout/
// FixedPositionLayout.
const maxTiles = 16

// Registry answers "is this id registered?" so validation can enforce
// invariant 1/6: every referenced input/renderer must be currently
// registered (or, for inputs, pending a deferred unregistration).
type Registry interface {
	InputRegistered(media.InputId) bool
	RendererRegistered(media.RendererId) bool
}

// ValidateUpdate validates an entire scene update atomically: either
// every referenced id resolves and every builtin's constraints hold,
// or the whole update is rejected and the previous scene is left
// intact by the caller.
func ValidateUpdate(outputs map[media.OutputId]Component, reg Registry) error {
	// Invariant: unique output IDs is structural here since outputs is
	// a map, but callers building it from a slice must still dedupe
	// before calling ValidateUpdate; see scene.go's UpdateScene.
	for outputID, root := range outputs {
		if err := validateComponent(root, reg); err != nil {
			return &perr.SceneValidationError{
				Msg: fmt.Sprintf("output %q: %v", outputID, err),
			}
		}
	}
	return nil
}

func validateComponent(c Component, reg Registry) error {
	switch v := c.(type) {
	case InputStream:
		if !reg.InputRegistered(v.InputId) {
			return fmt.Errorf("input stream references unregistered input %q", v.InputId)
		}
		return nil

	case View:
		return validateChildren(v.Children, reg)

	case Rescaler:
		return validateComponent(v.Child, reg)

	case Image:
		if !reg.RendererRegistered(v.ImageId) {
			return fmt.Errorf("image references unregistered renderer %q", v.ImageId)
		}
		return nil

	case Text:
		return nil

	case Shader:
		if !reg.RendererRegistered(v.ShaderId) {
			return fmt.Errorf("shader references unregistered renderer %q", v.ShaderId)
		}
		return validateChildren(v.Children, reg)

	case WebView:
		if !reg.RendererRegistered(v.InstanceId) {
			return fmt.Errorf("web view references unregistered renderer %q", v.InstanceId)
		}
		return validateChildren(v.Children, reg)

	case Tiles:
		if err := checkCount("tiles", len(v.Children), 0, maxTiles); err != nil {
			return err
		}
		return validateChildren(v.Children, reg)

	case TransformToResolution:
		if v.Resolution.Width <= 0 || v.Resolution.Height <= 0 {
			return fmt.Errorf("transform_to_resolution requires a positive resolution")
		}
		return validateComponent(v.Child, reg)

	case FixedPositionLayout:
		if err := checkCount("fixed_position_layout", len(v.Children), 0, maxTiles); err != nil {
			return err
		}
		if len(v.TextureLayouts) != len(v.Children) {
			return fmt.Errorf(
				"fixed_position_layout: %d texture layouts for %d children, must match 1:1",
				len(v.TextureLayouts), len(v.Children),
			)
		}
		for i, tl := range v.TextureLayouts {
			if err := validateTextureLayout(i, tl); err != nil {
				return err
			}
		}
		return validateChildren(v.Children, reg)

	case TiledLayout:
		if err := checkCount("tiled_layout", len(v.Children), 0, maxTiles); err != nil {
			return err
		}
		return validateChildren(v.Children, reg)

	case MirrorImage:
		return validateComponent(v.Child, reg)

	case CornersRounding:
		if v.BorderRadius < 0 {
			return fmt.Errorf("corners_rounding: border_radius must be non-negative")
		}
		return validateComponent(v.Child, reg)

	default:
		return fmt.Errorf("unknown component type %T", c)
	}
}

func validateChildren(children []Component, reg Registry) error {
	for _, c := range children {
		if err := validateComponent(c, reg); err != nil {
			return err
		}
	}
	return nil
}

func checkCount(what string, n, min, max int) error {
	if n < min || n > max {
		return fmt.Errorf("%s: input count %d outside allowed range [%d, %d]", what, n, min, max)
	}
	return nil
}

func validateTextureLayout(i int, tl TextureLayout) error {
	if (tl.Top == nil) == (tl.Bottom == nil) {
		return fmt.Errorf("texture layout %d: exactly one of top/bottom must be set", i)
	}
	if (tl.Left == nil) == (tl.Right == nil) {
		return fmt.Errorf("texture layout %d: exactly one of left/right must be set", i)
	}
	return nil
}
