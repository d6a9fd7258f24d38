package scene

import "github.com/bialy-nvr/compositor/pkg/media"

// IntermediateNode is the flattened form the Layout Engine and Renderer
// Driver actually walk: every builtin layout/transform component is
// already a distinct variant, and every node carries the resolved
// pixel box recalculateLayout computed for it. Scene State is the only
// package that ever sees declarative Components; everything downstream
// works off this tree.
type IntermediateNode interface {
	isIntermediateNode()
	Box() media.Resolution
	NodeState() *NodeState
}

type intermediateBase struct {
	state *NodeState
	box   media.Resolution
}

func (b intermediateBase) Box() media.Resolution { return b.box }
func (b intermediateBase) NodeState() *NodeState { return b.state }

// INInputStream is a leaf bound to a live input's current frame.
type INInputStream struct {
	intermediateBase
	InputId media.InputId
}

func (INInputStream) isIntermediateNode() {}

// INImage is a leaf bound to a registered image/GIF renderer asset.
type INImage struct {
	intermediateBase
	ImageId media.RendererId
}

func (INImage) isIntermediateNode() {}

// INText is a leaf holding shaped text parameters.
type INText struct {
	intermediateBase
	Params TextParams
}

func (INText) isIntermediateNode() {}

// INShader runs a registered shader over its children's rendered
// textures.
type INShader struct {
	intermediateBase
	ShaderId    media.RendererId
	ShaderParam []byte
	Children    []IntermediateNode
}

func (INShader) isIntermediateNode() {}

// INWebView composites an embedded-browser instance's current frame.
type INWebView struct {
	intermediateBase
	InstanceId media.RendererId
	Children   []IntermediateNode
}

func (INWebView) isIntermediateNode() {}

// LayoutKind distinguishes the concrete arrangement algorithm an
// INLayout node runs; the Layout Engine dispatches on this instead of
// re-deriving it from the original Component.
type LayoutKind int

const (
	LayoutKindChildren  LayoutKind = iota // plain View/Rescaler passthrough box
	LayoutKindTiled                       // Tiles / TiledLayout
	LayoutKindFixed                       // FixedPositionLayout
	LayoutKindTransform                   // TransformToResolution
	LayoutKindMirror                      // MirrorImage
	LayoutKindRounded                     // CornersRounding
)

// INLayout is every node whose job is to arrange or transform its
// children rather than render its own content. root_sized_layout
// reports whether this node's box came from the builtin's own
// Resolution field (true) or was inherited from its parent (false);
// the design notes use exactly this bit to decide whether a node can
// stand alone as an output's root.
type INLayout struct {
	intermediateBase
	Kind             LayoutKind
	RootSizedLayout  bool
	IsRescaler       bool
	Direction        Direction
	Overflow         Overflow
	BackgroundColor  Color
	HorizontalAlign  HorizontalAlign
	VerticalAlign    VerticalAlign
	RescaleMode      RescaleMode
	FitStrategy      FitStrategy
	MirrorMode       MirrorMode
	BorderRadius     float64
	TileAspectRatio  [2]int
	Padding, Margin  int
	TextureLayouts   []TextureLayout
	Transition       *Transition
	Children         []IntermediateNode
}

func (INLayout) isIntermediateNode() {}

// buildIntermediateTree lowers a sized StatefulComponent tree into the
// IntermediateNode form, assuming recalculateLayout has already been
// run so every node's State.Resolved{Width,Height} is current.
func buildIntermediateTree(node *StatefulComponent) IntermediateNode {
	box := media.Resolution{Width: node.State.ResolvedWidth, Height: node.State.ResolvedHeight}
	base := intermediateBase{state: node.State, box: box}

	switch v := node.Component.(type) {
	case InputStream:
		return INInputStream{intermediateBase: base, InputId: v.InputId}

	case Image:
		return INImage{intermediateBase: base, ImageId: v.ImageId}

	case Text:
		return INText{intermediateBase: base, Params: v.Params}

	case Shader:
		return INShader{
			intermediateBase: base,
			ShaderId:         v.ShaderId,
			ShaderParam:      v.ShaderParam,
			Children:         buildIntermediateChildren(node),
		}

	case WebView:
		return INWebView{
			intermediateBase: base,
			InstanceId:       v.InstanceId,
			Children:         buildIntermediateChildren(node),
		}

	case View:
		return INLayout{
			intermediateBase: base,
			Kind:             LayoutKindChildren,
			Direction:        v.Direction,
			Overflow:         v.Overflow,
			BackgroundColor:  v.BackgroundColor,
			Transition:       v.Transition,
			Children:         buildIntermediateChildren(node),
		}

	case Rescaler:
		return INLayout{
			intermediateBase: base,
			Kind:             LayoutKindChildren,
			IsRescaler:       true,
			RescaleMode:      v.Mode,
			HorizontalAlign:  v.HorizontalAlign,
			VerticalAlign:    v.VerticalAlign,
			Transition:       v.Transition,
			Children:         buildIntermediateChildren(node),
		}

	case Tiles:
		return INLayout{
			intermediateBase: base,
			Kind:             LayoutKindTiled,
			BackgroundColor:  v.BackgroundColor,
			HorizontalAlign:  v.HorizontalAlign,
			VerticalAlign:    v.VerticalAlign,
			TileAspectRatio:  v.TileAspectRatio,
			Padding:          v.Padding,
			Margin:           v.Margin,
			Children:         buildIntermediateChildren(node),
		}

	case TiledLayout:
		return INLayout{
			intermediateBase: base,
			Kind:             LayoutKindTiled,
			RootSizedLayout:  true,
			HorizontalAlign:  v.HorizontalAlign,
			VerticalAlign:    v.VerticalAlign,
			TileAspectRatio:  v.TileAspectRatio,
			Padding:          v.Padding,
			Margin:           v.Margin,
			Children:         buildIntermediateChildren(node),
		}

	case FixedPositionLayout:
		return INLayout{
			intermediateBase: base,
			Kind:             LayoutKindFixed,
			RootSizedLayout:  true,
			BackgroundColor:  v.BackgroundColor,
			TextureLayouts:   v.TextureLayouts,
			Children:         buildIntermediateChildren(node),
		}

	case TransformToResolution:
		return INLayout{
			intermediateBase: base,
			Kind:             LayoutKindTransform,
			RootSizedLayout:  true,
			FitStrategy:      v.Strategy,
			Children:         buildIntermediateChildren(node),
		}

	case MirrorImage:
		return INLayout{
			intermediateBase: base,
			Kind:             LayoutKindMirror,
			MirrorMode:       v.Mode,
			Children:         buildIntermediateChildren(node),
		}

	case CornersRounding:
		return INLayout{
			intermediateBase: base,
			Kind:             LayoutKindRounded,
			BorderRadius:     v.BorderRadius,
			Children:         buildIntermediateChildren(node),
		}

	default:
		// Unreachable: validateComponent rejects unknown component types
		// before a tree ever reaches reconciliation.
		return INLayout{intermediateBase: base, Kind: LayoutKindChildren}
	}
}

func buildIntermediateChildren(node *StatefulComponent) []IntermediateNode {
	out := make([]IntermediateNode, 0, len(node.Children))
	for _, c := range node.Children {
		out = append(out, buildIntermediateTree(c))
	}
	return out
}
