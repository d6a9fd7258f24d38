// Package scene implements the Scene State: a declarative tree of
// components reconciled across updates into a node graph the
// Renderer Driver consumes, preserving per-component state (first-seen
// PTS, animation progress, render-once flags, cached textures) across
// updates keyed by ComponentId.
package scene

import "github.com/bialy-nvr/compositor/pkg/media"

// Component is the declarative, immutable description of one scene
// node as supplied by a scene update. It is a closed sum type: every
// concrete type below implements it.
type Component interface {
	isComponent()
	// ID returns the component's declared identity, if any. Components
	// without an explicit ComponentId still participate in the tree but
	// cannot have their state matched across updates by identity.
	ID() (media.ComponentId, bool)
}

type base struct {
	ComponentId *media.ComponentId
}

func (b base) ID() (media.ComponentId, bool) {
	if b.ComponentId == nil {
		return "", false
	}
	return *b.ComponentId, true
}

// Direction is a View's main axis.
type Direction int

const (
	DirectionRow Direction = iota
	DirectionColumn
)

// Overflow controls how a View clips children that exceed its bounds.
type Overflow int

const (
	OverflowVisible Overflow = iota
	OverflowHidden
	OverflowFit
)

// HorizontalAlign / VerticalAlign position children within extra space.
type HorizontalAlign int

const (
	HAlignLeft HorizontalAlign = iota
	HAlignCenter
	HAlignRight
	HAlignJustified
)

type VerticalAlign int

const (
	VAlignTop VerticalAlign = iota
	VAlignCenter
	VAlignBottom
	VAlignJustified
)

// RescaleMode selects how a Rescaler fits its child.
type RescaleMode int

const (
	RescaleFit RescaleMode = iota
	RescaleFill
)

// MirrorMode selects the axes MirrorImage flips.
type MirrorMode int

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorBoth
)

// Color is a straight (non-premultiplied) RGBA color in [0,1].
type Color struct{ R, G, B, A float64 }

// Transition describes an in-progress or to-be-started interpolation
// of a component's layout over time. ComponentId-keyed reconciliation
// is what allows a Transition's progress to survive a scene update.
type Transition struct {
	DurationMS int
}

// Position is either a flex-managed Static size or a fully explicit
// Absolute placement.
type Position interface{ isPosition() }

// StaticPosition lets the parent layout choose placement; Width/Height
// are optional hints (nil means "size to content/parent").
type StaticPosition struct {
	Width  *int
	Height *int
}

func (StaticPosition) isPosition() {}

// AbsolutePosition places a component at an explicit offset and
// rotation regardless of its parent's layout algorithm.
type AbsolutePosition struct {
	Width, Height                       int
	HorizontalPosition, VerticalPosition int
	RotationDegrees                     float64
}

func (AbsolutePosition) isPosition() {}

// InputStream is a leaf component binding to a registered input.
type InputStream struct {
	base
	InputId media.InputId
}

func (InputStream) isComponent() {}

// View is a flex container.
type View struct {
	base
	Children        []Component
	Direction       Direction
	Position        Position
	Overflow        Overflow
	BackgroundColor Color
	Transition      *Transition
}

func (View) isComponent() {}

// Rescaler scales a single child to fit or fill its own box.
type Rescaler struct {
	base
	Child           Component
	Mode            RescaleMode
	HorizontalAlign HorizontalAlign
	VerticalAlign   VerticalAlign
	Position        Position
	Transition      *Transition
}

func (Rescaler) isComponent() {}

// Image is a static PNG/JPEG asset, or an animated GIF. SVG sources
// are not decoded: pkg/assets has no SVG decoder.
type Image struct {
	base
	ImageId media.RendererId
}

func (Image) isComponent() {}

// TextParams configures a Text component. Fields mirror what a
// concrete text-shaping backend needs; shaping itself is out of scope
// for the Scene State.
type TextParams struct {
	Content  string
	FontSize float64
	Color    Color
}

// Text renders shaped text.
type Text struct {
	base
	Params TextParams
}

func (Text) isComponent() {}

// Shader runs a registered GPU shader over its children's textures.
type Shader struct {
	base
	ShaderId     media.RendererId
	Children     []Component
	Size         media.Resolution
	ShaderParam  []byte
}

func (Shader) isComponent() {}

// WebView composites a registered embedded-browser instance.
type WebView struct {
	base
	InstanceId media.RendererId
	Children   []Component
}

func (WebView) isComponent() {}

// Tiles arranges children in a grid sized by TiledLayoutParams (see
// pkg/layout).
type Tiles struct {
	base
	Children        []Component
	TileAspectRatio [2]int // default (16, 9)
	Padding         int
	Margin          int
	BackgroundColor Color
	HorizontalAlign HorizontalAlign
	VerticalAlign   VerticalAlign
}

func (Tiles) isComponent() {}

// FitStrategy is TransformToResolution's resize strategy.
type FitStrategy interface{ isFitStrategy() }

type StretchStrategy struct{}

func (StretchStrategy) isFitStrategy() {}

type FillStrategy struct{}

func (FillStrategy) isFitStrategy() {}

type FitStrategyContain struct {
	Background      Color
	HorizontalAlign HorizontalAlign
	VerticalAlign   VerticalAlign
}

func (FitStrategyContain) isFitStrategy() {}

// TransformToResolution is a builtin transform resizing its single
// child to an explicit resolution.
type TransformToResolution struct {
	base
	Child      Component
	Resolution media.Resolution
	Strategy   FitStrategy
}

func (TransformToResolution) isComponent() {}

// TextureLayout is one child's explicit placement within a
// FixedPositionLayout, relative to the output frame.
type TextureLayout struct {
	Top, Bottom   *int // exactly one of Top/Bottom must be set
	Left, Right   *int // exactly one of Left/Right must be set
	Width, Height int
	RotationDeg   float64
}

// FixedPositionLayout places each child per an explicit TextureLayout.
type FixedPositionLayout struct {
	base
	Children        []Component
	Resolution      media.Resolution
	TextureLayouts  []TextureLayout
	BackgroundColor Color
}

func (FixedPositionLayout) isComponent() {}

// TiledLayout is the builtin counterpart of Tiles: same semantics, but
// reached as a standalone builtin transform rather than through the
// declarative Tiles wrapper.
type TiledLayout struct {
	base
	Children        []Component
	Resolution      media.Resolution
	TileAspectRatio [2]int
	Padding, Margin int
	HorizontalAlign HorizontalAlign
	VerticalAlign   VerticalAlign
}

func (TiledLayout) isComponent() {}

// MirrorImage flips its single child's texture.
type MirrorImage struct {
	base
	Child Component
	Mode  MirrorMode
}

func (MirrorImage) isComponent() {}

// CornersRounding carries a normalized-unit corner radius for its
// single child; the Layout Engine only forwards the parameter. The
// Renderer Driver composites the child without rounding its corners:
// BorderRadius is not applied.
type CornersRounding struct {
	base
	Child        Component
	BorderRadius float64
}

func (CornersRounding) isComponent() {}

// Children returns the immediate child components of c, or nil for
// leaves. It is the read-only half of the {children(), children_mut()}
// surface the design notes call for; reconciliation only ever needs
// read access to the declarative tree (children_mut applies to the
// stateful tree, see state.go).
func Children(c Component) []Component {
	switch v := c.(type) {
	case View:
		return v.Children
	case Rescaler:
		return []Component{v.Child}
	case Shader:
		return v.Children
	case WebView:
		return v.Children
	case Tiles:
		return v.Children
	case TransformToResolution:
		return []Component{v.Child}
	case FixedPositionLayout:
		return v.Children
	case TiledLayout:
		return v.Children
	case MirrorImage:
		return []Component{v.Child}
	case CornersRounding:
		return []Component{v.Child}
	default:
		return nil
	}
}
