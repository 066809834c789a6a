package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/vector"

	"rrt-planner/rrt"
)

// Palette of the frame renderer.
var (
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Blue  = color.RGBA{R: 0, G: 121, B: 241, A: 255}
	Green = color.RGBA{R: 0, G: 228, B: 48, A: 255}
	Red   = color.RGBA{R: 230, G: 41, B: 55, A: 255}
)

const discSegments = 32

// Style controls frame size, colours and stroke widths. Widths and radii are
// in pixels.
type Style struct {
	Width        int
	Height       int
	Background   color.Color
	EdgeColor    color.Color
	PathColor    color.Color
	StartColor   color.Color
	GoalColor    color.Color
	EdgeWidth    float64
	PathWidth    float64
	MarkerRadius float64
}

// DefaultStyle returns a 400x400 frame: white background, blue tree, green
// path and start marker, red goal marker.
func DefaultStyle() Style {
	return Style{
		Width:        400,
		Height:       400,
		Background:   White,
		EdgeColor:    Blue,
		PathColor:    Green,
		StartColor:   Green,
		GoalColor:    Red,
		EdgeWidth:    1,
		PathWidth:    2,
		MarkerRadius: 5,
	}
}

// Raster draws a scene. World coordinates are mapped linearly from the
// scene bounds onto the image.
type Raster struct {
	style Style
	ras   *vector.Rasterizer
}

// NewRaster creates a renderer for the given style.
func NewRaster(style Style) *Raster {
	return &Raster{style: style, ras: vector.NewRasterizer(style.Width, style.Height)}
}

// Render draws s into a new image.
func (r *Raster) Render(s Scene) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.style.Width, r.style.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(r.style.Background), image.Point{}, draw.Src)

	project := r.projector(s.Bounds)

	for _, node := range s.Nodes {
		if !node.HasParent() {
			continue
		}
		r.line(img, project(node.Point), project(s.Nodes[node.Parent].Point), r.style.EdgeWidth, r.style.EdgeColor)
	}

	if s.Reached {
		for i := 1; i < len(s.Path); i++ {
			r.line(img, project(s.Path[i-1]), project(s.Path[i]), r.style.PathWidth, r.style.PathColor)
		}
	}

	if len(s.Nodes) > 0 {
		r.disc(img, project(s.Start()), r.style.MarkerRadius, r.style.StartColor)
	}
	r.disc(img, project(s.Goal), r.style.MarkerRadius, r.style.GoalColor)

	return img
}

// WritePNG renders s and encodes it as PNG.
func (r *Raster) WritePNG(w io.Writer, s Scene) error {
	if err := png.Encode(w, r.Render(s)); err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return nil
}

type pixel struct{ x, y float32 }

func (r *Raster) projector(b rrt.Bounds) func(rrt.Point) pixel {
	sx, sy := 1.0, 1.0
	if b.Width() > 0 {
		sx = float64(r.style.Width) / b.Width()
	}
	if b.Height() > 0 {
		sy = float64(r.style.Height) / b.Height()
	}
	return func(p rrt.Point) pixel {
		return pixel{
			x: float32((p.X - b.MinX) * sx),
			y: float32((p.Y - b.MinY) * sy),
		}
	}
}

// line fills the rectangle of the given width centred on segment a-b.
func (r *Raster) line(dst draw.Image, a, b pixel, width float64, c color.Color) {
	dx, dy := float64(b.x-a.x), float64(b.y-a.y)
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	nx := float32(-dy / length * width / 2)
	ny := float32(dx / length * width / 2)

	r.ras.Reset(r.style.Width, r.style.Height)
	r.ras.MoveTo(a.x+nx, a.y+ny)
	r.ras.LineTo(b.x+nx, b.y+ny)
	r.ras.LineTo(b.x-nx, b.y-ny)
	r.ras.LineTo(a.x-nx, a.y-ny)
	r.ras.ClosePath()
	r.ras.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{})
}

func (r *Raster) disc(dst draw.Image, center pixel, radius float64, c color.Color) {
	r.ras.Reset(r.style.Width, r.style.Height)
	for i := 0; i < discSegments; i++ {
		angle := 2 * math.Pi * float64(i) / discSegments
		x := center.x + float32(radius*math.Cos(angle))
		y := center.y + float32(radius*math.Sin(angle))
		if i == 0 {
			r.ras.MoveTo(x, y)
		} else {
			r.ras.LineTo(x, y)
		}
	}
	r.ras.ClosePath()
	r.ras.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{})
}
