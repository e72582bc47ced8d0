package heatmap

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/kubilitics/kubilitics-thermal/internal/models"
)

// inferno stops sampled at 0.0, 0.1, ..., 1.0.
var inferno = []color.RGBA{
	{0x00, 0x00, 0x04, 0xff},
	{0x16, 0x0b, 0x39, 0xff},
	{0x42, 0x0a, 0x68, 0xff},
	{0x6a, 0x17, 0x6e, 0xff},
	{0x93, 0x26, 0x67, 0xff},
	{0xbc, 0x37, 0x54, 0xff},
	{0xdd, 0x51, 0x3a, 0xff},
	{0xf3, 0x78, 0x19, 0xff},
	{0xfc, 0xa5, 0x0a, 0xff},
	{0xf6, 0xd7, 0x46, 0xff},
	{0xfc, 0xff, 0xa4, 0xff},
}

var (
	markerFill = color.RGBA{0x00, 0xff, 0xff, 0xff}
	markerEdge = color.RGBA{0x00, 0x00, 0x00, 0xff}
)

// Options controls the rendered image.
type Options struct {
	Columns      int
	Rows         int
	CellSize     int
	MarkerRadius int
}

// DefaultOptions renders the 100 × 80 grid at 5 px per cell.
func DefaultOptions() Options {
	return Options{
		Columns:      DefaultColumns,
		Rows:         DefaultRows,
		CellSize:     5,
		MarkerRadius: 4,
	}
}

// Renderer draws heatmaps as PNG images.
type Renderer struct {
	opts Options
}

// NewRenderer creates a renderer, filling zero options with defaults. A
// negative MarkerRadius disables sensor markers.
func NewRenderer(opts Options) *Renderer {
	def := DefaultOptions()
	if opts.Columns <= 0 {
		opts.Columns = def.Columns
	}
	if opts.Rows <= 0 {
		opts.Rows = def.Rows
	}
	if opts.CellSize <= 0 {
		opts.CellSize = def.CellSize
	}
	if opts.MarkerRadius == 0 {
		opts.MarkerRadius = def.MarkerRadius
	}
	return &Renderer{opts: opts}
}

// Image draws the interpolated field with every sensor marked. It returns nil
// for an empty snapshot.
func (r *Renderer) Image(sensors []models.SensorReading) *image.RGBA {
	g := Interpolate(sensors, r.opts.Columns, r.opts.Rows)
	if g == nil {
		return nil
	}

	cell := r.opts.CellSize
	width, height := r.opts.Columns*cell, r.opts.Rows*cell
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	span := g.Max - g.Min
	for i, row := range g.Values {
		// Row 0 is the smallest z and belongs at the bottom.
		top := height - (i+1)*cell
		for j, v := range row {
			t := 0.0
			if span > 0 {
				t = (v - g.Min) / span
			}
			c := Colormap(t)
			for dy := 0; dy < cell; dy++ {
				for dx := 0; dx < cell; dx++ {
					img.SetRGBA(j*cell+dx, top+dy, c)
				}
			}
		}
	}

	xLo, xHi := g.XS[0], g.XS[len(g.XS)-1]
	zLo, zHi := g.ZS[0], g.ZS[len(g.ZS)-1]
	for _, s := range sensors {
		px := project(s.X, xLo, xHi, width)
		py := height - 1 - project(s.Z, zLo, zHi, height)
		drawMarker(img, px, py, r.opts.MarkerRadius)
	}
	return img
}

// PNG encodes the heatmap. An empty snapshot yields nil bytes.
func (r *Renderer) PNG(sensors []models.SensorReading) ([]byte, error) {
	img := r.Image(sensors)
	if img == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode heatmap: %w", err)
	}
	return buf.Bytes(), nil
}

// Base64 returns the PNG as standard base64, or "" for an empty snapshot.
func (r *Renderer) Base64(sensors []models.SensorReading) (string, error) {
	data, err := r.PNG(sensors)
	if err != nil || data == nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Colormap maps t in [0, 1] onto the inferno palette.
func Colormap(t float64) color.RGBA {
	if t <= 0 {
		return inferno[0]
	}
	if t >= 1 {
		return inferno[len(inferno)-1]
	}
	pos := t * float64(len(inferno)-1)
	i := int(pos)
	f := pos - float64(i)
	a, b := inferno[i], inferno[i+1]
	return color.RGBA{
		R: lerp(a.R, b.R, f),
		G: lerp(a.G, b.G, f),
		B: lerp(a.B, b.B, f),
		A: 0xff,
	}
}

func lerp(a, b uint8, f float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*f + 0.5)
}

func project(v, lo, hi float64, size int) int {
	if hi <= lo {
		return size / 2
	}
	p := int((v - lo) / (hi - lo) * float64(size-1))
	if p < 0 {
		return 0
	}
	if p >= size {
		return size - 1
	}
	return p
}

func drawMarker(img *image.RGBA, cx, cy, radius int) {
	if radius <= 0 {
		return
	}
	b := img.Bounds()
	inner := (radius - 1) * (radius - 1)
	outer := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d := dx*dx + dy*dy
			if d > outer {
				continue
			}
			p := image.Pt(cx+dx, cy+dy)
			if !p.In(b) {
				continue
			}
			if d > inner {
				img.SetRGBA(p.X, p.Y, markerEdge)
			} else {
				img.SetRGBA(p.X, p.Y, markerFill)
			}
		}
	}
}
