package heatmap

import (
	"bytes"
	"encoding/base64"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics/kubilitics-thermal/internal/models"
)

func sensors() []models.SensorReading {
	return []models.SensorReading{
		{Status: models.StatusOnline, Temperature: 20, X: 0, Z: 0},
		{Status: models.StatusOnline, Temperature: 40, X: 10, Z: 0},
		{Status: models.StatusOffline, Temperature: 30, X: 0, Z: 8},
	}
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, Linspace(0, 1, 5))
	assert.Equal(t, []float64{3}, Linspace(3, 9, 1))
	assert.Nil(t, Linspace(0, 1, 0))

	xs := Linspace(-1, 11, DefaultColumns)
	assert.Len(t, xs, 100)
	assert.Equal(t, -1.0, xs[0])
	assert.Equal(t, 11.0, xs[99])
}

func TestInterpolate_Bounds(t *testing.T) {
	g := Interpolate(sensors(), DefaultColumns, DefaultRows)
	require.NotNil(t, g)

	assert.Len(t, g.XS, 100)
	assert.Len(t, g.ZS, 80)
	require.Len(t, g.Values, 80)
	assert.Len(t, g.Values[0], 100)

	assert.Equal(t, -1.0, g.XS[0])
	assert.Equal(t, 11.0, g.XS[99])
	assert.Equal(t, -1.0, g.ZS[0])
	assert.Equal(t, 9.0, g.ZS[79])

	assert.GreaterOrEqual(t, g.Min, 20.0)
	assert.LessOrEqual(t, g.Max, 40.0)
}

func TestInterpolate_IDWFormula(t *testing.T) {
	in := sensors()
	g := Interpolate(in, 7, 5)
	require.NotNil(t, g)

	x, z := g.XS[3], g.ZS[2]
	var num, den float64
	for _, s := range in {
		w := 1 / (math.Sqrt((s.X-x)*(s.X-x)+(s.Z-z)*(s.Z-z)) + 1e-6)
		num += w * s.Temperature
		den += w
	}
	assert.InDelta(t, num/den, g.Values[2][3], 1e-9)
}

func TestInterpolate_SensorCellDominates(t *testing.T) {
	// With 3 columns over [-1, 11] the middle column sits at x=5; put a
	// sensor exactly on a lattice point so its weight dominates.
	in := []models.SensorReading{
		{Temperature: 100, X: 0, Z: 0},
		{Temperature: 0, X: 10, Z: 0},
		{Temperature: 0, X: 5, Z: 0},
	}
	g := Interpolate(in, 3, 3)
	require.NotNil(t, g)
	assert.InDelta(t, 0.0, g.Values[1][1], 1e-3)
}

func TestInterpolate_Empty(t *testing.T) {
	assert.Nil(t, Interpolate(nil, DefaultColumns, DefaultRows))
}

func TestColormap(t *testing.T) {
	assert.Equal(t, color.RGBA{0x00, 0x00, 0x04, 0xff}, Colormap(-1))
	assert.Equal(t, color.RGBA{0x00, 0x00, 0x04, 0xff}, Colormap(0))
	assert.Equal(t, color.RGBA{0xfc, 0xff, 0xa4, 0xff}, Colormap(1))
	assert.Equal(t, color.RGBA{0xbc, 0x37, 0x54, 0xff}, Colormap(0.5))

	// Brightness grows along the palette.
	lum := func(c color.RGBA) int { return int(c.R) + int(c.G) + int(c.B) }
	assert.Less(t, lum(Colormap(0.2)), lum(Colormap(0.8)))
}

func TestRenderer_PNG(t *testing.T) {
	r := NewRenderer(Options{})
	data, err := r.PNG(sensors())
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 500, img.Bounds().Dx())
	assert.Equal(t, 400, img.Bounds().Dy())

	// The sensor at the max corner of x and min of z is drawn as a cyan
	// marker near the bottom right of the image.
	xMax, zMin := 10.0, 0.0
	px := int((xMax - -1.0) / 12.0 * 499)
	py := 399 - int((zMin-(-1.0))/10.0*399)
	got := color.RGBAModel.Convert(img.At(px, py)).(color.RGBA)
	assert.Equal(t, markerFill, got)
}

func TestRenderer_Base64(t *testing.T) {
	r := NewRenderer(Options{Columns: 10, Rows: 8, CellSize: 2, MarkerRadius: -1})

	out, err := r.Base64(sensors())
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(out)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())

	empty, err := r.Base64(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRenderer_UniformFieldUsesLowestColor(t *testing.T) {
	r := NewRenderer(Options{Columns: 4, Rows: 4, CellSize: 1, MarkerRadius: -1})
	img := r.Image([]models.SensorReading{{Temperature: 22, X: 0, Z: 0}, {Temperature: 22, X: 3, Z: 3}})
	require.NotNil(t, img)
	assert.Equal(t, inferno[0], img.RGBAAt(1, 1))
}
