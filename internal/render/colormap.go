package render

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// DefaultColormap is the colormap used when none is configured.
const DefaultColormap = "jet"

type stop struct {
	pos float64
	c   colorful.Color
}

func rgb(r, g, b float64) colorful.Color {
	return colorful.Color{R: r, G: g, B: b}
}

var colormapStops = map[string][]stop{
	"jet": {
		{0, rgb(0, 0, 0.5)},
		{0.125, rgb(0, 0, 1)},
		{0.375, rgb(0, 1, 1)},
		{0.625, rgb(1, 1, 0)},
		{0.875, rgb(1, 0, 0)},
		{1, rgb(0.5, 0, 0)},
	},
	"hot": {
		{0, rgb(0, 0, 0)},
		{0.375, rgb(1, 0, 0)},
		{0.75, rgb(1, 1, 0)},
		{1, rgb(1, 1, 1)},
	},
	"viridis": {
		{0, rgb(0.267, 0.005, 0.329)},
		{0.25, rgb(0.231, 0.322, 0.545)},
		{0.5, rgb(0.129, 0.565, 0.553)},
		{0.75, rgb(0.365, 0.788, 0.388)},
		{1, rgb(0.992, 0.906, 0.145)},
	},
}

// Colormap maps a value in [0, 1] to a color.
// Colors between stops are interpolated in CIE L*a*b* space and cached in a 256-entry table.
type Colormap struct {
	name string
	lut  [256]color.RGBA
}

// ColormapNames lists the built-in colormaps.
func ColormapNames() []string {
	names := make([]string, 0, len(colormapStops))
	for name := range colormapStops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ColormapByName returns a built-in colormap. An empty name selects DefaultColormap.
func ColormapByName(name string) (*Colormap, error) {
	if name == "" {
		name = DefaultColormap
	}
	stops, ok := colormapStops[name]
	if !ok {
		return nil, fmt.Errorf("unknown colormap %q (available: %v)", name, ColormapNames())
	}

	cm := &Colormap{name: name}
	for i := range cm.lut {
		cm.lut[i] = interpolate(stops, float64(i)/255)
	}
	return cm, nil
}

// Jet returns the jet colormap.
func Jet() *Colormap {
	cm, _ := ColormapByName("jet")
	return cm
}

// Name returns the colormap name.
func (cm *Colormap) Name() string {
	return cm.name
}

// At returns the color for v. Values are clamped to [0, 1]; NaN maps to 0.
func (cm *Colormap) At(v float64) color.RGBA {
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return cm.lut[int(math.Round(v*255))]
}

func interpolate(stops []stop, v float64) color.RGBA {
	i := sort.Search(len(stops), func(i int) bool { return stops[i].pos >= v })
	var c colorful.Color
	switch {
	case i == 0:
		c = stops[0].c
	case i == len(stops):
		c = stops[len(stops)-1].c
	default:
		lo, hi := stops[i-1], stops[i]
		t := (v - lo.pos) / (hi.pos - lo.pos)
		c = lo.c.BlendLab(hi.c, t).Clamped()
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
