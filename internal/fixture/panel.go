package fixture

import (
	"fmt"
	"math"

	"github.com/tep-xi/lightshow/internal/colorize"
)

const (
	PanelRows = 12
	PanelCols = 12

	panelColorSlots = 500
	bandCols        = PanelCols / colorize.Slots
)

// MaxComp is the largest right-half offset that keeps every light inside the colour slots.
const MaxComp = panelColorSlots - 3*PanelRows*PanelCols

// RGB holds channel intensities in [0,1].
type RGB struct {
	R, G, B float64
}

// HSV converts a hue in turns to RGB. saturation washes the colour toward
// white: 0 is fully saturated, 1 is white at the given brightness.
func HSV(hue, brightness, saturation float64) RGB {
	angle := math.Mod(hue*6, 6)
	if angle < 0 {
		angle += 6
	}
	brightness = clamp01(brightness)
	saturation = clamp01(saturation)

	var c RGB
	switch {
	case angle < 1:
		c = RGB{1, 0, 1 - angle}
	case angle < 2:
		c = RGB{1, angle - 1, 0}
	case angle < 3:
		c = RGB{3 - angle, 1, 0}
	case angle < 4:
		c = RGB{0, 1, angle - 3}
	case angle < 5:
		c = RGB{0, 5 - angle, 1}
	default:
		c = RGB{angle - 5, 0, 1}
	}
	k := clamp01(brightness - saturation)
	c.R = brightness * (k*c.R + saturation)
	c.G = brightness * (k*c.G + saturation)
	c.B = brightness * (k*c.B + saturation)
	return c
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}

// Panel is a 12x12 grid of lights, indexed [row][col].
type Panel struct {
	Lights [PanelRows][PanelCols]RGB
	comp   int
}

// NewPanel returns a dark panel. comp shifts the right half's slots.
func NewPanel(comp int) (*Panel, error) {
	if comp < 0 || comp > MaxComp {
		return nil, fmt.Errorf("panel comp %d out of range 0..%d", comp, MaxComp)
	}
	return &Panel{comp: comp}, nil
}

// Clear turns every light off.
func (p *Panel) Clear() {
	p.Lights = [PanelRows][PanelCols]RGB{}
}

// Paint splits the panel into one vertical band per permutation slot. A band
// is full brightness when steady, half when flickering, dark when off. The
// base hue is drawn from the decision's rng snapshot and each band is offset
// by a quarter turn.
func (p *Panel) Paint(d colorize.Decision) error {
	rng, err := d.Snapshot.Rand()
	if err != nil {
		return fmt.Errorf("panel hue: %w", err)
	}
	base := rng.Float64()
	for band, state := range d.Permutation {
		var bri float64
		switch state {
		case colorize.Steady:
			bri = 1
		case colorize.Flicker:
			bri = 0.5
		}
		c := HSV(base+float64(band)/colorize.Slots, bri, 0)
		for col := band * bandCols; col < (band+1)*bandCols; col++ {
			for row := range PanelRows {
				p.Lights[row][col] = c
			}
		}
	}
	return nil
}

// Levels returns the DMX slots for the panel: a zero start code followed by
// r,g,b per light. The left six columns are wired in reverse column order.
func (p *Panel) Levels() []int {
	colors := make([]float64, panelColorSlots)
	for c := 0; c < PanelCols/2; c++ {
		for r := 0; r < PanelRows; r++ {
			i := 3 * (r + PanelRows*(PanelCols/2-1-c))
			l := p.Lights[r][c]
			colors[i], colors[i+1], colors[i+2] = l.R, l.G, l.B
		}
	}
	for c := PanelCols / 2; c < PanelCols; c++ {
		for r := 0; r < PanelRows; r++ {
			i := 3*(r+PanelRows*c) + p.comp
			l := p.Lights[r][c]
			colors[i], colors[i+1], colors[i+2] = l.R, l.G, l.B
		}
	}

	levels := make([]int, KiNETSlots)
	for i, v := range colors {
		levels[1+i] = int(255 * clamp01(v))
	}
	return levels
}
