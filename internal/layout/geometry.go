package layout

import (
	"fmt"
	"strings"
)

// PxPerMM converts millimetres to CSS pixels (96 px per inch)
const PxPerMM = 96 / 25.4

const mmPerInch = 25.4

// Paper presets, portrait, in millimetres
var papers = map[string][2]float64{
	"a4":     {210, 297},
	"letter": {215.9, 279.4},
	"legal":  {215.9, 355.6},
}

// Margins are page margins in millimetres
type Margins struct {
	Top    float64 `yaml:"top" json:"top"`
	Right  float64 `yaml:"right" json:"right"`
	Bottom float64 `yaml:"bottom" json:"bottom"`
	Left   float64 `yaml:"left" json:"left"`
}

// DefaultMargins leave room for the page label in the bottom margin
var DefaultMargins = Margins{Top: 20, Right: 20, Bottom: 20, Left: 20}

// Geometry is a physical page: paper size and margins in millimetres.
type Geometry struct {
	Paper    string
	WidthMM  float64
	HeightMM float64
	Margins  Margins
}

// A4 returns the default geometry
func A4() Geometry {
	g, _ := NewGeometry("a4", DefaultMargins)
	return g
}

// NewGeometry resolves a paper preset name (a4, letter, legal; case
// insensitive, empty means a4) and validates that the margins leave a
// content box.
func NewGeometry(paper string, m Margins) (Geometry, error) {
	name := strings.ToLower(strings.TrimSpace(paper))
	if name == "" {
		name = "a4"
	}
	size, ok := papers[name]
	if !ok {
		return Geometry{}, fmt.Errorf("unknown paper size %q (expected a4, letter or legal)", paper)
	}
	g := Geometry{Paper: name, WidthMM: size[0], HeightMM: size[1], Margins: m}
	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}
	return g, nil
}

// Validate checks that margins are non-negative and leave a positive content box.
func (g Geometry) Validate() error {
	m := g.Margins
	if m.Top < 0 || m.Right < 0 || m.Bottom < 0 || m.Left < 0 {
		return fmt.Errorf("page margins must not be negative")
	}
	if g.ContentWidthMM() <= 0 || g.ContentHeightMM() <= 0 {
		return fmt.Errorf("page margins leave no content area on %.1fx%.1fmm paper", g.WidthMM, g.HeightMM)
	}
	return nil
}

// ContentWidthMM is the paper width minus left and right margins
func (g Geometry) ContentWidthMM() float64 {
	return g.WidthMM - g.Margins.Left - g.Margins.Right
}

// ContentHeightMM is the paper height minus top and bottom margins
func (g Geometry) ContentHeightMM() float64 {
	return g.HeightMM - g.Margins.Top - g.Margins.Bottom
}

// ContentWidthPx is the content box width in CSS pixels
func (g Geometry) ContentWidthPx() float64 {
	return g.ContentWidthMM() * PxPerMM
}

// ContentHeightPx is the content box height in CSS pixels
func (g Geometry) ContentHeightPx() float64 {
	return g.ContentHeightMM() * PxPerMM
}

// CSSPageSize is the value for the @page size descriptor
func (g Geometry) CSSPageSize() string {
	return fmt.Sprintf("%smm %smm", trimFloat(g.WidthMM), trimFloat(g.HeightMM))
}

// WidthInches and HeightInches feed Chrome's printToPDF paper size
func (g Geometry) WidthInches() float64 { return g.WidthMM / mmPerInch }

// HeightInches returns the paper height in inches
func (g Geometry) HeightInches() float64 { return g.HeightMM / mmPerInch }

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
