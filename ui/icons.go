// Package ui provides the system tray front end for Claw Manager.
// This file contains icon generation for the tray.
package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/yllada/claw-manager/common"
	"github.com/yllada/claw-manager/gateway"
)

// Glyph is the symbol drawn inside the badge.
type Glyph int

const (
	GlyphCheck Glyph = iota
	GlyphDot
	GlyphEllipsis
	GlyphCross
)

// IconConfig defines the configuration for icon generation.
type IconConfig struct {
	Size        int
	FillColor   color.RGBA
	BorderColor color.RGBA
	SymbolColor color.RGBA
	Glyph       Glyph
}

var white = color.RGBA{255, 255, 255, 255}

// IconConfigForState returns the badge colors for a gateway state.
func IconConfigForState(st gateway.State) IconConfig {
	cfg := IconConfig{Size: common.TrayIconSize, SymbolColor: white}
	switch st {
	case gateway.StateOnline:
		cfg.FillColor = color.RGBA{56, 142, 60, 255}
		cfg.BorderColor = color.RGBA{76, 175, 80, 255}
		cfg.Glyph = GlyphCheck
	case gateway.StateStarting, gateway.StateStopping:
		cfg.FillColor = color.RGBA{245, 124, 0, 255}
		cfg.BorderColor = color.RGBA{255, 167, 38, 255}
		cfg.Glyph = GlyphEllipsis
	case gateway.StateError:
		cfg.FillColor = color.RGBA{198, 40, 40, 255}
		cfg.BorderColor = color.RGBA{239, 83, 80, 255}
		cfg.Glyph = GlyphCross
	default:
		cfg.FillColor = color.RGBA{117, 117, 117, 255}
		cfg.BorderColor = color.RGBA{158, 158, 158, 255}
		cfg.Glyph = GlyphDot
	}
	return cfg
}

// IconGenerator generates PNG icons for the system tray.
type IconGenerator struct {
	config IconConfig
}

// NewIconGenerator creates a new icon generator with the given config.
func NewIconGenerator(config IconConfig) *IconGenerator {
	return &IconGenerator{config: config}
}

// Generate creates a PNG icon and returns the bytes.
func (g *IconGenerator) Generate() []byte {
	img := g.Image()
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

// Image renders the icon without encoding it.
func (g *IconGenerator) Image() *image.RGBA {
	size := g.config.Size
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	g.drawBadge(img)
	switch g.config.Glyph {
	case GlyphCheck:
		g.drawCheckmark(img)
	case GlyphEllipsis:
		g.drawEllipsis(img)
	case GlyphCross:
		g.drawCross(img)
	default:
		g.drawDot(img)
	}
	return img
}

func (g *IconGenerator) center() (float64, float64, float64) {
	c := float64(g.config.Size) / 2
	return c, c, c - 1
}

// drawBadge fills a disc with a one pixel ring.
func (g *IconGenerator) drawBadge(img *image.RGBA) {
	cx, cy, r := g.center()
	for y := 0; y < g.config.Size; y++ {
		for x := 0; x < g.config.Size; x++ {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
			switch {
			case d <= r-1.2:
				img.Set(x, y, g.config.FillColor)
			case d <= r:
				img.Set(x, y, g.config.BorderColor)
			}
		}
	}
}

func (g *IconGenerator) set(img *image.RGBA, x, y int) {
	if x >= 0 && x < g.config.Size && y >= 0 && y < g.config.Size {
		img.Set(x, y, g.config.SymbolColor)
	}
}

func (g *IconGenerator) drawCheckmark(img *image.RGBA) {
	s := g.config.Size
	// Short stroke down-right, then long stroke up-right.
	x0, y0 := s*6/22, s*11/22
	for i := 0; i <= s*3/22; i++ {
		g.set(img, x0+i, y0+i)
		g.set(img, x0+i, y0+i+1)
	}
	x1, y1 := x0+s*3/22, y0+s*3/22
	for i := 0; i <= s*7/22; i++ {
		g.set(img, x1+i, y1-i)
		g.set(img, x1+i, y1-i+1)
	}
}

func (g *IconGenerator) drawDot(img *image.RGBA) {
	cx, cy, _ := g.center()
	r := float64(g.config.Size) / 7
	for y := 0; y < g.config.Size; y++ {
		for x := 0; x < g.config.Size; x++ {
			if math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy) <= r {
				g.set(img, x, y)
			}
		}
	}
}

func (g *IconGenerator) drawEllipsis(img *image.RGBA) {
	s := g.config.Size
	y := s / 2
	for _, x := range []int{s * 6 / 22, s * 10 / 22, s * 14 / 22} {
		for dy := 0; dy < 2; dy++ {
			for dx := 0; dx < 2; dx++ {
				g.set(img, x+dx, y+dy-1)
			}
		}
	}
}

func (g *IconGenerator) drawCross(img *image.RGBA) {
	s := g.config.Size
	lo, hi := s*7/22, s*14/22
	for i := 0; i <= hi-lo; i++ {
		g.set(img, lo+i, lo+i)
		g.set(img, lo+i+1, lo+i)
		g.set(img, hi-i, lo+i)
		g.set(img, hi-i+1, lo+i)
	}
}

// IconForState renders the tray icon for st.
func IconForState(st gateway.State) []byte {
	return NewIconGenerator(IconConfigForState(st)).Generate()
}

// IconCache holds one pre-rendered icon per state.
type IconCache map[gateway.State][]byte

// NewIconCache renders every state once.
func NewIconCache() IconCache {
	c := make(IconCache)
	for _, st := range gateway.AllStates() {
		c[st] = IconForState(st)
	}
	return c
}

// For returns the icon for st.
func (c IconCache) For(st gateway.State) []byte {
	if b, ok := c[st]; ok {
		return b
	}
	return c[gateway.StateUnknown]
}
