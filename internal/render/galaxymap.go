package render

import (
	"fmt"
	"image"
	"io"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"xnstat/internal/domain"
)

const (
	ScaleX = 2
	ScaleY = 100
	// Galaxies は地図に描く銀河の数。
	Galaxies = 4
	Width    = 500 * ScaleX
	Height   = Galaxies * ScaleY
)

type rgba struct{ r, g, b, a int }

var (
	backgroundGrid = rgba{128, 128, 128, 255}
	foregroundGrid = rgba{128, 128, 255, 255}
	pointColor     = rgba{255, 255, 0, 128}
)

// Layers は1枚の地図に重ねるもの。
// Population のキーは Slot を 0 にした座標。
type Layers struct {
	Population map[domain.Coords]int
	Points     []domain.Coords
}

// Draw は人口、点、グリッドの順に描く。
func Draw(l Layers) image.Image {
	dc := gg.NewContext(Width, Height)
	dc.SetRGBA255(0, 0, 0, 255)
	dc.Clear()
	drawGrid(dc, backgroundGrid)
	drawPopulation(dc, l.Population)
	drawPoints(dc, l.Points)
	drawGrid(dc, foregroundGrid)
	drawLabels(dc, foregroundGrid)
	return dc.Image()
}

// WritePNG は Draw の結果を PNG で書き出す。
func WritePNG(w io.Writer, l Layers) error {
	dc := gg.NewContextForImage(Draw(l))
	return dc.EncodePNG(w)
}

// 線はピクセルの中心を通す
func drawGrid(dc *gg.Context, c rgba) {
	dc.SetRGBA255(c.r, c.g, c.b, c.a)
	dc.SetLineWidth(1)
	for _, x := range []float64{200, 400, 600, 800} {
		dc.DrawLine(x+0.5, 0, x+0.5, Height)
	}
	for _, y := range []float64{100, 200, 300} {
		dc.DrawLine(0, y+0.5, Width, y+0.5)
	}
	dc.Stroke()
}

func drawPopulation(dc *gg.Context, counts map[domain.Coords]int) {
	if len(counts) == 0 {
		return
	}
	for x := 0; x < domain.MaxSystem; x++ {
		for y := 0; y < Galaxies; y++ {
			n := counts[domain.Coords{Galaxy: y + 1, System: x + 1}]
			if n <= 0 {
				continue
			}
			cc := 255 * n / domain.SlotsPerSystem
			if cc > 255 {
				cc = 255
			}
			dc.SetRGBA255(cc, cc, cc, 255)
			dc.DrawRectangle(float64(x*ScaleX), float64(Height-y*ScaleY-ScaleY), ScaleX, ScaleY)
			dc.Fill()
		}
	}
}

func drawPoints(dc *gg.Context, points []domain.Coords) {
	dc.SetRGBA255(pointColor.r, pointColor.g, pointColor.b, pointColor.a)
	for _, p := range points {
		if p.Galaxy < 1 || p.Galaxy > Galaxies {
			continue
		}
		x := float64(p.System * ScaleX)
		y := float64(Height-p.Galaxy*ScaleY) + math.Round(ScaleY*float64(p.Slot)/domain.SlotsPerSystem)
		dc.DrawEllipse(x, y, 2, 2)
		dc.Fill()
	}
}

// 各帯の右上に銀河番号
func drawLabels(dc *gg.Context, c rgba) {
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetRGBA255(c.r, c.g, c.b, c.a)
	for g := 1; g <= Galaxies; g++ {
		top := float64(Height - g*ScaleY)
		dc.DrawStringAnchored(fmt.Sprintf("G%d", g), Width-4, top+4, 1, 1)
	}
}
