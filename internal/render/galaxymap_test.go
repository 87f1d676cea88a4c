package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xnstat/internal/domain"
)

func TestWritePNGSize(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, Layers{}))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, Width, img.Bounds().Dx())
	assert.Equal(t, Height, img.Bounds().Dy())
	assert.Equal(t, 1000, Width)
	assert.Equal(t, 400, Height)
}

func TestDrawPopulationAndPoints(t *testing.T) {
	img := Draw(Layers{
		Population: map[domain.Coords]int{
			{Galaxy: 1, System: 1}: 15,
		},
		Points: []domain.Coords{{Galaxy: 2, System: 50, Slot: 7}},
	})

	// 1:1 は満員なので白
	r, g, b, _ := img.At(1, 350).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0xffff), b)

	// 無人の星系は黒のまま
	r, _, _, _ = img.At(501, 350).RGBA()
	assert.Equal(t, uint32(0), r)

	// 2:50:7 は x=100, y=247 の黄色い点
	r, g, b, _ = img.At(100, 247).RGBA()
	assert.Greater(t, r>>8, uint32(100))
	assert.Greater(t, g>>8, uint32(100))
	assert.Less(t, b>>8, uint32(50))
}

func TestDrawGrid(t *testing.T) {
	img := Draw(Layers{})
	_, _, b, _ := img.At(200, 50).RGBA()
	assert.Greater(t, b>>8, uint32(100))
}
