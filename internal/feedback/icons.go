package feedback

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
)

// Icons are rendered rather than embedded from files, following
// tray/icons.go's renderIcon approach, generalized from a two-color
// idle/recording pair to the four phase colors spec.md §4.6 specifies.
var (
	iconGrey   []byte
	iconRed    []byte
	iconOrange []byte
	iconGreen  []byte
)

func init() {
	const size = 22
	iconGrey = renderDot(size, color.RGBA{R: 140, G: 140, B: 140, A: 255})
	iconRed = renderDot(size, color.RGBA{R: 220, G: 50, B: 47, A: 255})
	iconOrange = renderDot(size, color.RGBA{R: 203, G: 133, B: 15, A: 255})
	iconGreen = renderDot(size, color.RGBA{R: 60, G: 160, B: 80, A: 255})
}

func renderDot(size int, fill color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cx, cy := float64(size)/2, float64(size)/2
	r := float64(size)/2 - 1
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy) <= r {
				img.Set(x, y, fill)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic("feedback: encoding icon: " + err.Error())
	}
	return buf.Bytes()
}
