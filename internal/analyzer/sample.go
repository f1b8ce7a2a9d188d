package analyzer

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
)

// maxSampleDim bounds the resampled image so the per-pixel pass stays cheap
// regardless of the submitted image size.
const maxSampleDim = 300

// Pixel is a decoded RGB sample taken from the resampled image.
// Fully transparent pixels are dropped before sampling.
type Pixel struct {
	R, G, B uint8
}

// ImageStats carries the per-image statistics the classification heuristics
// consume alongside the color report.
type ImageStats struct {
	Width       int
	Height      int
	AspectRatio float64
	ChannelStd  [3]float64 // R, G, B standard deviations on the 0-255 scale
	Entropy     float64    // gray-level Shannon entropy, 0..8 bits
}

type signature struct {
	format string
	magic  []byte
}

// Ordered by match priority. Anything unrecognized is treated as PNG and left
// for the decoder to reject.
var signatures = []signature{
	{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	{"jpeg", []byte{0xFF, 0xD8, 0xFF}},
	{"bmp", []byte{0x42, 0x4D}},
	{"gif", []byte{0x47, 0x49, 0x46, 0x38}},
}

// DetectImageFormat sniffs the encoded format from the leading signature
// bytes. User-supplied metadata is never trusted.
func DetectImageFormat(data []byte) string {
	for _, sig := range signatures {
		if len(data) >= len(sig.magic) && bytes.Equal(data[:len(sig.magic)], sig.magic) {
			return sig.format
		}
	}
	return "png"
}

// SamplePixels decodes the image, resamples it to fit within 300x300 and
// extracts the opaque pixels plus the statistics the classifiers need.
// The aspect ratio is taken from the original bounds, not the resampled ones.
func SamplePixels(data []byte) ([]Pixel, ImageStats, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ImageStats{}, fmt.Errorf("failed to decode image: %w", err)
	}

	origBounds := img.Bounds()
	stats := ImageStats{
		Width:  origBounds.Dx(),
		Height: origBounds.Dy(),
	}
	if stats.Height > 0 {
		stats.AspectRatio = float64(stats.Width) / float64(stats.Height)
	}

	small := imaging.Fit(img, maxSampleDim, maxSampleDim, imaging.Lanczos)
	bounds := small.Bounds()

	pixels := make([]Pixel, 0, bounds.Dx()*bounds.Dy())
	var sum, sumSq [3]float64
	grayHist := make([]int, 256)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := small.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			px := Pixel{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}
			pixels = append(pixels, px)

			for i, ch := range [3]uint8{px.R, px.G, px.B} {
				f := float64(ch)
				sum[i] += f
				sumSq[i] += f * f
			}
			gray := (299*int(px.R) + 587*int(px.G) + 114*int(px.B)) / 1000
			grayHist[gray]++
		}
	}

	n := float64(len(pixels))
	if n > 0 {
		for i := 0; i < 3; i++ {
			mean := sum[i] / n
			variance := sumSq[i]/n - mean*mean
			if variance < 0 {
				variance = 0
			}
			stats.ChannelStd[i] = math.Sqrt(variance)
		}
		for _, count := range grayHist {
			if count == 0 {
				continue
			}
			p := float64(count) / n
			stats.Entropy -= p * math.Log2(p)
		}
	}

	return pixels, stats, nil
}
