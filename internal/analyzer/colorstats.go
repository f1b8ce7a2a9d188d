package analyzer

import (
	"fmt"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

// quantStep is the grid width used to bucket similar colors together.
const quantStep = 20

const (
	minClusterShare = 1.0 // percentage a cluster must exceed to be reported
	maxClusters     = 10
)

// ColorCluster is a bucket of pixels sharing a quantized HSV signature.
type ColorCluster struct {
	Name       string  `json:"name"`
	H          int     `json:"h"`
	S          int     `json:"s"`
	V          int     `json:"v"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ContrastLevel categorizes the spread of the dominant channel.
type ContrastLevel string

const (
	ContrastHigh   ContrastLevel = "alto"
	ContrastMedium ContrastLevel = "médio"
	ContrastLow    ContrastLevel = "baixo"
)

// SharpnessLevel categorizes the gray-level entropy of the image.
type SharpnessLevel string

const (
	SharpnessHigh   SharpnessLevel = "alta"
	SharpnessMedium SharpnessLevel = "média"
	SharpnessLow    SharpnessLevel = "baixa"
)

// RGBToHSV converts 8-bit RGB to HSV with h in [0,360) and s,v in [0,100].
// Hue is 0 for achromatic colors and saturation is 0 for black.
func RGBToHSV(r, g, b uint8) (h, s, v float64) {
	c := colorful.Color{R: float64(r) / 255.0, G: float64(g) / 255.0, B: float64(b) / 255.0}
	h, s, v = c.Hsv()
	return h, s * 100, v * 100
}

// ClassifyColorName maps an HSV point to a human-readable Portuguese color
// name. The table is evaluated top to bottom and the first match wins;
// hue bands own their lower bound and exclude their upper bound.
func ClassifyColorName(h, s, v float64) string {
	// Achromatic cases come first so low-saturation pixels never fall into
	// a hue band.
	switch {
	case v <= 20:
		return "Preto"
	case v >= 95 && s <= 10:
		return "Branco"
	case s <= 10:
		switch {
		case v < 40:
			return "Cinza escuro"
		case v < 70:
			return "Cinza"
		default:
			return "Cinza claro"
		}
	}

	switch {
	case h < 10 || h >= 345:
		if v < 50 {
			return "Vermelho escuro"
		}
		return "Vermelho"
	case h < 20:
		if v < 50 {
			return "Marrom escuro"
		}
		return "Marrom"
	case h < 40:
		switch {
		case s <= 40:
			return "Bege"
		case v >= 80:
			return "Laranja"
		default:
			return "Dourado"
		}
	case h < 70:
		if s <= 50 {
			return "Amarelo claro"
		}
		return "Amarelo"
	case h < 150:
		switch {
		case v < 40:
			return "Verde escuro"
		case s < 40:
			return "Verde claro"
		default:
			return "Verde"
		}
	case h < 180:
		return "Verde-água"
	case h < 200:
		return "Ciano"
	case h < 270:
		switch {
		case v < 40:
			return "Azul escuro"
		case s < 40:
			return "Azul claro"
		default:
			return "Azul"
		}
	case h < 290:
		return "Roxo"
	case h < 345:
		return "Rosa"
	}
	// Unreachable given full band coverage above.
	return "Cor indefinida"
}

// BuildColorReport quantizes each pixel into a 20-unit HSV grid, tallies the
// buckets and returns the dominant clusters ordered by share. Clusters at or
// below 1% are dropped and at most 10 entries are returned. An empty sample
// set yields an empty report.
func BuildColorReport(pixels []Pixel) []ColorCluster {
	if len(pixels) == 0 {
		return nil
	}

	type key struct{ h, s, v int }
	counts := make(map[key]int)
	for _, px := range pixels {
		h, s, v := RGBToHSV(px.R, px.G, px.B)
		k := key{
			h: int(h) / quantStep * quantStep,
			s: int(s) / quantStep * quantStep,
			v: int(v) / quantStep * quantStep,
		}
		counts[k]++
	}

	total := float64(len(pixels))
	clusters := make([]ColorCluster, 0, len(counts))
	for k, count := range counts {
		pct := float64(count) / total * 100
		if pct <= minClusterShare {
			continue
		}
		clusters = append(clusters, ColorCluster{
			Name:       ClassifyColorName(float64(k.h), float64(k.s), float64(k.v)),
			H:          k.h,
			S:          k.s,
			V:          k.v,
			Count:      count,
			Percentage: pct,
		})
	}

	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Percentage != clusters[j].Percentage {
			return clusters[i].Percentage > clusters[j].Percentage
		}
		return clusters[i].Name < clusters[j].Name
	})

	if len(clusters) > maxClusters {
		clusters = clusters[:maxClusters]
	}
	return clusters
}

// ComputeContrast classifies the largest channel standard deviation against
// the 128 mid-scale: above 0.7 is high, below 0.3 is low.
func ComputeContrast(channelStd [3]float64) (float64, ContrastLevel) {
	max := channelStd[0]
	for _, std := range channelStd[1:] {
		if std > max {
			max = std
		}
	}
	ratio := max / 128.0
	switch {
	case ratio > 0.7:
		return ratio, ContrastHigh
	case ratio < 0.3:
		return ratio, ContrastLow
	default:
		return ratio, ContrastMedium
	}
}

// ComputeSharpness classifies a pre-computed gray-level entropy value.
func ComputeSharpness(entropy float64) SharpnessLevel {
	switch {
	case entropy > 7:
		return SharpnessHigh
	case entropy < 4:
		return SharpnessLow
	default:
		return SharpnessMedium
	}
}

// FormatColorReport renders a cluster list as the short textual summary that
// is folded into the vision prompt.
func FormatColorReport(clusters []ColorCluster) string {
	if len(clusters) == 0 {
		return ""
	}
	out := ""
	for i, c := range clusters {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s (%.1f%%)", c.Name, c.Percentage)
	}
	return out
}
