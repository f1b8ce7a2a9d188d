package analyzer

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// encodeTestPNG builds a solid-color PNG for pipeline tests.
func encodeTestPNG(t *testing.T, width, height int, fill color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestRGBToHSV_Ranges(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		h, s, v float64
	}{
		{"black", 0, 0, 0, 0, 0, 0},
		{"white", 255, 255, 255, 0, 0, 100},
		{"red", 255, 0, 0, 0, 100, 100},
		{"green", 0, 255, 0, 120, 100, 100},
		{"blue", 0, 0, 255, 240, 100, 100},
		{"gray", 128, 128, 128, 0, 0, 50.196078},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, s, v := RGBToHSV(tt.r, tt.g, tt.b)
			if h < 0 || h >= 360 {
				t.Errorf("hue %f out of [0,360)", h)
			}
			if s < 0 || s > 100 || v < 0 || v > 100 {
				t.Errorf("s=%f v=%f out of [0,100]", s, v)
			}
			if !approx(h, tt.h) || !approx(s, tt.s) || !approx(v, tt.v) {
				t.Errorf("got (%f,%f,%f), want (%f,%f,%f)", h, s, v, tt.h, tt.s, tt.v)
			}
		})
	}
}

func approx(a, b float64) bool {
	d := a - b
	return d < 0.001 && d > -0.001
}

func TestClassifyColorName_BandBoundaries(t *testing.T) {
	// Sampled at every band boundary and one unit to each side, with full
	// saturation and value so only the hue bands decide.
	tests := []struct {
		h    float64
		want string
	}{
		{0, "Vermelho"}, {1, "Vermelho"},
		{9, "Vermelho"}, {10, "Marrom"}, {11, "Marrom"},
		{19, "Marrom"}, {20, "Laranja"}, {21, "Laranja"},
		{39, "Laranja"}, {40, "Amarelo"}, {41, "Amarelo"},
		{69, "Amarelo"}, {70, "Verde"}, {71, "Verde"},
		{90, "Verde"},
		{149, "Verde"}, {150, "Verde-água"}, {151, "Verde-água"},
		{179, "Verde-água"}, {180, "Ciano"}, {181, "Ciano"},
		{199, "Ciano"}, {200, "Azul"}, {201, "Azul"},
		{269, "Azul"}, {270, "Roxo"}, {271, "Roxo"},
		{289, "Roxo"}, {290, "Rosa"}, {291, "Rosa"},
		{344, "Rosa"}, {345, "Vermelho"}, {346, "Vermelho"},
		{359, "Vermelho"},
	}

	for _, tt := range tests {
		got := ClassifyColorName(tt.h, 100, 100)
		if got != tt.want {
			t.Errorf("h=%v: got %q, want %q", tt.h, got, tt.want)
		}
	}
}

func TestClassifyColorName_Achromatic(t *testing.T) {
	tests := []struct {
		name    string
		h, s, v float64
		want    string
	}{
		{"black wins over hue", 120, 100, 10, "Preto"},
		{"black boundary", 0, 0, 20, "Preto"},
		{"white", 0, 5, 98, "Branco"},
		{"dark gray", 200, 8, 30, "Cinza escuro"},
		{"mid gray", 200, 8, 50, "Cinza"},
		{"light gray", 200, 8, 80, "Cinza claro"},
		{"dark red", 0, 100, 40, "Vermelho escuro"},
		{"beige", 30, 30, 90, "Bege"},
		{"gold", 30, 80, 60, "Dourado"},
		{"light yellow", 50, 40, 95, "Amarelo claro"},
		{"dark green", 100, 100, 30, "Verde escuro"},
		{"light blue", 220, 30, 90, "Azul claro"},
		{"dark blue", 220, 100, 30, "Azul escuro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyColorName(tt.h, tt.s, tt.v); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildColorReport_AllBlack(t *testing.T) {
	pixels := make([]Pixel, 500)
	report := BuildColorReport(pixels)

	if len(report) != 1 {
		t.Fatalf("expected single cluster, got %d", len(report))
	}
	if report[0].Name != "Preto" {
		t.Errorf("expected Preto, got %q", report[0].Name)
	}
	if report[0].Percentage != 100.0 {
		t.Errorf("expected 100%%, got %f", report[0].Percentage)
	}
}

func TestBuildColorReport_Empty(t *testing.T) {
	if report := BuildColorReport(nil); len(report) != 0 {
		t.Errorf("expected empty report for no samples, got %d entries", len(report))
	}
}

func TestBuildColorReport_CapsAndFilters(t *testing.T) {
	// 256 evenly spread hues: plenty of distinct buckets, each well above 1%.
	pixels := make([]Pixel, 0, 25600)
	for i := 0; i < 256; i++ {
		for j := 0; j < 100; j++ {
			pixels = append(pixels, Pixel{R: uint8(i), G: uint8(255 - i), B: uint8((i * 7) % 256)})
		}
	}
	report := BuildColorReport(pixels)

	if len(report) > 10 {
		t.Errorf("report has %d entries, cap is 10", len(report))
	}
	for _, c := range report {
		if c.Percentage <= 1 {
			t.Errorf("cluster %q at %.2f%% should have been filtered", c.Name, c.Percentage)
		}
	}
	for i := 1; i < len(report); i++ {
		if report[i].Percentage > report[i-1].Percentage {
			t.Errorf("report not sorted descending at index %d", i)
		}
	}
}

func TestComputeContrast(t *testing.T) {
	tests := []struct {
		name string
		std  [3]float64
		want ContrastLevel
	}{
		{"high", [3]float64{100, 20, 20}, ContrastHigh},
		{"low", [3]float64{10, 20, 30}, ContrastLow},
		{"medium", [3]float64{64, 64, 64}, ContrastMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, got := ComputeContrast(tt.std); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComputeSharpness(t *testing.T) {
	if got := ComputeSharpness(7.5); got != SharpnessHigh {
		t.Errorf("entropy 7.5: got %q", got)
	}
	if got := ComputeSharpness(2.0); got != SharpnessLow {
		t.Errorf("entropy 2.0: got %q", got)
	}
	if got := ComputeSharpness(5.0); got != SharpnessMedium {
		t.Errorf("entropy 5.0: got %q", got)
	}
}

func TestDetectImageFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, "png"},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "jpeg"},
		{"bmp", []byte{0x42, 0x4D, 0x00}, "bmp"},
		{"gif", []byte("GIF89a"), "gif"},
		{"unknown defaults to png", []byte{0x00, 0x01, 0x02}, "png"},
		{"empty defaults to png", nil, "png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectImageFormat(tt.data); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnalyze_SolidRedEndToEnd(t *testing.T) {
	data := encodeTestPNG(t, 300, 300, color.RGBA{R: 255, A: 255})

	result := NewImageAnalyzer().Analyze(data)

	if result.Format != "png" {
		t.Errorf("expected png format, got %q", result.Format)
	}
	if len(result.Clusters) != 1 {
		t.Fatalf("expected single cluster, got %d", len(result.Clusters))
	}
	c := result.Clusters[0]
	if c.Name != "Vermelho" {
		t.Errorf("expected Vermelho, got %q", c.Name)
	}
	if c.Percentage != 100.0 {
		t.Errorf("expected 100%%, got %f", c.Percentage)
	}
	if c.H != 0 || c.S != 100 || c.V != 100 {
		t.Errorf("unexpected cluster key h=%d s=%d v=%d", c.H, c.S, c.V)
	}

	foundAlert := false
	for _, obs := range result.Observations {
		if obs == obsRed {
			foundAlert = true
		}
	}
	if !foundAlert {
		t.Errorf("expected alerta/perigo observation for red image, got %v", result.Observations)
	}
}

func TestAnalyze_GarbageBytesYieldNeutralResult(t *testing.T) {
	result := NewImageAnalyzer().Analyze([]byte("definitely not an image"))

	if len(result.Clusters) != 0 {
		t.Errorf("expected no clusters for undecodable input, got %d", len(result.Clusters))
	}
	if result.Summary() != "" {
		t.Errorf("expected empty summary, got %q", result.Summary())
	}
}
