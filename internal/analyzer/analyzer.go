package analyzer

import (
	"fmt"
	"strings"

	"go-image-transcriber/internal/logger"

	"github.com/sirupsen/logrus"
)

// ColorAnalysis is the full local analysis of a submitted image.
type ColorAnalysis struct {
	Format        string         `json:"format"`
	Width         int            `json:"width"`
	Height        int            `json:"height"`
	AspectRatio   float64        `json:"aspect_ratio"`
	Clusters      []ColorCluster `json:"clusters"`
	ContrastRatio float64        `json:"contrast_ratio"`
	Contrast      ContrastLevel  `json:"contrast"`
	Sharpness     SharpnessLevel `json:"sharpness"`
	Entropy       float64        `json:"entropy"`
	Observations  []string       `json:"observations"`
}

// ImageAnalyzer runs the local color/statistics pipeline.
type ImageAnalyzer interface {
	Analyze(data []byte) ColorAnalysis
}

type imageAnalyzer struct{}

// NewImageAnalyzer creates the color/statistics analyzer. It is stateless and
// safe for concurrent use.
func NewImageAnalyzer() ImageAnalyzer {
	return &imageAnalyzer{}
}

// Analyze runs the full local pipeline on raw image bytes. Decode or
// statistics failures produce a neutral result instead of an error so the
// caller's description pipeline never aborts on local analysis.
func (a *imageAnalyzer) Analyze(data []byte) ColorAnalysis {
	result := ColorAnalysis{Format: DetectImageFormat(data)}

	pixels, stats, err := SamplePixels(data)
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"format": result.Format,
			"bytes":  len(data),
		}).Warn("Local color analysis skipped")
		return result
	}

	result.Width = stats.Width
	result.Height = stats.Height
	result.AspectRatio = stats.AspectRatio
	result.Entropy = stats.Entropy
	result.Clusters = BuildColorReport(pixels)
	result.ContrastRatio, result.Contrast = ComputeContrast(stats.ChannelStd)
	result.Sharpness = ComputeSharpness(stats.Entropy)
	result.Observations = InferSymbolicElements(stats.AspectRatio, result.Clusters, result.Contrast, result.Sharpness)

	return result
}

// Summary renders the analysis as the short Portuguese paragraph folded into
// the vision prompt. Empty when nothing could be analyzed.
func (c ColorAnalysis) Summary() string {
	var parts []string
	if palette := FormatColorReport(c.Clusters); palette != "" {
		parts = append(parts, "Cores predominantes: "+palette)
	}
	if c.Contrast != "" {
		parts = append(parts, fmt.Sprintf("Contraste %s, nitidez %s", c.Contrast, c.Sharpness))
	}
	if len(c.Observations) > 0 {
		parts = append(parts, strings.Join(c.Observations, ". "))
	}
	return strings.Join(parts, ". ")
}
