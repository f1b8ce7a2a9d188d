package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateConfidence(t *testing.T) {
	tests := []struct {
		name   string
		vision string
		local  string
		check  func(t *testing.T, score float64)
	}{
		{
			name:   "identical texts",
			vision: "Nota fiscal 12345",
			local:  "Nota fiscal 12345",
			check: func(t *testing.T, score float64) {
				assert.Equal(t, 1.0, score)
			},
		},
		{
			name:   "whitespace and case ignored",
			vision: "Nota  Fiscal\n12345",
			local:  "nota fiscal 12345",
			check: func(t *testing.T, score float64) {
				assert.Equal(t, 1.0, score)
			},
		},
		{
			name:   "close texts score high",
			vision: "Nota fiscal 12345",
			local:  "Nota fiscal 12346",
			check: func(t *testing.T, score float64) {
				assert.Greater(t, score, 0.9)
			},
		},
		{
			name:   "disjoint texts score low",
			vision: "abcdefghij",
			local:  "zyxwvutsrq",
			check: func(t *testing.T, score float64) {
				assert.Less(t, score, 0.2)
			},
		},
		{
			name:   "missing local text falls back to default",
			vision: "algum texto",
			local:  "",
			check: func(t *testing.T, score float64) {
				assert.Equal(t, DefaultConfidence, score)
			},
		},
		{
			name:   "both empty falls back to default",
			vision: "",
			local:  "",
			check: func(t *testing.T, score float64) {
				assert.Equal(t, DefaultConfidence, score)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, EstimateConfidence(tt.vision, tt.local))
		})
	}
}
