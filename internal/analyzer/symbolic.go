package analyzer

import "strings"

// Symbolic observation texts. Each rule targets a disjoint signal, so every
// matching rule is included and ordering is stable.
const (
	obsLandscape    = "Formato panorâmico, típico de paisagens ou banners"
	obsPortrait     = "Formato vertical, típico de retratos ou documentos"
	obsRed          = "Presença de vermelho: elemento de alerta/perigo ou destaque"
	obsGreen        = "Presença de verde: elemento de aprovação ou natureza"
	obsYellow       = "Presença de amarelo: elemento de atenção/cautela"
	obsBlue         = "Presença de azul: elemento de confiança ou informação"
	obsHighContrast = "Alto contraste: forte separação entre elementos"
	obsLowContrast  = "Baixo contraste: composição suave ou desbotada"
	obsHighSharp    = "Alta nitidez: muitos detalhes finos"
	obsLowSharp     = "Baixa nitidez: imagem suave ou desfocada"
)

// InferSymbolicElements derives human-readable observations from the shape
// and palette of an image. Returns an empty slice when no rule fires.
func InferSymbolicElements(aspectRatio float64, report []ColorCluster, contrast ContrastLevel, sharpness SharpnessLevel) []string {
	obs := []string{}

	if aspectRatio > 1.5 {
		obs = append(obs, obsLandscape)
	} else if aspectRatio < 0.67 && aspectRatio > 0 {
		obs = append(obs, obsPortrait)
	}

	if hasColorFamily(report, "Vermelho") {
		obs = append(obs, obsRed)
	}
	if hasColorFamily(report, "Verde") {
		obs = append(obs, obsGreen)
	}
	if hasColorFamily(report, "Amarelo") {
		obs = append(obs, obsYellow)
	}
	if hasColorFamily(report, "Azul") {
		obs = append(obs, obsBlue)
	}

	switch contrast {
	case ContrastHigh:
		obs = append(obs, obsHighContrast)
	case ContrastLow:
		obs = append(obs, obsLowContrast)
	}

	switch sharpness {
	case SharpnessHigh:
		obs = append(obs, obsHighSharp)
	case SharpnessLow:
		obs = append(obs, obsLowSharp)
	}

	return obs
}

func hasColorFamily(report []ColorCluster, family string) bool {
	for _, c := range report {
		if strings.HasPrefix(c.Name, family) {
			return true
		}
	}
	return false
}
