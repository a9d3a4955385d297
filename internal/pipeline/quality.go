package pipeline

import "github.com/alti-global/prism/internal/models"

// goodQualityThreshold is the top-survivor confidence that marks retrieval
// as good.
const goodQualityThreshold = 0.7

// AssessQuality derives the retrieval quality signal from the survivors.
// No survivors means poor; a confident top survivor means good; anything in
// between is ambiguous. Ungraded survivors carry no confidence, so they can
// never rate better than ambiguous.
func AssessQuality(survivors []models.Passage) models.Quality {
	if len(survivors) == 0 {
		return models.QualityPoor
	}
	top := survivors[0]
	if top.Grade == models.GradeUngraded {
		return models.QualityPoor
	}
	if top.GradeConfidence >= goodQualityThreshold {
		return models.QualityGood
	}
	return models.QualityAmbiguous
}
