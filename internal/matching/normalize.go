package matching

import (
	"math"

	"github.com/notfall/dispatch-engine/internal/models"
)

// Normalize rescales each feature to zero mean and unit variance
// across the whole batch. A zero-variance feature normalizes to 0 for
// every row. Pure batch transform: the candidates are not mutated and
// the returned rows align with the input order.
func Normalize(candidates []models.MatchCandidate) [][models.FeatureCount]float64 {
	rows := make([][models.FeatureCount]float64, len(candidates))
	if len(candidates) == 0 {
		return rows
	}

	var mean, std [models.FeatureCount]float64

	for _, c := range candidates {
		f := c.Features()
		for j := 0; j < models.FeatureCount; j++ {
			mean[j] += f[j]
		}
	}
	n := float64(len(candidates))
	for j := 0; j < models.FeatureCount; j++ {
		mean[j] /= n
	}

	for _, c := range candidates {
		f := c.Features()
		for j := 0; j < models.FeatureCount; j++ {
			d := f[j] - mean[j]
			std[j] += d * d
		}
	}
	for j := 0; j < models.FeatureCount; j++ {
		std[j] = math.Sqrt(std[j] / n)
	}

	for i, c := range candidates {
		f := c.Features()
		for j := 0; j < models.FeatureCount; j++ {
			if std[j] == 0 {
				rows[i][j] = 0
				continue
			}
			rows[i][j] = (f[j] - mean[j]) / std[j]
		}
	}

	return rows
}
