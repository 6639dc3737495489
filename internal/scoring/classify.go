// Package scoring turns model probabilities into class decisions and summary metrics.
package scoring

// DefaultThreshold is the probability above which a sample is called positive.
const DefaultThreshold = 0.5

// Classify maps each probability to 1 when it is strictly above threshold and to 0
// otherwise. NaN maps to 0.
func Classify(probabilities []float64, threshold float64) []int {
	out := make([]int, len(probabilities))
	for i, p := range probabilities {
		if p > threshold {
			out[i] = 1
		}
	}
	return out
}
