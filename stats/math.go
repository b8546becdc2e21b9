package stats

import "gonum.org/v1/gonum/floats"

// LogSumExp returns log(exp(x) + exp(y)) without overflow. Either argument
// may be -Inf (a zero weight).
func LogSumExp(x, y float64) float64 {
	pair := [2]float64{x, y}
	return floats.LogSumExp(pair[:])
}
