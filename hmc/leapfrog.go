package hmc

import (
	"gonum.org/v1/gonum/floats"

	"github.com/CraigKelly/gonuts/model"
)

// Point is one phase-space state: position, momentum, the gradient of the
// log density at the position, and the log density itself.
type Point struct {
	Q       []float64
	P       []float64
	Grad    []float64
	LogProb float64
}

// NewPoint allocates a zero point of the given dimension
func NewPoint(dim int) *Point {
	return &Point{
		Q:    make([]float64, dim),
		P:    make([]float64, dim),
		Grad: make([]float64, dim),
	}
}

// Clone returns a deep copy
func (z *Point) Clone() *Point {
	cp := NewPoint(len(z.Q))
	cp.CopyFrom(z)
	return cp
}

// CopyFrom overwrites z with src without allocating
func (z *Point) CopyFrom(src *Point) {
	copy(z.Q, src.Q)
	copy(z.P, src.P)
	copy(z.Grad, src.Grad)
	z.LogProb = src.LogProb
}

// Hamiltonian is potential (-log density) plus kinetic energy
func Hamiltonian(z *Point, h *MomentumHandler) float64 {
	return -z.LogProb + h.Kinetic(z.P)
}

// Leapfrog advances z by one step of size eps (negative eps integrates
// backwards in time). z.Grad must hold the gradient at z.Q on entry and is
// refreshed on exit. vel is scratch space of the same dimension.
func Leapfrog(target model.Target, h *MomentumHandler, z *Point, eps float64, vel []float64) {
	half := 0.5 * eps

	floats.AddScaled(z.P, half, z.Grad)

	h.Velocity(vel, z.P)
	floats.AddScaled(z.Q, eps, vel)

	z.LogProb = target.LogProbGrad(z.Q, z.Grad)
	floats.AddScaled(z.P, half, z.Grad)
}
