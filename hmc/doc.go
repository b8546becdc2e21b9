// Package hmc holds the pieces of adaptive Hamiltonian Monte Carlo: the
// momentum handler for each metric, the leapfrog integrator, the No-U-Turn
// trajectory builder, and the step size and mass matrix adapters used during
// warmup. Nothing here owns a chain; the sampler package sequences these
// pieces into warmup and sampling phases.
package hmc
