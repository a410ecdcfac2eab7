// Package optim holds the numerical strategies used by the refinement stage:
// a derivative-free Minimizer and a HessianEstimator. Both are interfaces so
// callers can substitute other implementations; the defaults are built on
// gonum (optimize.NelderMead and diff/fd.Hessian).
package optim
