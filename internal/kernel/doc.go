// Package kernel provides the float64 inner loops used by the fitting code
// (dot products, weighted residual sums, axpy).
//
// Implementations are selected once at init. On CPUs with hardware fused
// multiply-add the FMA variants are used; everything else falls back to the
// plain Go loops. Set SPECFIT_KERNEL=generic to force the fallback.
package kernel
