//go:build arm64

package kernel

import "golang.org/x/sys/cpu"

func init() {
	// FMADD is part of the base ARMv8 FP instruction set; ASIMD signals a
	// usable FP/SIMD unit.
	hasFMA = cpu.ARM64.HasASIMD
	initCapabilities()
}
