// Package broaden implements the instrument and line-profile model applied to
// a synthetic template before it is compared with an observation:
//
//   - Doppler shift of the wavelength axis
//   - rotational broadening by a projected velocity vsini, applied in
//     velocity (log-wavelength) space with a pixel-integrated kernel
//   - linear resampling onto the observed wavelength grid
//   - convolution with an instrument resolution matrix
//
// Resolution matrices are any gonum mat.Matrix; BuildResolutionMatrix makes a
// banded Gaussian line-spread operator from a resolving power.
package broaden
