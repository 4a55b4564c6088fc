//go:build !ebm_debug

package ebm

//debugChecksEnabled compiles the weight cross-check accumulator out of
//release builds; the `ebm_debug` build tag turns it on.
const debugChecksEnabled = false
