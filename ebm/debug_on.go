//go:build ebm_debug

package ebm

const debugChecksEnabled = true
