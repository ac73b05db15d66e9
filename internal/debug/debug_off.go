//go:build !debug

// Package debug provides assertions that compile to no-ops unless the
// binary is built with -tags debug. Ported from the teacher's cmn/debug
// so that call sites read identically in both modes.
package debug

func Assert(_ bool, _ ...any)            {}
func Assertf(_ bool, _ string, _ ...any) {}
func AssertNoErr(_ error)                {}
func AssertFunc(_ func() bool, _ ...any) {}
