//go:build !tokenleakcheck

package repair

// installLeakCheck is a no-op in production builds; see
// token_leakcheck_debug.go for the tokenleakcheck-tagged variant.
func installLeakCheck(*Token) {}
