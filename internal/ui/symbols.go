package ui

// Status marks. The instance table uses the circles for lifecycle states;
// the check, cross and warning sign mark command outcomes.
const (
	SymbolSuccess  = "✓"
	SymbolFail     = "✗"
	SymbolWarning  = "⚠"
	SymbolPending  = "○" // stopped
	SymbolProgress = "◐" // pending, stopping, shutting down
	SymbolComplete = "●" // running, finished wait
)
