package exitcodes

// Exit codes for turbodelete
// These codes form the operational contract with scripts and operators
const (
	Success       = 0 // Every target removed
	TargetFailed  = 1 // At least one target could not be removed
	InvalidUsage  = 2 // Bad flags or no paths given
	InvalidConfig = 3 // Configuration file invalid or missing
	RuntimeError  = 4 // Runtime error outside deletion (history database, metrics export)
)
