package app

// StopReason is logged when the app shuts down.
type StopReason string

const (
	StopUnknown     StopReason = "unknown"
	StopSignal      StopReason = "signal"
	StopInputClosed StopReason = "input_closed"
	StopFatalError  StopReason = "fatal_error"
)
