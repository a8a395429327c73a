package domain

import "fmt"

// DataError marks a malformed or out-of-order historical record. Fatal
// for the run; the offending record is carried in the error.
type DataError struct {
	Symbol string
	Record string
	Reason string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error on %s: %s (record: %s)", e.Symbol, e.Reason, e.Record)
}

// LoadError marks a strategy module whose file or entry points are
// missing. Raised before any market data streams.
type LoadError struct {
	Path   string
	Reason string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("cannot load module %s: %s", e.Path, e.Reason)
}

// IncompatibleModuleError marks a contract version mismatch between the
// host and a strategy module.
type IncompatibleModuleError struct {
	Path string
	Host int
	Got  int
}

func (e *IncompatibleModuleError) Error() string {
	return fmt.Sprintf("module %s declares contract version %d, host requires %d", e.Path, e.Got, e.Host)
}

// StrategyFaultError records an unrecoverable fault inside a module
// callback. Dispatch to the module halts; the run keeps recording.
type StrategyFaultError struct {
	Callback string
	Panic    any
}

func (e *StrategyFaultError) Error() string {
	return fmt.Sprintf("strategy fault in %s: %v", e.Callback, e.Panic)
}
