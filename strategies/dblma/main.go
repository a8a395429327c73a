// Double moving-average crossover strategy as a loadable plugin.
//
// Build with:
//
//	go build -buildmode=plugin -o dblma.so ./strategies/dblma
//
// and run with -strategy ./dblma.so.
package main

import (
	"quant_go/internal/strategy"
	"quant_go/pkg/contract"
)

// Version declares the contract revision this plugin was built
// against. The host refuses the plugin on mismatch.
var Version int = contract.Version

// New constructs the strategy module.
func New() contract.Module {
	return strategy.NewDoubleMA(strategy.DoubleMAConfig{
		FastWindow:  5,
		SlowWindow:  20,
		Volume:      1000,
		PriceOffset: 5_000_000,
	})
}

// main is never executed; it exists so the package also compiles under
// the default buildmode. Plugin loading ignores it.
func main() {}
