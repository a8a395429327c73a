package host

import (
	"fmt"
	"plugin"
	"sort"
	"strings"
	"sync"

	"quant_go/internal/domain"
	"quant_go/pkg/contract"
)

// builtinPrefix addresses factories compiled into the binary instead
// of loaded from a shared object.
const builtinPrefix = "builtin:"

var (
	builtinMu sync.RWMutex
	builtins  = map[string]contract.Factory{}
)

// RegisterBuiltin makes a compiled-in strategy loadable under
// "builtin:<name>". Meant to be called from init functions.
func RegisterBuiltin(name string, f contract.Factory) {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	if _, dup := builtins[name]; dup {
		panic(fmt.Sprintf("host: duplicate builtin strategy %q", name))
	}
	builtins[name] = f
}

// BuiltinNames lists the registered builtin strategies, sorted.
func BuiltinNames() []string {
	builtinMu.RLock()
	defer builtinMu.RUnlock()
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Load resolves a module reference and constructs the module. A
// reference is either "builtin:<name>" or a filesystem path to a
// plugin built with -buildmode=plugin. The contract version is
// verified before the factory runs, so an incompatible module is
// refused before any market data flows.
func Load(ref string) (contract.Module, error) {
	if name, ok := strings.CutPrefix(ref, builtinPrefix); ok {
		builtinMu.RLock()
		f := builtins[name]
		builtinMu.RUnlock()
		if f == nil {
			return nil, &domain.LoadError{Path: ref, Reason: "no such builtin strategy"}
		}
		return f(), nil
	}

	p, err := plugin.Open(ref)
	if err != nil {
		return nil, &domain.LoadError{Path: ref, Reason: err.Error()}
	}

	verSym, err := p.Lookup(contract.SymbolVersion)
	if err != nil {
		return nil, &domain.LoadError{Path: ref, Reason: "missing Version symbol"}
	}
	ver, ok := verSym.(*int)
	if !ok {
		return nil, &domain.LoadError{Path: ref, Reason: fmt.Sprintf("Version has type %T, want int", verSym)}
	}
	if *ver != contract.Version {
		return nil, &domain.IncompatibleModuleError{Path: ref, Host: contract.Version, Got: *ver}
	}

	newSym, err := p.Lookup(contract.SymbolNew)
	if err != nil {
		return nil, &domain.LoadError{Path: ref, Reason: "missing New symbol"}
	}
	switch f := newSym.(type) {
	case func() contract.Module:
		return f(), nil
	case *contract.Factory:
		return (*f)(), nil
	default:
		return nil, &domain.LoadError{Path: ref, Reason: fmt.Sprintf("New has type %T, want func() contract.Module", newSym)}
	}
}
