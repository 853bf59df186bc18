package symbol

import (
	"fmt"
	"path/filepath"

	"github.com/dshills/peek/internal/engine"
)

// Inject loads an external code module into the inspected process and
// harvests its exported named code/data/runtime/objc-metaclass symbols
// into a caller-owned derived view. Symbols with an unresolved load
// address or an unsupported category are skipped.
func (c *Catalog) Inject(path string) (*Catalog, error) {
	g := c.root()

	handle, err := g.eng.LoadLibrary(path)
	if err != nil {
		return nil, fmt.Errorf("injecting %s: %w", path, err)
	}
	if handle == 0 {
		return nil, engine.Reject("LoadLibrary", fmt.Sprintf("failed to inject %s", path))
	}

	module := filepath.Base(path)
	syms, err := g.eng.ModuleSymbols(module)
	if err != nil {
		return nil, fmt.Errorf("harvesting %s: %w", module, err)
	}

	view := g.newView()
	for _, info := range syms {
		if !usable(info) || info.Name == "" {
			continue
		}
		view.addMember(g.promote(info.Name, info.Address, info.Module, info.Category, info.FileAddress, true))
	}

	g.mu.Lock()
	g.populated[module] = true
	g.mu.Unlock()

	return view, nil
}
