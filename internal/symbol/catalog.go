package symbol

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/dshills/peek/internal/engine"
)

// Catalog is a set of symbols. The catalog returned by NewCatalog is
// the session's global catalog, the single source of truth; every
// other catalog is a derived view referencing global entries.
type Catalog struct {
	eng    engine.Engine
	global *Catalog // nil when this catalog is the global one

	mu sync.RWMutex

	// Global-only identity indexes.
	byIdentity map[identity]*Symbol
	byName     map[string]*Symbol
	byAddr     map[uint64]*Symbol
	populated  map[string]bool

	// View-only membership.
	members map[identity]*Symbol

	// order preserves insertion order for enumeration. For the global
	// catalog it holds every regular symbol; for a view, its members.
	order []*Symbol
}

// NewCatalog creates the session's global catalog.
func NewCatalog(eng engine.Engine) *Catalog {
	return &Catalog{
		eng:        eng,
		byIdentity: make(map[identity]*Symbol),
		byName:     make(map[string]*Symbol),
		byAddr:     make(map[uint64]*Symbol),
		populated:  make(map[string]bool),
	}
}

// IsView reports whether the catalog is a derived view.
func (c *Catalog) IsView() bool { return c.global != nil }

// root returns the global catalog backing this one.
func (c *Catalog) root() *Catalog {
	if c.global != nil {
		return c.global
	}
	return c
}

// newView creates an empty derived view over the same global catalog.
func (c *Catalog) newView() *Catalog {
	return &Catalog{
		eng:     c.eng,
		global:  c.root(),
		members: make(map[identity]*Symbol),
	}
}

// Get returns the symbol for a load address. A cached regular symbol
// at that address is served from the global catalog; otherwise the
// address is resolved through the engine and, when it maps to a named
// entity, promoted into the global catalog. Addresses the engine knows
// nothing about yield a fresh anonymous symbol, so Get never fails.
func (c *Catalog) Get(addr uint64) *Symbol {
	g := c.root()

	g.mu.RLock()
	sym, ok := g.byAddr[addr]
	g.mu.RUnlock()
	if ok {
		return sym
	}

	info, resolved := Resolve(g.eng, addr)
	if resolved && info.Name != "" {
		return g.promote(info.Name, addr, info.Module, info.Category, info.FileAddress, true)
	}
	if resolved {
		return g.anonymous(addr, info.Module, info.Category)
	}
	return g.anonymous(addr, "", engine.CategoryUnknown)
}

// GetName returns the regular symbol with the given name, resolving it
// through the engine on a cache miss. ok is false when the name cannot
// be resolved; that is an expected outcome, not an error.
func (c *Catalog) GetName(name string) (*Symbol, bool) {
	if c.IsView() {
		c.mu.RLock()
		for _, sym := range c.order {
			if sym.name == name {
				c.mu.RUnlock()
				return sym, true
			}
		}
		c.mu.RUnlock()
		return c.root().GetName(name)
	}

	c.mu.RLock()
	sym, ok := c.byName[name]
	c.mu.RUnlock()
	if ok {
		return sym, true
	}

	infos, err := c.eng.ResolveName(name)
	if err != nil {
		return nil, false
	}
	for _, info := range infos {
		if !usable(info) || info.Name == "" {
			continue
		}
		return c.promote(info.Name, info.Address, info.Module, info.Category, info.FileAddress, true), true
	}
	return nil, false
}

// GetIdentity returns the regular symbol for an exact (name, address)
// identity, promoting it into the global catalog on first resolution.
func (c *Catalog) GetIdentity(name string, addr uint64) (*Symbol, bool) {
	g := c.root()

	g.mu.RLock()
	sym, ok := g.byIdentity[identity{name: name, addr: addr}]
	g.mu.RUnlock()
	if ok {
		return sym, true
	}

	info, resolved := Resolve(g.eng, addr)
	if !resolved {
		return nil, false
	}
	return g.promote(name, addr, info.Module, info.Category, info.FileAddress, true), true
}

// IndexName is the must-exist form of GetName: it fails with
// ErrSymbolAbsent where GetName would report a miss.
func (c *Catalog) IndexName(name string) (*Symbol, error) {
	sym, ok := c.GetName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSymbolAbsent, name)
	}
	return sym, nil
}

// addrLiteral matches the address-literal lookup shorthand: a leading
// "x", then an optional "0x", then 6 to 16 hex digits.
var addrLiteral = regexp.MustCompile(`^x(?:0x)?([0-9a-fA-F]{6,16})$`)

// Lookup resolves a bare token the way attribute-style access does: a
// token matching the address-literal shorthand is interpreted as an
// address and resolved through Get; anything else is a must-exist name
// lookup. The literal check runs before the name fallback.
func (c *Catalog) Lookup(token string) (*Symbol, error) {
	if m := addrLiteral.FindStringSubmatch(token); m != nil {
		addr, err := strconv.ParseUint(m[1], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrSymbolAbsent, token)
		}
		return c.Get(addr), nil
	}
	return c.IndexName(token)
}

// AddSymbol re-adds an existing regular symbol to the receiver. On the
// global catalog it is a no-op returning the cached entity; on a view
// it references the global entry. Anonymous symbols pass through
// untouched and are never indexed.
func (c *Catalog) AddSymbol(sym *Symbol) *Symbol {
	if sym.Anonymous() {
		return sym
	}

	g := c.root()
	cached := g.promote(sym.name, sym.address, sym.module, sym.category, sym.fileAddr, sym.fileAddrKnown)
	if c.IsView() {
		c.addMember(cached)
	}
	return cached
}

// AddAddress adds a raw address with no name, producing an anonymous
// symbol that is not inserted into the identity index.
func (c *Catalog) AddAddress(addr uint64) *Symbol {
	g := c.root()
	if info, ok := Resolve(g.eng, addr); ok {
		return g.anonymous(addr, info.Module, info.Category)
	}
	return g.anonymous(addr, "", engine.CategoryUnknown)
}

// AddNamed synthesizes a new named entity at addr in the global
// catalog. This is how externally injected libraries' symbols become
// visible. It fails with ErrSymbolConflict when a symbol with the same
// name already exists at a different address in the same module.
func (c *Catalog) AddNamed(addr uint64, name string, category engine.Category) (*Symbol, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrSymbolAbsent)
	}
	g := c.root()

	module := ""
	fileAddr := uint64(0)
	fileAddrKnown := false
	if info, ok := Resolve(g.eng, addr); ok {
		module = info.Module
		fileAddr = info.FileAddress
		fileAddrKnown = true
	}

	g.mu.RLock()
	existing, ok := g.byName[name]
	g.mu.RUnlock()
	if ok && existing.address != addr && existing.module == module {
		return nil, fmt.Errorf("%w: %q at %#x (existing at %#x in %s)",
			ErrSymbolConflict, name, addr, existing.address, existing.module)
	}

	sym := g.promote(name, addr, module, category, fileAddr, fileAddrKnown)
	if c.IsView() {
		c.addMember(sym)
	}
	return sym, nil
}

// Remove drops a symbol from a derived view. The global catalog never
// evicts; calling Remove on it fails with ErrGlobalRemove.
func (c *Catalog) Remove(sym *Symbol) error {
	if !c.IsView() {
		return ErrGlobalRemove
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := sym.id()
	if _, ok := c.members[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSymbolAbsent, sym)
	}
	delete(c.members, id)
	for i, m := range c.order {
		if m == sym {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// EnsurePopulated scans the symbol table of every module that has not
// been scanned yet. Population is monotonic and idempotent: a second
// call performs no additional engine scans.
func (c *Catalog) EnsurePopulated() error {
	g := c.root()

	mods, err := g.eng.Modules()
	if err != nil {
		return fmt.Errorf("enumerating modules: %w", err)
	}

	for _, mod := range mods {
		g.mu.RLock()
		done := g.populated[mod.Name]
		g.mu.RUnlock()
		if done {
			continue
		}
		if err := g.scanModule(mod.Name); err != nil {
			return err
		}
	}
	return nil
}

// RefreshOptions restricts a ForceRefresh pass.
type RefreshOptions struct {
	// From and To bound the module index range scanned, inclusive.
	// They apply only when Bounded is true.
	From, To int

	// Bounded enables the From/To range restriction.
	Bounded bool

	// Filter keeps only modules whose base name contains it. Empty
	// matches every module.
	Filter string
}

// ForceRefresh re-scans module symbol tables unconditionally,
// bypassing the populated marks, restricted to an index range and/or a
// substring filter on the module base name.
func (c *Catalog) ForceRefresh(opts RefreshOptions) error {
	g := c.root()

	mods, err := g.eng.Modules()
	if err != nil {
		return fmt.Errorf("enumerating modules: %w", err)
	}

	for i, mod := range mods {
		if opts.Bounded && (i < opts.From || i > opts.To) {
			continue
		}
		if opts.Filter != "" && !strings.Contains(mod.Name, opts.Filter) {
			continue
		}
		if err := g.scanModule(mod.Name); err != nil {
			return err
		}
	}
	return nil
}

// scanModule enumerates one module's raw symbol table and promotes
// every usable named entry, then marks the module populated.
func (g *Catalog) scanModule(module string) error {
	syms, err := g.eng.ModuleSymbols(module)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", module, err)
	}
	for _, info := range syms {
		if !usable(info) || info.Name == "" {
			continue
		}
		g.promote(info.Name, info.Address, info.Module, info.Category, info.FileAddress, true)
	}

	g.mu.Lock()
	g.populated[module] = true
	g.mu.Unlock()
	return nil
}

// All enumerates the catalog's symbols. On the global catalog this
// first ensures every module is populated; on a view it returns the
// members without touching the engine.
func (c *Catalog) All() ([]*Symbol, error) {
	if !c.IsView() {
		if err := c.EnsurePopulated(); err != nil {
			return nil, err
		}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Symbol, len(c.order))
	copy(out, c.order)
	return out, nil
}

// Len returns the number of cached regular symbols (global) or members
// (view) without triggering population.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Contains reports whether the catalog holds a regular symbol with
// sym's identity.
func (c *Catalog) Contains(sym *Symbol) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.IsView() {
		_, ok := c.members[sym.id()]
		return ok
	}
	_, ok := c.byIdentity[sym.id()]
	return ok
}

// Union returns a new view holding the symbols of both catalogs.
// Neither receiver nor argument is mutated.
func (c *Catalog) Union(other *Catalog) (*Catalog, error) {
	view := c.newView()
	for _, src := range []*Catalog{c, other} {
		syms, err := src.All()
		if err != nil {
			return nil, err
		}
		for _, sym := range syms {
			view.addMember(sym)
		}
	}
	return view, nil
}

// Difference returns a new view holding the receiver's symbols that
// are not members of other.
func (c *Catalog) Difference(other *Catalog) (*Catalog, error) {
	syms, err := c.All()
	if err != nil {
		return nil, err
	}
	view := c.newView()
	for _, sym := range syms {
		if !other.Contains(sym) {
			view.addMember(sym)
		}
	}
	return view, nil
}

// Filter returns a new view holding the receiver's symbols that
// satisfy keep.
func (c *Catalog) Filter(keep func(*Symbol) bool) (*Catalog, error) {
	syms, err := c.All()
	if err != nil {
		return nil, err
	}
	view := c.newView()
	for _, sym := range syms {
		if keep(sym) {
			view.addMember(sym)
		}
	}
	return view, nil
}

// ByModule filters to symbols whose module base name contains substr.
func (c *Catalog) ByModule(substr string, caseSensitive bool) (*Catalog, error) {
	match := containsFunc(substr, caseSensitive)
	return c.Filter(func(s *Symbol) bool { return match(s.module) })
}

// ByCategory filters to symbols of one category.
func (c *Catalog) ByCategory(cat engine.Category) (*Catalog, error) {
	return c.Filter(func(s *Symbol) bool { return s.category == cat })
}

// NameStartsWith filters to symbols whose name has the given prefix.
func (c *Catalog) NameStartsWith(prefix string, caseSensitive bool) (*Catalog, error) {
	if !caseSensitive {
		prefix = strings.ToLower(prefix)
		return c.Filter(func(s *Symbol) bool {
			return strings.HasPrefix(strings.ToLower(s.name), prefix)
		})
	}
	return c.Filter(func(s *Symbol) bool { return strings.HasPrefix(s.name, prefix) })
}

// NameEndsWith filters to symbols whose name has the given suffix.
func (c *Catalog) NameEndsWith(suffix string, caseSensitive bool) (*Catalog, error) {
	if !caseSensitive {
		suffix = strings.ToLower(suffix)
		return c.Filter(func(s *Symbol) bool {
			return strings.HasSuffix(strings.ToLower(s.name), suffix)
		})
	}
	return c.Filter(func(s *Symbol) bool { return strings.HasSuffix(s.name, suffix) })
}

// NameContains filters to symbols whose name contains the expression.
func (c *Catalog) NameContains(expr string, caseSensitive bool) (*Catalog, error) {
	match := containsFunc(expr, caseSensitive)
	return c.Filter(func(s *Symbol) bool { return match(s.name) })
}

func containsFunc(substr string, caseSensitive bool) func(string) bool {
	if caseSensitive {
		return func(s string) bool { return strings.Contains(s, substr) }
	}
	lower := strings.ToLower(substr)
	return func(s string) bool { return strings.Contains(strings.ToLower(s), lower) }
}

// addMember references a global entry from a view, without creating
// new identity. Duplicate additions are collapsed.
func (c *Catalog) addMember(sym *Symbol) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := sym.id()
	if _, ok := c.members[id]; ok {
		return
	}
	c.members[id] = sym
	c.order = append(c.order, sym)
}

// promote inserts (or returns) the regular symbol for an identity.
// Promotion is idempotent: re-resolving a cached identity returns the
// same entity, never a duplicate.
func (g *Catalog) promote(name string, addr uint64, module string, cat engine.Category, fileAddr uint64, fileAddrKnown bool) *Symbol {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := identity{name: name, addr: addr}
	if sym, ok := g.byIdentity[id]; ok {
		return sym
	}

	sym := &Symbol{
		catalog:       g,
		address:       addr,
		name:          name,
		module:        module,
		category:      cat,
		itemSize:      defaultItemSize,
		fileAddr:      fileAddr,
		fileAddrKnown: fileAddrKnown,
	}
	g.byIdentity[id] = sym
	g.order = append(g.order, sym)
	if _, ok := g.byName[name]; !ok {
		g.byName[name] = sym
	}
	if _, ok := g.byAddr[addr]; !ok {
		g.byAddr[addr] = sym
	}
	return sym
}

// anonymous builds a fresh address-only symbol. Each call may produce
// a distinct instance for the same address; none are cached.
func (g *Catalog) anonymous(addr uint64, module string, cat engine.Category) *Symbol {
	return &Symbol{
		catalog:  g,
		address:  addr,
		module:   module,
		category: cat,
		itemSize: defaultItemSize,
	}
}
