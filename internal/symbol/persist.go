package symbol

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/dshills/peek/internal/engine"
)

// mapVersion is the persisted symbol-map format version.
const mapVersion = 1

// LoadOptions configures LoadMap.
type LoadOptions struct {
	// Probes are expressions evaluated after re-inserting the map to
	// detect a stale artifact. When every probe yields the engine's
	// "no output" marker the load is rejected. At least two probes are
	// required so a single flaky expression cannot reject a good map.
	Probes []string
}

// DefaultLoadOptions returns the standard staleness probes.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Probes: []string{"(void *)dlsym", "(void *)dlopen"},
	}
}

// SaveMap serializes every regular symbol currently known to the
// catalog as a session-scoped cache artifact. It snapshots the cache
// as-is and does not force population.
func (c *Catalog) SaveMap(w io.Writer) error {
	c.root().mu.RLock()
	syms := make([]*Symbol, len(c.root().order))
	copy(syms, c.root().order)
	c.root().mu.RUnlock()

	data := []byte(`{}`)
	var err error
	if data, err = sjson.SetBytes(data, "version", mapVersion); err != nil {
		return fmt.Errorf("encoding symbol map: %w", err)
	}
	if data, err = sjson.SetBytes(data, "session", uuid.NewString()); err != nil {
		return fmt.Errorf("encoding symbol map: %w", err)
	}

	for i, sym := range syms {
		prefix := fmt.Sprintf("symbols.%d.", i)
		if data, err = sjson.SetBytes(data, prefix+"name", sym.name); err != nil {
			return fmt.Errorf("encoding %s: %w", sym, err)
		}
		if data, err = sjson.SetBytes(data, prefix+"address", sym.address); err != nil {
			return fmt.Errorf("encoding %s: %w", sym, err)
		}
		if data, err = sjson.SetBytes(data, prefix+"category", sym.category.String()); err != nil {
			return fmt.Errorf("encoding %s: %w", sym, err)
		}
		if data, err = sjson.SetBytes(data, prefix+"module", sym.module); err != nil {
			return fmt.Errorf("encoding %s: %w", sym, err)
		}
	}

	if _, err := w.Write(pretty.Pretty(data)); err != nil {
		return fmt.Errorf("writing symbol map: %w", err)
	}
	return nil
}

// LoadMap re-inserts a previously saved symbol map into the catalog.
// Saved addresses are session-relative, so every entry is re-resolved
// against the current process rather than trusted blindly, and the
// whole load is rejected as stale when every staleness probe yields
// the engine's "no output" marker (the symptom of the wrong process or
// image being attached). On success the first image is force-refreshed
// since it changes between runs. Returns the number of symbols
// inserted.
func (c *Catalog) LoadMap(r io.Reader, opts LoadOptions) (int, error) {
	if len(opts.Probes) < 2 {
		opts = DefaultLoadOptions()
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("reading symbol map: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return 0, fmt.Errorf("reading symbol map: not valid JSON")
	}
	if v := gjson.GetBytes(data, "version").Int(); v != mapVersion {
		return 0, fmt.Errorf("reading symbol map: unsupported version %d", v)
	}

	g := c.root()
	count := 0
	for _, entry := range gjson.GetBytes(data, "symbols").Array() {
		name := entry.Get("name").String()
		if name == "" {
			continue
		}
		addr := entry.Get("address").Uint()
		cat := engine.ParseCategory(entry.Get("category").String())
		module := entry.Get("module").String()
		g.promote(name, addr, module, cat, 0, false)
		count++
	}

	noOutput := 0
	frame := g.eng.SelectedFrame()
	for _, probe := range opts.Probes {
		out, err := g.eng.EvaluateObject(frame, probe)
		if err != nil || out == engine.NoOutput {
			noOutput++
		}
	}
	if noOutput == len(opts.Probes) {
		return count, ErrStaleSymbolMap
	}

	// The main image re-randomizes between runs.
	if err := g.ForceRefresh(RefreshOptions{Bounded: true, From: 0, To: 0}); err != nil {
		return count, err
	}
	return count, nil
}
