package symbol

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/dshills/peek/internal/engine"
)

// defaultItemSize is the byte width used for indexed access.
const defaultItemSize = 8

// Symbol represents one named or anonymous location in the target's
// address space. A regular symbol is identity-cached by its
// (name, address) pair and always served from the global catalog; an
// anonymous symbol has no name and is never cached.
//
// A Symbol keeps a non-owning reference to its catalog so address
// arithmetic and memory access resolve through the owning session.
type Symbol struct {
	catalog  *Catalog
	address  uint64
	name     string
	module   string
	category engine.Category

	mu            sync.Mutex
	itemSize      int
	fileAddr      uint64
	fileAddrKnown bool
}

// identity is the cache key for regular symbols.
type identity struct {
	name string
	addr uint64
}

func (s *Symbol) id() identity {
	return identity{name: s.name, addr: s.address}
}

// Address returns the ASLR-applied load address.
func (s *Symbol) Address() uint64 { return s.address }

// Name returns the symbol name, or the empty string for anonymous
// symbols.
func (s *Symbol) Name() string { return s.name }

// Anonymous reports whether the symbol has no name.
func (s *Symbol) Anonymous() bool { return s.name == "" }

// Module returns the base name of the containing image, when known.
func (s *Symbol) Module() string { return s.module }

// Category returns the symbol's classification.
func (s *Symbol) Category() engine.Category { return s.category }

// FileAddress returns the ASLR-independent address, asking the engine
// on first use and memoizing the answer.
func (s *Symbol) FileAddress() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fileAddrKnown {
		return s.fileAddr, nil
	}
	fa, err := s.catalog.eng.FileAddress(s.address)
	if err != nil {
		return 0, fmt.Errorf("file address of %s: %w", s, err)
	}
	s.fileAddr = fa
	s.fileAddrKnown = true
	return fa, nil
}

// ItemSize returns the byte width used by Index and SetIndex.
func (s *Symbol) ItemSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemSize
}

// SetItemSize changes the byte width used by Index and SetIndex. The
// item size is a transient view parameter; it is the only mutable
// attribute of a symbol.
func (s *Symbol) SetItemSize(size int) error {
	switch size {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("%w: %d", ErrBadItemSize, size)
	}
	s.mu.Lock()
	s.itemSize = size
	s.mu.Unlock()
	return nil
}

// Add returns the catalog-resolved symbol at address+delta.
func (s *Symbol) Add(delta int64) *Symbol {
	return s.catalog.Get(s.address + uint64(delta))
}

// Sub returns the catalog-resolved symbol at address-delta.
func (s *Symbol) Sub(delta int64) *Symbol {
	return s.Add(-delta)
}

// Peek reads size bytes at the symbol's address.
func (s *Symbol) Peek(size int) ([]byte, error) {
	return s.catalog.eng.ReadMemory(s.address, size)
}

// Poke writes data at the symbol's address.
func (s *Symbol) Poke(data []byte) (int, error) {
	return s.catalog.eng.WriteMemory(s.address, data)
}

// peekStrChunk is the read granularity for PeekString.
const peekStrChunk = 64

// PeekString reads a NUL-terminated string at the symbol's address.
func (s *Symbol) PeekString() (string, error) {
	var out []byte
	addr := s.address
	for {
		chunk, err := s.catalog.eng.ReadMemory(addr, peekStrChunk)
		if err != nil {
			return "", fmt.Errorf("peek string at %#x: %w", addr, err)
		}
		for _, b := range chunk {
			if b == 0 {
				return string(out), nil
			}
			out = append(out, b)
		}
		addr += peekStrChunk
	}
}

// Index reads the i-th item (of ItemSize bytes, little-endian) from
// the symbol's address and returns it as a catalog-resolved symbol.
func (s *Symbol) Index(i int64) (*Symbol, error) {
	size := s.ItemSize()
	addr := s.address + uint64(i*int64(size))
	raw, err := s.catalog.eng.ReadMemory(addr, size)
	if err != nil {
		return nil, fmt.Errorf("index %d of %s: %w", i, s, err)
	}
	return s.catalog.Get(decodeWord(raw)), nil
}

// SetIndex writes value as the i-th item (of ItemSize bytes,
// little-endian) at the symbol's address.
func (s *Symbol) SetIndex(i int64, value uint64) error {
	size := s.ItemSize()
	addr := s.address + uint64(i*int64(size))
	if _, err := s.catalog.eng.WriteMemory(addr, encodeWord(value, size)); err != nil {
		return fmt.Errorf("set index %d of %s: %w", i, s, err)
	}
	return nil
}

// String returns a readable representation: the name and address for
// regular symbols, the address alone for anonymous ones.
func (s *Symbol) String() string {
	if s.name == "" {
		return fmt.Sprintf("AnonymousSymbol(0x%016x)", s.address)
	}
	return fmt.Sprintf("Symbol(%s, 0x%016x)", s.name, s.address)
}

func decodeWord(raw []byte) uint64 {
	switch len(raw) {
	case 1:
		return uint64(raw[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(raw))
	case 4:
		return uint64(binary.LittleEndian.Uint32(raw))
	default:
		return binary.LittleEndian.Uint64(raw)
	}
}

func encodeWord(value uint64, size int) []byte {
	buf := make([]byte, size)
	switch size {
	case 1:
		buf[0] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(value))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(value))
	default:
		binary.LittleEndian.PutUint64(buf, value)
	}
	return buf
}
