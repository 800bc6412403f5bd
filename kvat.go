// Package kvat implements the Key Value Address Table: an embedded,
// dictionary-like file system for a byte-addressable non-volatile medium
// whose only guaranteed primitives are aligned block reads and aligned
// block writes. Keys are strings, values are arbitrary byte blobs.
//
// The engine is single-threaded and non-reentrant: callers must serialize
// access themselves (a mutex around an *Engine, or single-context use on
// a microcontroller). No operation is cancellable once entered.
package kvat

import "github.com/repixen/kvat/interfaces"

// Storage re-exports interfaces.Storage so callers of this package don't
// need a second import just to implement the collaborator contract.
type Storage = interfaces.Storage

// Format constants. Changing any of these against storage written under a
// different value is a format change, not a migration: they're part of
// the on-disk identity alongside Index.FormatID.
const (
	DefaultFormatID  uint16 = 0x4B31 // "K1"
	DefaultPageSize  uint32 = 32
	DefaultPageCount uint8  = 128
)

// InitialSearchID is the cursor value Search callers should seed
// before the first call of a scan.
const InitialSearchID uint8 = 1

// Config carries the format identity: the constants that define how a
// particular store is laid out. Two Engines over the same backing medium
// must agree on Config or one will treat the other's data as unformatted.
type Config struct {
	FormatID   uint16
	PageSize   uint32 // multiple of 4, <= 256
	PageCount  uint8  // includes reserved page/entry 0, <= 255
	IndexStart uint32
}

// DefaultConfig returns a Config usable for small embedded stores.
func DefaultConfig() Config {
	return Config{
		FormatID:   DefaultFormatID,
		PageSize:   DefaultPageSize,
		PageCount:  DefaultPageCount,
		IndexStart: 0,
	}
}

// PageBeginAddress is where the fixed-size paging region starts, right
// after the index header and the entry table.
func (c Config) PageBeginAddress() uint32 {
	return c.IndexStart + indexSize + uint32(c.PageCount)*entrySize
}

// StorageSize is the minimum backing medium size this Config needs.
func (c Config) StorageSize() uint32 {
	return c.PageBeginAddress() + uint32(c.PageCount)*c.PageSize
}

// Engine owns all runtime state for one KVAT store: the in-memory Index,
// the page occupancy bitmap, and the scratch buffer bridging the
// Storage port's alignment requirements to the logical records. Unlike
// the module-level globals of the original design, an Engine is a plain
// value a caller constructs, owns, and can run more than one of per
// process.
type Engine struct {
	storage Storage
	cfg     Config

	index       Index
	bmp         bitmap
	scratch     []byte
	initialized bool
}

// NewEngine builds an Engine over storage. Init must be called before any
// other operation.
func NewEngine(storage Storage, cfg Config) *Engine {
	scratchSize := cfg.PageSize
	if scratchSize < indexSize {
		scratchSize = indexSize
	}
	return &Engine{
		storage: storage,
		cfg:     cfg,
		scratch: make([]byte, scratchSize),
	}
}

// Init brings the engine up: it initializes the Storage port, loads or
// formats the index, and rebuilds the page occupancy bitmap by walking
// every active entry's chains.
func (e *Engine) Init() error {
	if e.initialized {
		return ErrInvalidAccess
	}
	if err := e.storage.Init(); err != nil {
		return wrap(ErrStorageFault, "storage init: %v", err)
	}
	idx, err := e.readIndex()
	if err != nil {
		return err
	}
	if idx.FormatID != e.cfg.FormatID {
		if err := e.format(); err != nil {
			return err
		}
	} else {
		e.index = idx
	}
	if err := e.rebuild(); err != nil {
		return wrap(ErrRecordFault, "rebuild bitmap: %v", err)
	}
	e.initialized = true
	return nil
}

// deinit voids runtime state after an unrecoverable fault. Every public
// call after this fails InvalidAccess; no heap state is reclaimed, the
// same way the original expects a hard reset to follow.
func (e *Engine) deinit() {
	e.initialized = false
}

// format writes a fresh header and a fully zeroed entry table, discarding
// whatever was on storage before.
func (e *Engine) format() error {
	e.index = Index{
		FormatID:         e.cfg.FormatID,
		PageSize:         e.cfg.PageSize,
		PageCount:        e.cfg.PageCount,
		PageBeginAddress: e.cfg.PageBeginAddress(),
	}
	if err := e.writeIndex(e.index); err != nil {
		return err
	}
	for i := uint8(0); ; i++ {
		if err := e.writeEntry(i, Entry{}); err != nil {
			return wrap(ErrTableError, "format: clear entry %d: %v", i, err)
		}
		if i+1 == e.cfg.PageCount {
			break
		}
	}
	return nil
}
