// Package memstorage implements interfaces.Storage entirely in process
// memory, backed by github.com/dsnet/golib/memfile. It exists for tests
// and for exercising the engine without touching a real device, and
// supports fault injection so tests can exercise the engine's error
// paths without a flaky real medium.
package memstorage

import (
	"fmt"
	"sync"

	"github.com/dsnet/golib/memfile"
)

// Storage is an in-memory interfaces.Storage. The zero value is not
// usable; construct with New.
type Storage struct {
	mu  sync.Mutex
	buf []byte
	f   *memfile.File

	failProgramAt map[uint32]bool
	failReadAt    map[uint32]bool
}

// New allocates a Storage of size bytes, all zeroed.
func New(size uint32) *Storage {
	buf := make([]byte, size)
	return &Storage{
		buf:           buf,
		f:             memfile.New(buf),
		failProgramAt: make(map[uint32]bool),
		failReadAt:    make(map[uint32]bool),
	}
}

// FromBytes wraps an existing buffer, simulating a reboot onto
// previously written storage: no data is reset.
func FromBytes(buf []byte) *Storage {
	return &Storage{
		buf:           buf,
		f:             memfile.New(buf),
		failProgramAt: make(map[uint32]bool),
		failReadAt:    make(map[uint32]bool),
	}
}

// Snapshot returns a copy of the current backing bytes, suitable for
// handing to FromBytes to simulate power loss and restart.
func (s *Storage) Snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	return out
}

// FailProgramAt arranges for the next Program whose start address is
// addr to fail, one-shot.
func (s *Storage) FailProgramAt(addr uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failProgramAt[addr] = true
}

// FailReadAt arranges for the next Read whose start address is addr to
// fail, one-shot.
func (s *Storage) FailReadAt(addr uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReadAt[addr] = true
}

// ClearFaults cancels all pending one-shot fault injections.
func (s *Storage) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failProgramAt = make(map[uint32]bool)
	s.failReadAt = make(map[uint32]bool)
}

func (s *Storage) Init() error {
	return nil
}

func (s *Storage) Read(dst []byte, addr, length uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReadAt[addr] {
		delete(s.failReadAt, addr)
		return fmt.Errorf("memstorage: injected read fault at %d", addr)
	}
	if int64(addr)+int64(length) > int64(len(s.buf)) {
		return fmt.Errorf("memstorage: read out of range: addr=%d length=%d size=%d", addr, length, len(s.buf))
	}
	n, err := s.f.ReadAt(dst[:length], int64(addr))
	if err != nil && n != int(length) {
		return fmt.Errorf("memstorage: short read at %d: %v", addr, err)
	}
	return nil
}

func (s *Storage) Program(src []byte, addr, length uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failProgramAt[addr] {
		delete(s.failProgramAt, addr)
		return fmt.Errorf("memstorage: injected program fault at %d", addr)
	}
	if int64(addr)+int64(length) > int64(len(s.buf)) {
		return fmt.Errorf("memstorage: program out of range: addr=%d length=%d size=%d", addr, length, len(s.buf))
	}
	if _, err := s.f.WriteAt(src[:length], int64(addr)); err != nil {
		return fmt.Errorf("memstorage: write at %d: %v", addr, err)
	}
	return nil
}
