package kvat

// entryAddress is the storage position of entry i: the entry table
// follows the index header directly, four bytes per slot.
func (e *Engine) entryAddress(i uint8) uint32 {
	return e.cfg.IndexStart + indexSize + uint32(i)*entrySize
}

func (e *Engine) readIndex() (Index, error) {
	buf := e.scratch[:indexSize]
	if err := e.storage.Read(buf, e.cfg.IndexStart, indexSize); err != nil {
		return Index{}, wrap(ErrStorageFault, "read index: %v", err)
	}
	return decodeIndex(buf), nil
}

func (e *Engine) writeIndex(idx Index) error {
	buf := e.scratch[:indexSize]
	encodeIndex(idx, buf)
	if err := e.storage.Program(buf, e.cfg.IndexStart, indexSize); err != nil {
		return wrap(ErrStorageFault, "write index: %v", err)
	}
	return nil
}

func (e *Engine) readEntry(i uint8) (Entry, error) {
	buf := e.scratch[:entrySize]
	if err := e.storage.Read(buf, e.entryAddress(i), entrySize); err != nil {
		return Entry{}, wrap(ErrTableError, "read entry %d: %v", i, err)
	}
	return decodeEntry(buf), nil
}

func (e *Engine) writeEntry(i uint8, ent Entry) error {
	buf := e.scratch[:entrySize]
	encodeEntry(ent, buf)
	if err := e.storage.Program(buf, e.entryAddress(i), entrySize); err != nil {
		return wrap(ErrTableError, "write entry %d: %v", i, err)
	}
	return nil
}

// getEmptyEntryNumber scans entries [1, PageCount) for the first slot
// that is neither ACTIVE nor OPEN. 0 means the table is full. A read
// failure on a slot is treated as "not this one" rather than aborting
// the scan, since table reads are modelled as infallible once Init succeeds.
func (e *Engine) getEmptyEntryNumber() (uint8, bool) {
	for i := uint8(1); i < e.cfg.PageCount; i++ {
		ent, err := e.readEntry(i)
		if err != nil {
			continue
		}
		if !ent.Active() && !ent.Open() {
			return i, true
		}
	}
	return 0, false
}
