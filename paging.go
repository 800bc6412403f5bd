package kvat

// pageAddress maps a page number to its storage address. n must be > 0;
// page 0 is the reserved null page and never part of any chain.
func (e *Engine) pageAddress(n uint8) uint32 {
	return e.index.PageBeginAddress + uint32(n)*e.index.PageSize
}

// readPage reads the whole page into the engine's scratch buffer and
// returns it. The slice is only valid until the next call that touches
// scratch; callers must copy out what they need before reusing it.
func (e *Engine) readPage(n uint8) ([]byte, error) {
	buf := e.scratch[:e.index.PageSize]
	if err := e.storage.Read(buf, e.pageAddress(n), e.index.PageSize); err != nil {
		return nil, wrap(ErrStorageFault, "read page %d: %v", n, err)
	}
	return buf, nil
}

// writePage programs a full page-sized buffer to page n.
func (e *Engine) writePage(n uint8, data []byte) error {
	if err := e.storage.Program(data, e.pageAddress(n), e.index.PageSize); err != nil {
		return wrap(ErrStorageFault, "write page %d: %v", n, err)
	}
	return nil
}

// readNext reads only the link byte at the front of page n's first word,
// leaving the rest of the page untouched.
func (e *Engine) readNext(n uint8) (uint8, error) {
	buf := e.scratch[:4]
	if err := e.storage.Read(buf, e.pageAddress(n), 4); err != nil {
		return 0, wrap(ErrStorageFault, "read link at page %d: %v", n, err)
	}
	return buf[0], nil
}

// payloadPerPage is how many payload bytes a page contributes: the whole
// page for a single-page chain, or all but the link byte for a multi-page
// chain.
func (e *Engine) payloadPerPage(isMultiple bool) uint32 {
	if isMultiple {
		return e.index.PageSize - 1
	}
	return e.index.PageSize
}
