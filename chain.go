package kvat

// fetchChain reads the full payload of a chain into a freshly allocated
// slice sized by trimming remains trailing unused bytes off the chain's
// total payload capacity. remains is the count of unused bytes at the
// end of the final page's payload, whether that page is the chain's only
// page or its last link: Entry.Remains for a value chain, 0 for a key
// chain (which is read in full and trimmed at its null terminator).
func (e *Engine) fetchChain(start uint8, isMultiple bool, remains uint8) ([]byte, error) {
	if start == 0 {
		return nil, nil
	}
	if !isMultiple {
		page, err := e.readPage(start)
		if err != nil {
			return nil, err
		}
		n := uint32(len(page)) - uint32(remains)
		out := make([]byte, n)
		copy(out, page[:n])
		return out, nil
	}

	n := start
	var out []byte
	payload := e.payloadPerPage(true)
	for hop := 0; hop < int(e.cfg.PageCount); hop++ {
		page, err := e.readPage(n)
		if err != nil {
			return nil, err
		}
		next := page[0]
		body := page[1:]
		if next == 0 {
			out = append(out, body[:payload-uint32(remains)]...)
			return out, nil
		}
		out = append(out, body[:payload]...)
		n = next
	}
	return out, nil
}

// writeChain stores data across a chain, reusing as much of the
// previous chain (described by prevStart/prevMultiple) as fits before
// falling back to freshly allocated pages, and frees whatever of the
// previous chain goes unused. It returns the new chain's first page,
// whether it ended up multi-page, and the new Entry.Remains value.
//
// This runs in two passes rather than the single interleaved
// allocate-as-you-go walk: deciding every page up front avoids a
// double allocation when the reuse cursor runs dry exactly on the
// lookahead step (see DESIGN.md).
func (e *Engine) writeChain(data []byte, prevStart uint8, prevMultiple bool) (first uint8, isMultiple bool, remains uint8, err error) {
	if len(data) == 0 {
		if prevStart != 0 {
			if ferr := e.followChainAndMark(prevStart, false, prevMultiple); ferr != nil {
				return 0, false, 0, ferr
			}
		}
		return 0, false, 0, nil
	}

	single := e.payloadPerPage(false)
	if uint32(len(data)) <= single {
		leftover, lerr := e.leftoverAfterReuse(prevStart, prevMultiple, prevStart)
		if lerr != nil {
			return 0, false, 0, lerr
		}
		page, pageErr := e.takeOrReuse(prevStart)
		if pageErr != nil {
			return 0, false, 0, pageErr
		}
		buf := make([]byte, single)
		copy(buf, data)
		if werr := e.writePage(page, buf); werr != nil {
			e.bmp.mark(page, false)
			return 0, false, 0, werr
		}
		if leftover != 0 {
			if ferr := e.followChainAndMark(leftover, false, prevMultiple); ferr != nil {
				return 0, false, 0, ferr
			}
		}
		return page, false, uint8(single - uint32(len(data))), nil
	}

	payload := e.payloadPerPage(true)
	pagesNeeded := (len(data) + int(payload) - 1) / int(payload)

	pagesUsed := make([]uint8, 0, pagesNeeded)
	reuseCursor := prevStart
	reuseValid := prevMultiple
	var takenFresh []uint8

	unwind := func() {
		for _, p := range takenFresh {
			e.bmp.mark(p, false)
		}
	}

	for i := 0; i < pagesNeeded; i++ {
		if reuseCursor != 0 {
			pagesUsed = append(pagesUsed, reuseCursor)
			next := uint8(0)
			if reuseValid {
				n, nerr := e.readNext(reuseCursor)
				if nerr != nil {
					unwind()
					return 0, false, 0, nerr
				}
				next = n
			}
			reuseCursor = next
			continue
		}
		p, ok := e.bmp.findFree(true)
		if !ok {
			unwind()
			return 0, false, 0, ErrInsufficientSpace
		}
		takenFresh = append(takenFresh, p)
		pagesUsed = append(pagesUsed, p)
	}

	leftoverStart := uint8(0)
	if reuseCursor != 0 {
		leftoverStart = reuseCursor
	}

	lastLen := len(data) - (pagesNeeded-1)*int(payload)
	for i, p := range pagesUsed {
		buf := make([]byte, e.index.PageSize)
		if i+1 < len(pagesUsed) {
			buf[0] = pagesUsed[i+1]
			copy(buf[1:], data[i*int(payload):(i+1)*int(payload)])
		} else {
			buf[0] = 0
			copy(buf[1:], data[i*int(payload):i*int(payload)+lastLen])
		}
		if werr := e.writePage(p, buf); werr != nil {
			unwind()
			return 0, false, 0, werr
		}
	}

	if leftoverStart != 0 {
		if ferr := e.followChainAndMark(leftoverStart, false, true); ferr != nil {
			return 0, false, 0, ferr
		}
	}

	return pagesUsed[0], true, uint8(payload) - uint8(lastLen), nil
}

// takeOrReuse returns prevStart if it names a page (reusing the first
// page of a one-page-or-more previous chain), otherwise allocates fresh.
func (e *Engine) takeOrReuse(prevStart uint8) (uint8, error) {
	if prevStart != 0 {
		return prevStart, nil
	}
	p, ok := e.bmp.findFree(true)
	if !ok {
		return 0, ErrInsufficientSpace
	}
	return p, nil
}

// leftoverAfterReuse reports the start of whatever remains of a
// previous chain once its first page has been repurposed as a
// single-page write, so the caller can free it.
func (e *Engine) leftoverAfterReuse(prevStart uint8, prevMultiple bool, reused uint8) (uint8, error) {
	if prevStart == 0 || prevStart != reused || !prevMultiple {
		return 0, nil
	}
	next, err := e.readNext(reused)
	if err != nil {
		return 0, err
	}
	return next, nil
}
