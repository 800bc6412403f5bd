package kvat

import "bytes"

// lookupByKey scans the entry table for an ACTIVE entry whose key chain
// decodes to key, returning its entry number. Keys are matched as
// null-terminated strings per the KEY_FORMAT_STRING convention; KVAT
// defines no other key format today.
func (e *Engine) lookupByKey(key string) (uint8, Entry, bool, error) {
	want := []byte(key)
	for i := uint8(1); i < e.cfg.PageCount; i++ {
		ent, err := e.readEntry(i)
		if err != nil {
			return 0, Entry{}, false, err
		}
		if !ent.Active() {
			continue
		}
		got, err := e.fetchKeyString(ent)
		if err != nil {
			return 0, Entry{}, false, err
		}
		if bytes.Equal(got, want) {
			return i, ent, true, nil
		}
	}
	return 0, Entry{}, false, nil
}

// fetchKeyString reads and null-trims the key chain of ent. Entry.Remains
// describes the value chain's final page, not the key's. The key format
// is self-terminating, so the key chain is always read in full (remains
// 0) and trimmed at its first null byte instead.
func (e *Engine) fetchKeyString(ent Entry) ([]byte, error) {
	raw, err := e.fetchChain(ent.KeyPage, ent.KeyMultiple(), 0)
	if err != nil {
		return nil, wrap(ErrTableError, "fetch key: %v", err)
	}
	return nullTerminatedString(raw), nil
}

func nullTerminatedString(raw []byte) []byte {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		return raw[:i]
	}
	return raw
}

// SaveValue stores value under key, creating a new entry or overwriting
// an existing one in place. The key chain is only rewritten if the key
// doesn't already exist under this entry.
func (e *Engine) SaveValue(key string, value []byte) error {
	if !e.initialized {
		return ErrInvalidAccess
	}
	if key == "" {
		return ErrInvalidAccess
	}

	slot, ent, found, err := e.lookupByKey(key)
	if err != nil {
		return wrap(ErrTableError, "save %q: lookup: %v", key, err)
	}
	if !found {
		var ok bool
		slot, ok = e.getEmptyEntryNumber()
		if !ok {
			return ErrInsufficientSpace
		}
		ent = Entry{}
	}

	ent.Metadata |= metaOpen
	if werr := e.writeEntry(slot, ent); werr != nil {
		return wrap(ErrTableError, "save %q: open entry: %v", key, werr)
	}

	if !found {
		keyBuf := append([]byte(key), 0)
		kp, kmulti, _, werr := e.writeChain(keyBuf, 0, false)
		if werr != nil {
			return ErrInsufficientSpace
		}
		ent.KeyPage = kp
		if kmulti {
			ent.Metadata |= metaKeyMultiple
		}
	}

	vp, vmulti, vremains, werr := e.writeChain(value, ent.ValuePage, ent.ValueMultiple())
	if werr != nil {
		return ErrInsufficientSpace
	}
	ent.ValuePage = vp
	if vmulti {
		ent.Metadata |= metaValueMultiple
	} else {
		ent.Metadata &^= metaValueMultiple
	}
	ent.Remains = vremains
	ent.Metadata |= metaActive
	ent.Metadata &^= metaOpen

	if werr := e.writeEntry(slot, ent); werr != nil {
		return wrap(ErrTableError, "save %q: commit entry: %v", key, werr)
	}
	return nil
}

// SaveString is a convenience wrapper storing a Go string as a
// null-terminated value, mirroring the key encoding.
func (e *Engine) SaveString(key string, value string) error {
	return e.SaveValue(key, append([]byte(value), 0))
}

// retrieveInternal locates key and returns its decoded value chain.
func (e *Engine) retrieveInternal(key string) ([]byte, error) {
	if !e.initialized {
		return nil, ErrInvalidAccess
	}
	_, ent, found, err := e.lookupByKey(key)
	if err != nil {
		return nil, wrap(ErrTableError, "retrieve %q: lookup: %v", key, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	val, err := e.fetchChain(ent.ValuePage, ent.ValueMultiple(), ent.Remains)
	if err != nil {
		return nil, wrap(ErrFetchFault, "retrieve %q: %v", key, err)
	}
	return val, nil
}

// RetrieveValue returns a freshly allocated copy of the value stored
// under key.
func (e *Engine) RetrieveValue(key string) ([]byte, error) {
	return e.retrieveInternal(key)
}

// RetrieveValueByBuffer copies the value stored under key into dst,
// returning the number of bytes written. dst must be at least as long
// as the stored value or ErrInsufficientSpace is returned.
func (e *Engine) RetrieveValueByBuffer(key string, dst []byte) (int, error) {
	val, err := e.retrieveInternal(key)
	if err != nil {
		return 0, err
	}
	if len(dst) < len(val) {
		return 0, ErrInsufficientSpace
	}
	return copy(dst, val), nil
}

// RetrieveString returns the value stored under key as a Go string,
// trimmed at its first null byte.
func (e *Engine) RetrieveString(key string) (string, error) {
	val, err := e.retrieveInternal(key)
	if err != nil {
		return "", err
	}
	return string(nullTerminatedString(val)), nil
}

// ChangeKey renames an existing entry's key in place without touching
// its value.
func (e *Engine) ChangeKey(oldKey, newKey string) error {
	if !e.initialized {
		return ErrInvalidAccess
	}
	if newKey == "" {
		return ErrInvalidAccess
	}
	slot, ent, found, err := e.lookupByKey(oldKey)
	if err != nil {
		return wrap(ErrTableError, "change key %q: lookup: %v", oldKey, err)
	}
	if !found {
		return ErrNotFound
	}
	if newKey != oldKey {
		if _, _, dup, derr := e.lookupByKey(newKey); derr == nil && dup {
			return ErrKeyDuplicate
		}
	}

	origKeyPage, origKeyMultiple := ent.KeyPage, ent.KeyMultiple()

	ent.Metadata |= metaOpen
	if werr := e.writeEntry(slot, ent); werr != nil {
		return wrap(ErrTableError, "change key %q: open entry: %v", oldKey, werr)
	}

	keyBuf := append([]byte(newKey), 0)
	kp, kmulti, _, werr := e.writeChain(keyBuf, origKeyPage, origKeyMultiple)
	if werr != nil {
		return e.restoreKeyAfterFailedChange(slot, ent, oldKey, origKeyPage, origKeyMultiple)
	}
	ent.KeyPage = kp
	if kmulti {
		ent.Metadata |= metaKeyMultiple
	} else {
		ent.Metadata &^= metaKeyMultiple
	}
	ent.Metadata &^= metaOpen

	if werr := e.writeEntry(slot, ent); werr != nil {
		return wrap(ErrTableError, "change key %q: commit entry: %v", oldKey, werr)
	}
	return nil
}

// restoreKeyAfterFailedChange runs when writeChain can't lay down the
// new key: ent is still ACTIVE|OPEN on storage with origKeyPage either
// untouched or partway overwritten by the failed attempt, so the slot
// can't be left for rebuild to find (rebuild only reclaims OPEN entries
// that are NOT ACTIVE). It writes oldKey back over the same chain and,
// if that succeeds, clears OPEN and reports the original failure as
// InsufficientSpace. If the restore write itself fails there is no key
// this entry can be known to hold, so the engine is deinitialized and
// ErrUnknown is returned rather than leaving a lie on storage.
func (e *Engine) restoreKeyAfterFailedChange(slot uint8, ent Entry, oldKey string, origKeyPage uint8, origKeyMultiple bool) error {
	oldBuf := append([]byte(oldKey), 0)
	kp, kmulti, _, rerr := e.writeChain(oldBuf, origKeyPage, origKeyMultiple)
	if rerr != nil {
		e.deinit()
		return ErrUnknown
	}
	ent.KeyPage = kp
	if kmulti {
		ent.Metadata |= metaKeyMultiple
	} else {
		ent.Metadata &^= metaKeyMultiple
	}
	ent.Metadata &^= metaOpen
	if werr := e.writeEntry(slot, ent); werr != nil {
		e.deinit()
		return ErrUnknown
	}
	return ErrInsufficientSpace
}

// DeleteValue removes the entry stored under key, freeing its key and
// value chains back to the bitmap.
func (e *Engine) DeleteValue(key string) error {
	if !e.initialized {
		return ErrInvalidAccess
	}
	slot, ent, found, err := e.lookupByKey(key)
	if err != nil {
		return wrap(ErrTableError, "delete %q: lookup: %v", key, err)
	}
	if !found {
		return ErrNotFound
	}
	if ferr := e.followChainAndMark(ent.KeyPage, false, ent.KeyMultiple()); ferr != nil {
		return wrap(ErrStorageFault, "delete %q: free key chain: %v", key, ferr)
	}
	if ferr := e.followChainAndMark(ent.ValuePage, false, ent.ValueMultiple()); ferr != nil {
		return wrap(ErrStorageFault, "delete %q: free value chain: %v", key, ferr)
	}
	if werr := e.writeEntry(slot, Entry{}); werr != nil {
		return wrap(ErrTableError, "delete %q: clear entry: %v", key, werr)
	}
	return nil
}

// Search scans the entry table starting at cursor for the next ACTIVE
// entry whose key has prefix, returning that entry's key and the
// cursor to resume from on the next call. A returned cursor of 0 means
// the scan reached the end of the table. The contract is "next
// unscanned entry position": the cursor only advances past a hit, so a
// caller that stops early and resumes later never skips an entry.
func (e *Engine) Search(prefix string, cursor uint8) (key string, nextCursor uint8, found bool, err error) {
	if !e.initialized {
		return "", 0, false, ErrInvalidAccess
	}
	if cursor == 0 {
		cursor = InitialSearchID
	}
	want := []byte(prefix)
	for i := cursor; i < e.cfg.PageCount; i++ {
		ent, rerr := e.readEntry(i)
		if rerr != nil {
			return "", 0, false, wrap(ErrTableError, "search: %v", rerr)
		}
		if !ent.Active() {
			continue
		}
		got, kerr := e.fetchKeyString(ent)
		if kerr != nil {
			return "", 0, false, kerr
		}
		if bytes.HasPrefix(got, want) {
			next := i + 1
			if next >= e.cfg.PageCount {
				next = 0
			}
			return string(got), next, true, nil
		}
	}
	return "", 0, false, nil
}
