package store

// FindNextOffset returns where the next blob may start: the end of the
// metadata region, or the end of the furthest blob in entries if that is
// larger.
//
// A blob spans its header and its payload, so the end of entry e is
// e.StartOffset + HeaderSize + e.Size. Entry.Size records the payload only.
func FindNextOffset(entries []Entry, layout Layout) uint64 {
	next := uint64(layout.TableSize())
	for _, e := range entries {
		if end := e.End(); end > next {
			next = end
		}
	}
	return next
}
