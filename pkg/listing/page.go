package listing

// Page is the result of one segmented listing request.
//
// Entries keep API order: folder groups first, then leaf objects, each as
// returned. A Page is immutable once produced; it is shared through the cache.
type Page struct {
	Prefix     string  `json:"prefix"`
	Entries    []Entry `json:"entries"`
	NextCursor string  `json:"nextCursor,omitempty"`
}

// HasNext reports whether the API returned a continuation cursor.
func (p *Page) HasNext() bool { return p != nil && p.NextCursor != "" }

// Folders returns the folder entries in API order.
func (p *Page) Folders() []Entry {
	return p.filter(KindFolder)
}

// Files returns the file entries in API order.
func (p *Page) Files() []Entry {
	return p.filter(KindFile)
}

func (p *Page) filter(kind Kind) []Entry {
	if p == nil {
		return nil
	}
	out := make([]Entry, 0, len(p.Entries))
	for _, e := range p.Entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Merge returns a fresh slice with folders before files and the reserved
// self-reference removed. The page itself is not modified.
func Merge(p *Page) []Entry {
	if p == nil {
		return []Entry{}
	}
	out := make([]Entry, 0, len(p.Entries))
	for _, e := range p.Folders() {
		if e.IsReserved() {
			continue
		}
		out = append(out, e)
	}
	for _, e := range p.Files() {
		if e.IsReserved() {
			continue
		}
		out = append(out, e)
	}
	return out
}
