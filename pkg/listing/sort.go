package listing

import (
	"fmt"
	"slices"
	"strings"
)

// Field names a sortable entry attribute.
type Field string

const (
	FieldName          Field = "name"
	FieldContentLength Field = "contentLength"
	FieldLastModified  Field = "lastModified"
)

// SortKey is one tie-breaking key of a SortSpec.
type SortKey struct {
	Field Field `json:"field" yaml:"field"`
	Desc  bool  `json:"desc" yaml:"desc"`
}

// SortSpec is an ordered list of keys; the first key is primary.
type SortSpec []SortKey

// ParseSortSpec parses "name:asc,contentLength:desc". Direction defaults to
// ascending. An empty string yields an empty spec (API order).
func ParseSortSpec(s string) (SortSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SortSpec{}, nil
	}

	var spec SortSpec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, dir, _ := strings.Cut(part, ":")
		field, err := parseField(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		key := SortKey{Field: field}
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
		case "desc":
			key.Desc = true
		default:
			return nil, fmt.Errorf("invalid sort direction %q for field %s (want asc or desc)", dir, field)
		}
		spec = append(spec, key)
	}
	return spec, nil
}

func parseField(name string) (Field, error) {
	switch strings.ToLower(name) {
	case "name":
		return FieldName, nil
	case "contentlength", "size":
		return FieldContentLength, nil
	case "lastmodified", "modified":
		return FieldLastModified, nil
	default:
		return "", fmt.Errorf("unknown sort field %q (want name, contentLength or lastModified)", name)
	}
}

// String renders the spec in ParseSortSpec syntax.
func (s SortSpec) String() string {
	parts := make([]string, 0, len(s))
	for _, k := range s {
		dir := "asc"
		if k.Desc {
			dir = "desc"
		}
		parts = append(parts, string(k.Field)+":"+dir)
	}
	return strings.Join(parts, ",")
}

// Sort orders entries in place by spec. The sort is stable, so entries equal
// under every key keep their relative order.
func Sort(entries []Entry, spec SortSpec) {
	if len(spec) == 0 || len(entries) < 2 {
		return
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		for _, key := range spec {
			c := compareValues(valueOf(a, key.Field), valueOf(b, key.Field))
			if key.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

// sortValue is an extracted key. negInf marks a missing field, which orders
// before every present value.
type sortValue struct {
	negInf bool
	str    string
	num    int64
	isStr  bool
}

func valueOf(e Entry, field Field) sortValue {
	switch field {
	case FieldName:
		return sortValue{str: strings.ToLower(e.Name), isStr: true}
	case FieldContentLength:
		if e.IsFolder() || e.ContentLength == nil {
			return sortValue{negInf: true}
		}
		return sortValue{num: *e.ContentLength}
	case FieldLastModified:
		if e.IsFolder() || e.LastModified == nil {
			return sortValue{negInf: true}
		}
		return sortValue{num: e.LastModified.UnixNano()}
	default:
		return sortValue{negInf: true}
	}
}

func compareValues(a, b sortValue) int {
	switch {
	case a.negInf && b.negInf:
		return 0
	case a.negInf:
		return -1
	case b.negInf:
		return 1
	case a.isStr || b.isStr:
		return strings.Compare(a.str, b.str)
	case a.num < b.num:
		return -1
	case a.num > b.num:
		return 1
	default:
		return 0
	}
}
