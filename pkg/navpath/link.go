package navpath

import "strings"

// ParentEntry is the synthetic up-level row name.
const ParentEntry = "../"

// Link is the resolved navigation target of a row.
//
// For folders and the parent row Target is a prefix; for files it is the full
// object key. Location is the browser-style href.
type Link struct {
	Label    string `json:"label"`
	Target   string `json:"target"`
	IsPrefix bool   `json:"isPrefix"`
	Location string `json:"location"`
}

// ResolveLink computes the target and label of entryName shown under
// currentPrefix.
func ResolveLink(entryName, currentPrefix string) Link {
	switch {
	case entryName == ParentEntry:
		parent := Parent(currentPrefix)
		return Link{
			Label:    ParentEntry,
			Target:   parent,
			IsPrefix: true,
			Location: LocationFor(parent),
		}
	case strings.HasSuffix(entryName, "/"):
		segs := Segments(entryName)
		label := entryName
		if len(segs) > 0 {
			label = segs[len(segs)-1] + "/"
		}
		return Link{
			Label:    label,
			Target:   entryName,
			IsPrefix: true,
			Location: LocationFor(entryName),
		}
	default:
		label := entryName
		if i := strings.LastIndex(entryName, "/"); i >= 0 {
			label = entryName[i+1:]
		}
		return Link{
			Label:    label,
			Target:   entryName,
			Location: ObjectLocation(entryName),
		}
	}
}
