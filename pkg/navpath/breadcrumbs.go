package navpath

import "strings"

// RootLabel is the label of the first breadcrumb.
const RootLabel = "root"

// Crumb is one breadcrumb. Non-navigable crumbs mark the current location.
type Crumb struct {
	Label     string `json:"label"`
	Target    string `json:"target"`
	Navigable bool   `json:"navigable"`
	Location  string `json:"location,omitempty"`
}

// Breadcrumbs builds the breadcrumb trail for prefix: a navigable root, a
// navigable crumb per intermediate segment, then the final segment as a plain
// label.
func Breadcrumbs(prefix string) []Crumb {
	segs := Segments(prefix)
	crumbs := make([]Crumb, 0, len(segs)+1)
	crumbs = append(crumbs, Crumb{Label: RootLabel, Target: "", Navigable: true, Location: LocationFor("")})
	if len(segs) == 0 {
		return crumbs
	}

	for i, seg := range segs[:len(segs)-1] {
		target := strings.Join(segs[:i+1], "/") + "/"
		crumbs = append(crumbs, Crumb{Label: seg, Target: target, Navigable: true, Location: LocationFor(target)})
	}
	crumbs = append(crumbs, Crumb{Label: segs[len(segs)-1]})
	return crumbs
}

// FormatBreadcrumbs renders crumbs as "root / a / b / c".
func FormatBreadcrumbs(crumbs []Crumb) string {
	labels := make([]string, len(crumbs))
	for i, c := range crumbs {
		labels[i] = c.Label
	}
	return strings.Join(labels, " / ")
}
