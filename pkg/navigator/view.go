package navigator

import (
	"time"

	"github.com/3leaps/nimbusview/pkg/listing"
	"github.com/3leaps/nimbusview/pkg/navpath"
)

// TimestampLayout formats LastModified for display.
const TimestampLayout = "2006-01-02 15:04:05"

// Row is one presentation row: an entry plus its resolved link.
type Row struct {
	Kind                listing.Kind `json:"kind"`
	Name                string       `json:"name"`
	Label               string       `json:"label"`
	Target              string       `json:"target"`
	IsPrefix            bool         `json:"isPrefix"`
	Location            string       `json:"location"`
	ContentLength       *int64       `json:"contentLength,omitempty"`
	LastModified        *time.Time   `json:"lastModified,omitempty"`
	LastModifiedDisplay string       `json:"lastModifiedDisplay,omitempty"`
}

// View is what a presentation surface renders.
type View struct {
	Prefix         string           `json:"prefix"`
	Data           []listing.Entry  `json:"data"`
	Rows           []Row            `json:"rows"`
	Breadcrumbs    []navpath.Crumb  `json:"breadcrumbs"`
	PageIndex      int              `json:"pageIndex"`
	TotalPages     int              `json:"totalPages"`
	ShowPagination bool             `json:"showPagination"`
	Loading        bool             `json:"loading"`
	Sort           listing.SortSpec `json:"sort"`
	Warning        string           `json:"warning,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// BuildRows resolves links for data shown under prefix, prepending the
// "../" row when prefix is not root.
func BuildRows(prefix string, data []listing.Entry) []Row {
	rows := make([]Row, 0, len(data)+1)
	if !navpath.IsRoot(prefix) {
		link := navpath.ResolveLink(navpath.ParentEntry, prefix)
		rows = append(rows, Row{
			Kind:     listing.KindFolder,
			Name:     navpath.ParentEntry,
			Label:    link.Label,
			Target:   link.Target,
			IsPrefix: true,
			Location: link.Location,
		})
	}
	for _, e := range data {
		link := navpath.ResolveLink(e.Name, prefix)
		row := Row{
			Kind:          e.Kind,
			Name:          e.Name,
			Label:         link.Label,
			Target:        link.Target,
			IsPrefix:      link.IsPrefix,
			Location:      link.Location,
			ContentLength: e.ContentLength,
			LastModified:  e.LastModified,
		}
		if e.LastModified != nil {
			row.LastModifiedDisplay = e.LastModified.Format(TimestampLayout)
		}
		rows = append(rows, row)
	}
	return rows
}

// ViewOf derives the presentation view from a state snapshot.
func ViewOf(s State) View {
	v := View{
		Prefix:         s.CurrentPrefix,
		Data:           s.Data,
		Rows:           BuildRows(s.CurrentPrefix, s.Data),
		Breadcrumbs:    navpath.Breadcrumbs(s.CurrentPrefix),
		PageIndex:      s.PageIndex,
		TotalPages:     s.TotalPages(),
		ShowPagination: s.TotalPages() > 1,
		Loading:        s.Loading,
		Sort:           s.Sort,
		Warning:        s.Warning,
	}
	if v.Data == nil {
		v.Data = []listing.Entry{}
	}
	if s.Err != nil {
		v.Error = s.Err.Error()
	}
	return v
}

// View returns the presentation view of the current state.
func (n *Navigator) View() View {
	return ViewOf(n.Snapshot())
}

// Breadcrumbs returns the breadcrumb trail of the current prefix.
func (n *Navigator) Breadcrumbs() []navpath.Crumb {
	return navpath.Breadcrumbs(n.Snapshot().CurrentPrefix)
}

// Rows returns the presentation rows of the committed data.
func (n *Navigator) Rows() []Row {
	s := n.Snapshot()
	return BuildRows(s.CurrentPrefix, s.Data)
}
