// Package listing turns one level of a delimiter listing into ordered entries.
//
// It owns the entry model, the single-request fetch engine, the session
// listing cache and the multi-key sort used by the navigator.
package listing

import (
	"fmt"
	"strings"
	"time"
)

// ReservedName is a self-reference folder that is never shown to callers.
const ReservedName = "view/"

// Kind distinguishes folder groups from leaf objects.
type Kind int

const (
	// KindFolder is a pseudo-directory reported by the listing API.
	KindFolder Kind = iota
	// KindFile is a leaf object.
	KindFile
)

// String returns "folder" or "file".
func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "folder":
		*k = KindFolder
	case "file":
		*k = KindFile
	default:
		return fmt.Errorf("unknown entry kind %q", string(text))
	}
	return nil
}

// Entry is one row of a listing: either a folder or a file.
//
// Folder names always end with "/". ContentLength and LastModified are only
// set for files, and only when the API reported them.
type Entry struct {
	Kind          Kind       `json:"kind"`
	Name          string     `json:"name"`
	ContentLength *int64     `json:"contentLength,omitempty"`
	LastModified  *time.Time `json:"lastModified,omitempty"`
}

// Folder returns a folder entry, appending the trailing slash if missing.
func Folder(name string) Entry {
	if !strings.HasSuffix(name, "/") {
		name += "/"
	}
	return Entry{Kind: KindFolder, Name: name}
}

// File returns a file entry. Nil size or timestamp means the API omitted it.
func File(name string, size *int64, modified *time.Time) Entry {
	return Entry{Kind: KindFile, Name: name, ContentLength: size, LastModified: modified}
}

// IsFolder reports whether e is a folder group.
func (e Entry) IsFolder() bool { return e.Kind == KindFolder }

// IsReserved reports whether e must be hidden from datasets.
func (e Entry) IsReserved() bool { return e.Name == ReservedName }
