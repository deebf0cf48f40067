// Package index extracts directory entries from the HTML listings served by
// index-based repository servers and pages the results.
//
// The parser is deliberately lenient: it scrapes anchor targets by substring
// rather than building a DOM, so partial or malformed listings still yield
// whatever entries can be recognised.
package index

import "strings"

// AnchorMarker is the literal that starts every directory entry in a listing.
const AnchorMarker = `<a href="`

// RootAnchor is the entry a server root listing exposes when the caller is
// allowed to browse the whole server.
const RootAnchor = `<a href="/">`

// Entry is a discovered repository. ID and Name are both the anchor target
// without its trailing slash.
type Entry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewEntry creates an entry whose ID and Name are both name.
func NewEntry(name string) Entry {
	return Entry{ID: name, Name: name}
}

// ParseEntries returns the anchor targets of html in source order. One
// trailing slash is removed from each target and empty targets are dropped.
// Duplicates are kept. ParseEntries never fails; unexpected input only yields
// fewer entries.
func ParseEntries(html string) []string {
	fragments := strings.Split(html, AnchorMarker)
	entries := make([]string, 0, len(fragments)-1)

	// The first fragment is the text preceding the first anchor.
	for _, fragment := range fragments[1:] {
		target := ""
		if end := strings.IndexByte(fragment, '"'); end >= 0 {
			target = fragment[:end]
		}
		target = strings.TrimSuffix(target, "/")
		if target == "" {
			continue
		}
		entries = append(entries, target)
	}

	return entries
}

// HasRootAnchor reports whether html lists the server root.
func HasRootAnchor(html string) bool {
	return strings.Contains(html, RootAnchor)
}
