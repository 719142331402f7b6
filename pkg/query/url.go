package query

import "strings"

// CreateURL joins pathname with the encoded store. An empty store yields
// the bare pathname.
func CreateURL(pathname string, s *Store) string {
	search := s.Encode()
	if search == "" {
		return pathname
	}
	return pathname + "?" + search
}

// SplitURL splits a URL or path into its pathname and query store.
// Any scheme and host are dropped, as is the fragment.
// An empty pathname becomes "/".
func SplitURL(raw string) (string, *Store) {
	raw, _, _ = strings.Cut(raw, "#")
	path, rawQuery, _ := strings.Cut(raw, "?")
	if i := strings.Index(path, "://"); i >= 0 {
		rest := path[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			path = rest[j:]
		} else {
			path = "/"
		}
	}
	if path == "" {
		path = "/"
	}
	return path, Parse(rawQuery)
}
