// Package searchparams reads and writes URL query parameters through one
// API, whatever host supplies the URL.
//
// A Params engine wraps a snapshot of the current query string, the current
// path and a navigate function. Reads work on the snapshot; every write
// computes the next URL and hands it to navigate, which is the only thing
// that changes the live location:
//
//	p := searchparams.FromAdapter(adapter)
//	p.Add("tags", "go")                                   // ?tags=go
//	p.Set("filters", filters, searchparams.Serialize)     // JSON text value
//	f := p.Get("filters", searchparams.Parse)             // decoded again
//	p.Toggle("archived", nil)                             // flips "true"
//
// Keys may hold several values (?tags=go&tags=web). Get collapses a single
// value to a scalar unless ForceArray is given.
//
// # Snapshots
//
// An engine never re-reads the host. Two writes issued on the same engine
// both start from the same snapshot, so the second replaces the first.
// Build a new engine (FromAdapter) after navigation to see the new state.
package searchparams
