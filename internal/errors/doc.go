// Package errors provides structured, coded errors for searchparams.
//
// Every error carries a code (e.g. "E001") registered with a category, a
// short message, a longer detail and an optional suggestion. Errors of the
// same category compare equal under errors.Is through category sentinels,
// so callers can branch on the kind of failure without matching codes.
//
// # Error Categories
//
//   - validation: bad call sites (empty key, undefined values, unknown operation)
//   - decode: malformed structured values found in a query string
//   - adapter: a host adapter precondition is unmet or the host cannot navigate
//   - config: configuration files and environment
//
// # Usage
//
//	err := errors.New("E001").WithDetail(`key "" passed to Set`)
//	if errors.Is(err, errors.Sentinel(errors.CategoryValidation)) {
//	    fmt.Println(err.Format())
//	}
package errors
