package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Suggestion string
	DocURL     string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Validation Errors (E001-E009)
	// ============================================

	"E001": {
		Category:   CategoryValidation,
		Message:    "Key cannot be empty",
		Suggestion: "Pass a non-empty parameter key",
		DocURL:     "https://vango.dev/docs/searchparams/errors/E001",
	},
	"E002": {
		Category:   CategoryValidation,
		Message:    "Values cannot be undefined",
		Suggestion: "Pass a value, a slice of values, or use Clear to drop the key",
		DocURL:     "https://vango.dev/docs/searchparams/errors/E002",
	},
	"E003": {
		Category:   CategoryValidation,
		Message:    "Unknown operation",
		Suggestion: "Use one of get, getWithDefault, getAll, set, add, remove, matches, toggle, update, clear, reset, setMany",
		DocURL:     "https://vango.dev/docs/searchparams/errors/E003",
	},

	// ============================================
	// Decode Errors (E010-E019)
	// ============================================

	"E010": {
		Category:   CategoryDecode,
		Message:    "Failed to parse value",
		Suggestion: "The stored text is not valid for the parser; fall back to a default",
		DocURL:     "https://vango.dev/docs/searchparams/errors/E010",
	},

	// ============================================
	// Adapter Errors (E020-E029)
	// ============================================

	"E020": {
		Category:   CategoryAdapter,
		Message:    "Adapter unavailable",
		Suggestion: "Provide the host context (request, session or history) the provider needs",
		DocURL:     "https://vango.dev/docs/searchparams/errors/E020",
	},
	"E021": {
		Category:   CategoryAdapter,
		Message:    "Navigation attempted on server side",
		Suggestion: "Navigate from a client-side host; server rendering is read-only",
		DocURL:     "https://vango.dev/docs/searchparams/errors/E021",
	},

	// ============================================
	// Config Errors (E030-E039)
	// ============================================

	"E030": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration",
		Suggestion: "Check searchparams.json against the documented fields",
		DocURL:     "https://vango.dev/docs/searchparams/errors/E030",
	},
	"E031": {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Suggestion: "Create searchparams.json or searchparams.yaml, or rely on defaults",
		DocURL:     "https://vango.dev/docs/searchparams/errors/E031",
	},
}

// GetAllCodes returns all registered error codes, sorted.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
