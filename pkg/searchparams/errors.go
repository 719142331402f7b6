package searchparams

import "github.com/vango-dev/searchparams/internal/errors"

// Error sentinels. Match them with errors.Is.
var (
	// ErrValidation: empty key, undefined values or unknown operation.
	// Returned before any navigation.
	ErrValidation error = errors.Sentinel(errors.CategoryValidation)

	// ErrDecode: a stored value could not be decoded. Reads recover from it
	// and report it to diagnostics only.
	ErrDecode error = errors.Sentinel(errors.CategoryDecode)

	// ErrAdapter: an adapter could not be built, or navigation was
	// attempted on a host that cannot navigate.
	ErrAdapter error = errors.Sentinel(errors.CategoryAdapter)

	// ErrAdapterUnavailable is the specific adapter construction failure.
	ErrAdapterUnavailable error = errors.New("E020")

	// ErrUnsupportedNavigation is reported when navigate runs on the server.
	ErrUnsupportedNavigation error = errors.New("E021")
)

func validateKey(op, key string) error {
	if key == "" {
		return errors.New("E001").WithDetail(op)
	}
	return nil
}

func validateParams(op, key string, values any) error {
	if err := validateKey(op, key); err != nil {
		return err
	}
	if values == nil {
		return errors.New("E002").WithDetail(op + " " + key)
	}
	return nil
}
