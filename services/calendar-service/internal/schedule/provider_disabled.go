//go:build !protogen

package schedule

// NewProvider returns a nil Provider when built without generated gRPC
// stubs; callers treat nil as "directory unavailable" and use defaults.
func NewProvider(_ string) (Provider, error) {
	return nil, nil
}
