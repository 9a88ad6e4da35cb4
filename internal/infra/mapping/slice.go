// Package mapping holds small generic helpers for converting between wire, domain and view
// shapes.
package mapping

// MapSlice converts every element of src with fn. A nil src yields an empty, non-nil slice so
// encoders emit [] rather than null.
func MapSlice[S any, D any](src []S, fn func(S) D) []D {
	dst := make([]D, 0, len(src))
	for _, item := range src {
		dst = append(dst, fn(item))
	}
	return dst
}

// MapSliceErr is MapSlice for conversions that can fail. It stops at the first error.
func MapSliceErr[S any, D any](src []S, fn func(S) (D, error)) ([]D, error) {
	dst := make([]D, 0, len(src))
	for _, item := range src {
		out, err := fn(item)
		if err != nil {
			return nil, err
		}
		dst = append(dst, out)
	}
	return dst, nil
}
