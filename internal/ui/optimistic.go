package ui

import "context"

// Optimistic applies a local change, runs the remote call and inverts the local change if
// the call fails. The remote call is detached from ctx cancellation so that an issued
// mutation always runs to completion and its outcome is reconciled.
func Optimistic[T any](ctx context.Context, apply, invert func(), call func(context.Context) (T, error)) (T, error) {
	apply()
	res, err := call(context.WithoutCancel(ctx))
	if err != nil {
		invert()
		var zero T
		return zero, err
	}
	return res, nil
}
