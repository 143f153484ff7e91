// Package snsctx carries per-command flags through the context.
package snsctx

import "context"

type verboseKey struct{}

// IsVerbose reports whether raw bus traffic should be logged.
func IsVerbose(ctx context.Context) bool {
	v, ok := ctx.Value(verboseKey{}).(bool)
	return ok && v
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, verboseKey{}, value)
}
