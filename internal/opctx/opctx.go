// Package opctx carries per-operation diagnostics on the request context.
// Mutating operations attach the target detector UUID before doing any work;
// because the value lives on the context, its scope ends with the operation
// and cannot leak across requests.
package opctx

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// DetectorUUIDField is the log field under which the target UUID appears.
const DetectorUUIDField = "DetectorUuid"

// WithDetectorUUID returns a child context tagged with the target detector UUID.
func WithDetectorUUID(ctx context.Context, uuid string) context.Context {
	return context.WithValue(ctx, ctxKey{}, uuid)
}

// DetectorUUID returns the detector UUID attached to ctx, if any.
func DetectorUUID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKey{}).(string)
	return v, ok
}

// Logger derives a logger carrying the context's detector UUID, if present.
func Logger(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	if id, ok := DetectorUUID(ctx); ok {
		return base.With().Str(DetectorUUIDField, id).Logger()
	}
	return base
}
