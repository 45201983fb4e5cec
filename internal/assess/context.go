package assess

import (
	"context"

	"diabetes-risk/internal/ml"
)

// Sources tag where an assessment came from.
const (
	SourceWeb  = "web"
	SourceAPI  = "api"
	SourceForm = "form"
)

type sourceKey struct{}

// WithSource tags ctx with the front-end that issued the assessment.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the tag set by WithSource.
func SourceFrom(ctx context.Context) string {
	s, _ := ctx.Value(sourceKey{}).(string)
	return s
}

// WithRequestID makes the assessment reuse id instead of generating one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return ml.WithRequestID(ctx, id)
}

// RequestIDFrom returns the id set by WithRequestID.
func RequestIDFrom(ctx context.Context) string {
	return ml.RequestIDFrom(ctx)
}
