package ports

import "context"

// GenerateRequest asks a model for JSON text conforming to Schema.
type GenerateRequest struct {
	// Operation labels the call for logs and metrics.
	Operation  string
	Prompt     string
	SchemaName string
	Schema     any
}

type LanguageModel interface {
	// GenerateJSON returns the raw text of the model's answer. Callers validate it.
	GenerateJSON(ctx context.Context, req GenerateRequest) (string, error)
}
