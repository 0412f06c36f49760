package types

type ContextKey string

const (
	ContextKeyRunID         ContextKey = "run_id"
	ContextKeyAnalysis      ContextKey = "analysis"
	ContextKeyRequestSource ContextKey = "request_source"
)
