package dto

import "github.com/soundprediction/go-graphrank/pkg/types"

// AnalysisResponse is returned by POST /api/v1/analyses/:kind. Report is
// present on failure too, carrying the counts reached before the error.
type AnalysisResponse struct {
	Success bool             `json:"success"`
	Report  *types.RunReport `json:"report,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// RunsRequest filters GET /api/v1/runs.
type RunsRequest struct {
	Kind  string `form:"kind" binding:"omitempty,oneof=community pagerank"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// RunsResponse lists recorded runs, newest first.
type RunsResponse struct {
	Runs  []types.RunReport `json:"runs"`
	Total int               `json:"total"`
}
