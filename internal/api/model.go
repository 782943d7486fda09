package api

import "CryptoSentinel/internal/model"

// APIResponse represents standard API response.
type APIResponse struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one rejected query parameter.
type ValidationError struct {
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}

// SignalsQuery filters the latest per-asset results.
type SignalsQuery struct {
	Asset  string `query:"asset" validate:"omitempty,alphanum,max=16"`
	Signal string `query:"signal" validate:"omitempty,oneof=BUY SELL HOLD"`
	Limit  int    `query:"limit" default:"100" validate:"gt=0,lte=1000"`
}

// SignalsResponse lists the latest evaluation per asset.
type SignalsResponse struct {
	Running bool                `json:"running"`
	Results []model.AssetResult `json:"results"`
}

// RunResponse acknowledges a manual evaluation run.
type RunResponse struct {
	Accepted bool     `json:"accepted"`
	Assets   []string `json:"assets,omitempty"`
}
