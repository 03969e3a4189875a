package agent

import _ "embed"

//go:embed prompts/property_shopper.md
var PropertyShopperPersona string

//go:embed prompts/response_grader.md
var ResponseGraderPersona string

const (
	// ShopperHistoryLimit keeps each synthesized lead independent of the
	// previous ones.
	ShopperHistoryLimit = 1
	// GraderHistoryLimit leaves room for the grading brief plus the tool
	// round trip.
	GraderHistoryLimit = 2
)
