package metrics

// Common metric attribute keys to keep telemetry consistent/searchable.
const (
	AttrMethod    = "method"
	AttrPath      = "path"
	AttrStatus    = "status"
	AttrProvider  = "provider"
	AttrOrigin    = "origin"
	AttrOutcome   = "outcome"
	AttrSeverity  = "severity"
	AttrState     = "state"
	AttrOp        = "op"
	AttrDirection = "direction"
)
