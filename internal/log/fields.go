package log

// Field names shared across components.
const (
	FieldComponent = "component"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldRevision  = "revision"
)

// Component names used by the engine.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentMirror  = "mirror"
	ComponentGateway = "gateway"
	ComponentStore   = "store"
	ComponentRelay   = "relay"
)
