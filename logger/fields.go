package logger

// Standard field names for consistent structured logging across vigil.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Objects
	FieldObject   = "object"
	FieldInstance = "instance"
	FieldKind     = "kind"
	FieldState    = "state"

	// Graph
	FieldParent = "parent"
	FieldChild  = "child"
	FieldInput  = "input"
	FieldAction = "action"

	// Evaluation
	FieldResult   = "result"
	FieldValue    = "value"
	FieldOperator = "operator"
	FieldSeverity = "severity"
	FieldHealth   = "health"

	// Scheduling
	FieldQueue    = "queue"
	FieldPeriodMS = "period_ms"
	FieldDelayMS  = "delay_ms"
	FieldJobID    = "job_id"
	FieldWorker   = "worker"

	// Errors
	FieldError = "error"
)
