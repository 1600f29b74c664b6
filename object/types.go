// Package object implements the diagnostics object database: the named
// entity registry, the per-object instance model, and the relation graph
// (rule inputs, dependencies, component containment).
//
// All objects live in one DB guarded by a single lock. Callers above the DB
// (the engine, the scheduler, the sequencer) acquire the lock around state
// transitions; the DB's own methods assume it is already held.
package object

import "time"

// Name and description limits. Names over MaxNameLen are truncated, not
// rejected; descriptions over MaxDescLen are clipped.
const (
	MaxNameLen = 31
	MaxDescLen = 1024
)

// Built-in polling periods.
const (
	PeriodFast   = 60 * time.Second
	PeriodNormal = 5 * time.Minute
	PeriodSlow   = 30 * time.Minute
)

// Health bounds. 1000 means 100.0%; divide by 10 for percent.
const (
	HealthMin = 0
	HealthMax = 1000
)

// Kind identifies what an object is. KindAny is reserved for forward
// reference stubs that have been named but not yet created.
type Kind int

const (
	KindAny Kind = iota
	KindTest
	KindRule
	KindAction
	KindComponent
)

func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindTest:
		return "test"
	case KindRule:
		return "rule"
	case KindAction:
		return "action"
	case KindComponent:
		return "component"
	default:
		return "invalid"
	}
}

// State is the lifecycle state of an object or instance.
type State int

const (
	StateAllocated State = iota // forward reference stub
	StateInitialized
	StateCreated
	StateEnabled
	StateDisabled
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateAllocated:
		return "allocated"
	case StateInitialized:
		return "initialized"
	case StateCreated:
		return "created"
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	case StateDeleted:
		return "deleted"
	default:
		return "invalid"
	}
}

// Result is the outcome of a test probe, rule evaluation or action run.
type Result int

const (
	ResultInvalid Result = iota
	ResultPass
	ResultFail
	ResultValue      // test returned a value to be interpreted by a rule
	ResultInProgress // completion will arrive via notify/complete
	ResultAbort      // could not run; excluded from rule evaluation
	ResultIgnore     // result should be ignored
)

func (r Result) String() string {
	switch r {
	case ResultPass:
		return "pass"
	case ResultFail:
		return "fail"
	case ResultValue:
		return "value"
	case ResultInProgress:
		return "in-progress"
	case ResultAbort:
		return "abort"
	case ResultIgnore:
		return "ignore"
	default:
		return "invalid"
	}
}

// Severity is the signed weight a rule transition applies to component
// health. Positive severity is negative; health arithmetic uses its
// magnitude, so a Positive rule debits on Pass→Fail and credits back on
// Fail→Pass, with health still capped at 1000.
type Severity int

const (
	SeverityCatastrophic Severity = 1000
	SeverityCritical     Severity = 500
	SeverityHigh         Severity = 200
	SeverityMedium       Severity = 100
	SeverityLow          Severity = 50
	SeverityNone         Severity = 0
	SeverityPositive     Severity = -200
)

func (s Severity) String() string {
	switch s {
	case SeverityCatastrophic:
		return "catastrophic"
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	case SeverityLow:
		return "low"
	case SeverityNone:
		return "none"
	case SeverityPositive:
		return "positive"
	default:
		return "unknown"
	}
}

// Operator selects how a rule combines its inputs.
type Operator int

const (
	OpInvalid Operator = iota
	OpOnFail           // fail iff any input failed (default)
	OpDisable          // always pass
	OpEqualToN         // fail iff value == n
	OpNotEqualToN      // fail iff value != n
	OpLessThanN        // fail iff value < n
	OpGreaterThanN     // fail iff value > n
	OpNEver            // fail after n cumulative fails since creation
	OpNInRow           // fail after n consecutive input fails
	OpNInM             // fail if >= n of the last m inputs failed
	OpRangeNToM        // fail iff n <= value <= m
	OpNInTimeM         // fail if >= n input fails within the last m ms
	OpFailForTimeN     // fail after input continuously failing for >= n ms
	OpOr               // pass iff any input passed
	OpAnd              // pass iff every input passed
)

func (o Operator) String() string {
	switch o {
	case OpOnFail:
		return "on-fail"
	case OpDisable:
		return "disable"
	case OpEqualToN:
		return "equal-to-n"
	case OpNotEqualToN:
		return "not-equal-to-n"
	case OpLessThanN:
		return "less-than-n"
	case OpGreaterThanN:
		return "greater-than-n"
	case OpNEver:
		return "n-ever"
	case OpNInRow:
		return "n-in-row"
	case OpNInM:
		return "n-in-m"
	case OpRangeNToM:
		return "range-n-to-m"
	case OpNInTimeM:
		return "n-in-time-m"
	case OpFailForTimeN:
		return "fail-for-time-n"
	case OpOr:
		return "or"
	case OpAnd:
		return "and"
	default:
		return "invalid"
	}
}

// Flags carries the location mask plus rule-only behavior flags.
type Flags uint32

const (
	FlagLocationActive Flags = 1 << iota
	FlagLocationStandby
	FlagLocationLineCard

	// Rule-only flags.
	FlagTriggerOnRootCause // only dispatch actions when rule is the root cause
	FlagTriggerAlways      // dispatch actions without RCI gating
	FlagNoResultStats      // exclude from stats and health contribution

	// Internal rules (the engine's own self-monitoring) that must not
	// perturb component health.
	FlagSilent
)

// FlagLocationAll is the full location mask.
const FlagLocationAll = FlagLocationActive | FlagLocationStandby | FlagLocationLineCard

// DefaultFlags is applied to newly created objects.
const DefaultFlags = FlagLocationActive

// QueueID identifies which scheduler queue an instance currently occupies.
// The zero value means not enqueued. Defined here (rather than in sched)
// because the slot is part of instance state guarded by the DB lock.
type QueueID int

const (
	QueueNone QueueID = iota
	QueueImmediate
	QueueFast
	QueueNormal
	QueueSlow
	QueueUser
)

func (q QueueID) String() string {
	switch q {
	case QueueNone:
		return "none"
	case QueueImmediate:
		return "immediate"
	case QueueFast:
		return "fast"
	case QueueNormal:
		return "normal"
	case QueueSlow:
		return "slow"
	case QueueUser:
		return "user"
	default:
		return "invalid"
	}
}

// TruncateName clips a name to MaxNameLen. The second return reports whether
// clipping happened, which callers use to reject truncated collisions.
func TruncateName(name string) (string, bool) {
	if len(name) <= MaxNameLen {
		return name, false
	}
	return name[:MaxNameLen], true
}

// TruncateDesc clips a description to MaxDescLen.
func TruncateDesc(desc string) string {
	if len(desc) <= MaxDescLen {
		return desc
	}
	return desc[:MaxDescLen]
}
