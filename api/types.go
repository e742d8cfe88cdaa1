package api

import "strings"

// ThreadRef identifies a thread of the target.
type ThreadRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// Location is a code position inside the target.
type Location struct {
	ClassName  string `json:"className"`
	Method     string `json:"method,omitempty"`
	SourceFile string `json:"sourceFile,omitempty"`
	Line       int    `json:"line,omitempty"`
	CodeIndex  int64  `json:"codeIndex,omitempty"`
}

// ObjectRef is a reference to an object living in the target.
type ObjectRef struct {
	ID       int64  `json:"id"`
	TypeName string `json:"typeName"`
}

// Value is a read-only rendition of a target value.
type Value struct {
	TypeName string `json:"typeName"`
	Text     string `json:"text"`
}

// TypeRef describes a reference type loaded by the target.
type TypeRef struct {
	Name      string   `json:"name"`
	Signature string   `json:"signature,omitempty"`
	Fields    []*Field `json:"fields,omitempty"`
}

// Field identifies a field of a reference type.
type Field struct {
	DeclaringType string `json:"declaringType"`
	Name          string `json:"name"`
	TypeName      string `json:"typeName,omitempty"`
	Static        bool   `json:"static,omitempty"`
}

// SuspendPolicy says which threads of the target are frozen when a
// subscribed event fires.
type SuspendPolicy string

const (
	SuspendNone        SuspendPolicy = "none"
	SuspendEventThread SuspendPolicy = "eventThread"
	SuspendAll         SuspendPolicy = "all"
)

// StepSize and StepDepth parameterise step subscriptions.
type StepSize string

const (
	StepMin  StepSize = "min"
	StepLine StepSize = "line"
)

type StepDepth string

const (
	StepInto StepDepth = "into"
	StepOver StepDepth = "over"
	StepOut  StepDepth = "out"
)

// Subscription is a standing request that the debugging service report a
// class of events. Subscriptions are immutable once created.
type Subscription struct {
	ID            int           `json:"id"`
	Kind          EventKind     `json:"kind"`
	Filters       []string      `json:"filters,omitempty"`
	SuspendPolicy SuspendPolicy `json:"suspendPolicy"`
	Enabled       bool          `json:"enabled"`

	// Exception
	NotifyCaught   bool `json:"notifyCaught,omitempty"`
	NotifyUncaught bool `json:"notifyUncaught,omitempty"`

	// Breakpoint
	Location *Location `json:"location,omitempty"`

	// Step
	Thread *ThreadRef `json:"thread,omitempty"`
	Size   StepSize   `json:"size,omitempty"`
	Depth  StepDepth  `json:"depth,omitempty"`

	// AccessWatchpoint, ModificationWatchpoint
	Field *Field `json:"field,omitempty"`
}

// Excludes reports whether className is matched by one of the exclusion
// filters. A trailing "*" marks a prefix pattern, anything else must match
// exactly.
func (s *Subscription) Excludes(className string) bool {
	for _, f := range s.Filters {
		if MatchClassPattern(f, className) {
			return true
		}
	}
	return false
}

// MatchClassPattern matches a class name against a JDI style pattern such as
// "java.*" or "com.example.Main".
func MatchClassPattern(pattern, className string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(className, prefix)
	}
	return pattern == className
}

// Matches reports whether a service reports ev on behalf of s.
func (s *Subscription) Matches(ev *Event) bool {
	if !s.Enabled || s.Kind != ev.Kind || s.Excludes(ev.ClassName()) {
		return false
	}

	switch ev.Kind {
	case Exception:
		if ev.Exception == nil {
			return false
		}
		if ev.Exception.Caught() {
			return s.NotifyCaught
		}
		return s.NotifyUncaught
	case Breakpoint:
		return s.Location != nil && ev.Location != nil &&
			s.Location.ClassName == ev.Location.ClassName &&
			s.Location.Line == ev.Location.Line
	case Step:
		return s.Thread == nil || (ev.Thread != nil && ev.Thread.ID == s.Thread.ID)
	case AccessWatchpoint, ModificationWatchpoint:
		return s.Field != nil && ev.Watchpoint != nil &&
			s.Field.Name == ev.Watchpoint.Field.Name &&
			s.Field.DeclaringType == ev.Watchpoint.Field.DeclaringType
	}
	return true
}
