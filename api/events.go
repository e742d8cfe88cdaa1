package api

type EventKind string

const (
	Exception               EventKind = "Exception"
	Breakpoint              EventKind = "Breakpoint"
	Step                    EventKind = "Step"
	AccessWatchpoint        EventKind = "AccessWatchpoint"
	ModificationWatchpoint  EventKind = "ModificationWatchpoint"
	MethodExit              EventKind = "MethodExit"
	MethodEntry             EventKind = "MethodEntry"
	MonitorWaited           EventKind = "MonitorWaited"
	MonitorWait             EventKind = "MonitorWait"
	MonitorContendedEntered EventKind = "MonitorContendedEntered"
	MonitorContendedEnter   EventKind = "MonitorContendedEnter"
	ClassUnload             EventKind = "ClassUnload"
	ClassPrepare            EventKind = "ClassPrepare"
	ThreadDeath             EventKind = "ThreadDeath"
	ThreadStart             EventKind = "ThreadStart"
	VMDeath                 EventKind = "VMDeath"
	VMDisconnect            EventKind = "VMDisconnect"
	VMStart                 EventKind = "VMStart"
)

// EventKinds lists every kind the dispatcher knows, in dispatch order.
var EventKinds = []EventKind{
	Exception, Breakpoint, Step,
	AccessWatchpoint, ModificationWatchpoint,
	MethodExit, MethodEntry,
	MonitorWaited, MonitorWait, MonitorContendedEntered, MonitorContendedEnter,
	ClassUnload, ClassPrepare,
	ThreadDeath, ThreadStart,
	VMDeath, VMDisconnect, VMStart,
}

// Known reports whether k is one of EventKinds.
func (k EventKind) Known() bool {
	for _, known := range EventKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Unsolicited reports whether the service delivers events of kind k
// without a subscription.
func (k EventKind) Unsolicited() bool {
	return k == VMStart || k == VMDeath || k == VMDisconnect
}

// Event is one event received from the debugging service. Kind selects which
// payload pointer is set; events are read-only once received.
type Event struct {
	Kind      EventKind  `json:"kind"`
	RequestID int        `json:"requestId,omitempty"`
	Thread    *ThreadRef `json:"thread,omitempty"`
	Location  *Location  `json:"location,omitempty"`

	Exception    *ExceptionData    `json:"exception,omitempty"`
	Watchpoint   *WatchpointData   `json:"watchpoint,omitempty"`
	Method       *MethodData       `json:"method,omitempty"`
	Monitor      *MonitorData      `json:"monitor,omitempty"`
	ClassPrepare *ClassPrepareData `json:"classPrepare,omitempty"`
	ClassUnload  *ClassUnloadData  `json:"classUnload,omitempty"`
}

type ExceptionData struct {
	Exception     ObjectRef `json:"exception"`
	CatchLocation *Location `json:"catchLocation,omitempty"`
}

// Caught reports whether the exception has a catch location.
func (d *ExceptionData) Caught() bool {
	return d.CatchLocation != nil
}

type WatchpointData struct {
	Field        Field      `json:"field"`
	Object       *ObjectRef `json:"object,omitempty"`
	ValueCurrent Value      `json:"valueCurrent"`
	ValueToBe    *Value     `json:"valueToBe,omitempty"`
}

type MethodData struct {
	Method      string `json:"method"`
	ReturnValue *Value `json:"returnValue,omitempty"`
}

type MonitorData struct {
	Monitor  ObjectRef `json:"monitor"`
	Timeout  int64     `json:"timeout,omitempty"`
	TimedOut bool      `json:"timedOut,omitempty"`
}

type ClassPrepareData struct {
	Type TypeRef `json:"type"`
}

type ClassUnloadData struct {
	ClassName string `json:"className"`
	Signature string `json:"signature,omitempty"`
}

// ClassName returns the name of the class the event originated from, used to
// match subscription exclusion filters.
func (e *Event) ClassName() string {
	switch {
	case e.ClassPrepare != nil:
		return e.ClassPrepare.Type.Name
	case e.ClassUnload != nil:
		return e.ClassUnload.ClassName
	case e.Location != nil:
		return e.Location.ClassName
	}
	return ""
}

// Exit reports whether e is one of the events still processed after the
// connection to the target has been lost.
func (e *Event) Exit() bool {
	return e.Kind == VMDeath || e.Kind == VMDisconnect
}

// EventSet is a batch of events delivered atomically by the debugging
// service. All events of a set share its suspend policy.
type EventSet struct {
	SuspendPolicy SuspendPolicy `json:"suspendPolicy"`
	Events        []*Event      `json:"events"`
}
