package api

// Command is sent by a client to a websocket debugging service. Name selects
// the payload; Seq correlates the Reply.
type Command struct {
	Seq           int                   `json:"seq"`
	Name          CommandName           `json:"name"`
	Launch        *LaunchCommand        `json:"launch,omitempty"`
	Attach        *AttachCommand        `json:"attach,omitempty"`
	SetTraceMode  *SetTraceModeCommand  `json:"setTraceMode,omitempty"`
	CreateRequest *CreateRequestCommand `json:"createRequest,omitempty"`
	Resume        *ResumeCommand        `json:"resume,omitempty"`
	Dispose       *DisposeCommand       `json:"dispose,omitempty"`
}

type CommandName string

const (
	Launch        CommandName = "Launch"
	Attach        CommandName = "Attach"
	SetTraceMode  CommandName = "SetTraceMode"
	CreateRequest CommandName = "CreateRequest"
	Resume        CommandName = "Resume"
	Dispose       CommandName = "Dispose"
)

type LaunchCommand struct {
	Raw       bool              `json:"raw,omitempty"`
	Arguments map[string]string `json:"arguments"`
}

type AttachCommand struct {
	Transport string            `json:"transport"`
	Arguments map[string]string `json:"arguments"`
}

type SetTraceModeCommand struct {
	Mode int `json:"mode"`
}

type CreateRequestCommand struct {
	Subscription *Subscription `json:"subscription"`
}

type ResumeCommand struct{}
type DisposeCommand struct{}

// Message is sent by the debugging service to the client: either the reply
// to a command or an event set.
type Message struct {
	Name   MessageName `json:"name"`
	Reply  *Reply      `json:"reply,omitempty"`
	Events *EventSet   `json:"events,omitempty"`
}

type MessageName string

const (
	ReplyMessage  MessageName = "Reply"
	EventsMessage MessageName = "Events"
)

// Reply answers the command with sequence number Seq. Code is empty on
// success.
type Reply struct {
	Seq       int       `json:"seq"`
	Code      ErrorCode `json:"code,omitempty"`
	Error     string    `json:"error,omitempty"`
	RequestID int       `json:"requestId,omitempty"`
}

type ErrorCode string

const (
	ErrorIllegalArguments ErrorCode = "illegalArguments"
	ErrorIO               ErrorCode = "io"
	ErrorVMStart          ErrorCode = "vmStart"
	ErrorDisconnected     ErrorCode = "disconnected"
	ErrorInternal         ErrorCode = "internal"
)
