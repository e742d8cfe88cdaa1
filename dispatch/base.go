package dispatch

import (
	"context"

	"github.com/alexengrig/JDebugger/api"
)

// BaseHandler ignores every event. Embed it to handle only some kinds.
type BaseHandler struct{}

var _ Handler = BaseHandler{}

func (BaseHandler) HandleException(context.Context, *api.Event) error               { return nil }
func (BaseHandler) HandleBreakpoint(context.Context, *api.Event) error              { return nil }
func (BaseHandler) HandleStep(context.Context, *api.Event) error                    { return nil }
func (BaseHandler) HandleAccessWatchpoint(context.Context, *api.Event) error        { return nil }
func (BaseHandler) HandleModificationWatchpoint(context.Context, *api.Event) error  { return nil }
func (BaseHandler) HandleMethodExit(context.Context, *api.Event) error              { return nil }
func (BaseHandler) HandleMethodEntry(context.Context, *api.Event) error             { return nil }
func (BaseHandler) HandleMonitorWaited(context.Context, *api.Event) error           { return nil }
func (BaseHandler) HandleMonitorWait(context.Context, *api.Event) error             { return nil }
func (BaseHandler) HandleMonitorContendedEntered(context.Context, *api.Event) error { return nil }
func (BaseHandler) HandleMonitorContendedEnter(context.Context, *api.Event) error   { return nil }
func (BaseHandler) HandleClassUnload(context.Context, *api.Event) error             { return nil }
func (BaseHandler) HandleClassPrepare(context.Context, *api.Event) error            { return nil }
func (BaseHandler) HandleThreadDeath(context.Context, *api.Event) error             { return nil }
func (BaseHandler) HandleThreadStart(context.Context, *api.Event) error             { return nil }
func (BaseHandler) HandleVMDeath(context.Context, *api.Event) error                 { return nil }
func (BaseHandler) HandleVMDisconnect(context.Context, *api.Event) error            { return nil }
func (BaseHandler) HandleVMStart(context.Context, *api.Event) error                 { return nil }
