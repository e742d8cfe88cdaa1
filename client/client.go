// Package client connects to a websocket debugging service (see package
// server) and presents it as a service.Connector.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	websocket "github.com/gorilla/websocket"

	"github.com/alexengrig/JDebugger/api"
	"github.com/alexengrig/JDebugger/service"
)

// Connector dials a new websocket connection for every Launch or Attach.
type Connector struct {
	addr   string
	dialer *websocket.Dialer
}

var _ service.Connector = (*Connector)(nil)

func NewConnector(addr string) *Connector {
	return &Connector{
		addr: addr,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 3 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

func (c *Connector) Launch(ctx context.Context, args service.Arguments) (service.VirtualMachine, error) {
	_, raw := args["command"]
	return c.connect(ctx, &api.Command{
		Name:   api.Launch,
		Launch: &api.LaunchCommand{Raw: raw, Arguments: args},
	})
}

func (c *Connector) Attach(ctx context.Context, transport service.Transport, args service.Arguments) (service.VirtualMachine, error) {
	return c.connect(ctx, &api.Command{
		Name:   api.Attach,
		Attach: &api.AttachCommand{Transport: string(transport), Arguments: args},
	})
}

func (c *Connector) connect(ctx context.Context, command *api.Command) (service.VirtualMachine, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.addr, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %s)", c.addr, err, resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", c.addr, err)
	}

	vm := newVM(conn)
	if _, err := vm.call(ctx, command); err != nil {
		vm.Close()
		return nil, err
	}
	return vm, nil
}

// VM is a target reached through a websocket debugging service.
type VM struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	queue *service.Queue

	mu       sync.Mutex
	seq      int
	closed   bool
	pending  map[int]chan *api.Reply
	requests []*api.Subscription
}

var (
	_ service.VirtualMachine      = (*VM)(nil)
	_ service.EventRequestManager = (*VM)(nil)
)

func newVM(conn *websocket.Conn) *VM {
	vm := &VM{
		conn:    conn,
		queue:   service.NewQueue(),
		pending: make(map[int]chan *api.Reply),
	}
	go vm.readMessages()
	return vm
}

// EventQueue returns the sets received from the service. When the
// connection drops, Remove reports service.ErrDisconnected once, unless
// another call already did, and then a final VMDisconnect set.
func (v *VM) EventQueue() service.EventQueue                   { return v.queue }
func (v *VM) EventRequestManager() service.EventRequestManager { return v }

func (v *VM) SetDebugTraceMode(mode service.TraceMode) error {
	_, err := v.call(context.Background(), &api.Command{
		Name:         api.SetTraceMode,
		SetTraceMode: &api.SetTraceModeCommand{Mode: int(mode)},
	})
	return err
}

func (v *VM) Resume() error {
	_, err := v.call(context.Background(), &api.Command{Name: api.Resume, Resume: &api.ResumeCommand{}})
	return err
}

func (v *VM) Dispose() error {
	_, err := v.call(context.Background(), &api.Command{Name: api.Dispose, Dispose: &api.DisposeCommand{}})
	return err
}

func (v *VM) CreateRequest(sub *api.Subscription) (*api.Subscription, error) {
	reply, err := v.call(context.Background(), &api.Command{
		Name:          api.CreateRequest,
		CreateRequest: &api.CreateRequestCommand{Subscription: sub},
	})
	if err != nil {
		return nil, err
	}
	created := *sub
	created.ID = reply.RequestID
	created.Filters = append([]string(nil), sub.Filters...)

	v.mu.Lock()
	v.requests = append(v.requests, &created)
	v.mu.Unlock()
	return &created, nil
}

func (v *VM) Requests() []*api.Subscription {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*api.Subscription(nil), v.requests...)
}

// Close drops the connection without disposing of the target.
func (v *VM) Close() error {
	return v.conn.Close()
}

func (v *VM) call(ctx context.Context, command *api.Command) (*api.Reply, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, v.queue.Disconnected()
	}
	v.seq++
	command.Seq = v.seq
	ch := make(chan *api.Reply, 1)
	v.pending[command.Seq] = ch
	v.mu.Unlock()

	if err := v.writeMessage(command); err != nil {
		v.mu.Lock()
		delete(v.pending, command.Seq)
		v.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", v.queue.Disconnected(), err)
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return nil, v.queue.Disconnected()
		}
		err := service.ReplyError(reply)
		if reply.Code == api.ErrorDisconnected {
			v.queue.Disconnected()
		}
		return reply, err
	case <-ctx.Done():
		v.mu.Lock()
		delete(v.pending, command.Seq)
		v.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (v *VM) writeMessage(obj interface{}) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("error marshalling obj: %s", err)
	}
	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("error writing obj: %s", err)
	}
	return nil
}

func (v *VM) readMessages() {
	defer v.shutdown()
	for {
		messageType, message, err := v.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg api.Message
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		switch msg.Name {
		case api.ReplyMessage:
			if msg.Reply != nil {
				v.deliverReply(msg.Reply)
			}
		case api.EventsMessage:
			v.queue.Push(msg.Events)
		}
	}
}

func (v *VM) deliverReply(reply *api.Reply) {
	v.mu.Lock()
	ch, ok := v.pending[reply.Seq]
	delete(v.pending, reply.Seq)
	v.mu.Unlock()
	if ok {
		ch <- reply
	}
}

// shutdown fails every pending call and wakes Remove.
func (v *VM) shutdown() {
	v.conn.Close()
	v.queue.Close()
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	for seq, ch := range v.pending {
		close(ch)
		delete(v.pending, seq)
	}
}
