package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	gws "github.com/gorilla/websocket"

	"github.com/alexengrig/JDebugger/api"
	"github.com/alexengrig/JDebugger/service"
)

// WebsocketServer serves one debugging session per websocket connection.
type WebsocketServer struct {
	ListenAddr string
	ListenPort int
	Connector  service.Connector

	upgrader gws.Upgrader
}

func NewWebsocketServer(connector service.Connector, listenAddr string, listenPort int) *WebsocketServer {
	return &WebsocketServer{
		ListenAddr: listenAddr,
		ListenPort: listenPort,
		Connector:  connector,
		upgrader: gws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Run serves until ctx is done.
func (s *WebsocketServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.ListenAddr, s.ListenPort),
		Handler: s,
	}
	errc := make(chan error, 1)
	go func() {
		glog.Infof("websocket server listening at %s", s.URL())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		glog.Info("websocket server stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *WebsocketServer) URL() string {
	return fmt.Sprintf("ws://%s:%d", s.ListenAddr, s.ListenPort)
}

func (s *WebsocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Errorf("error upgrading connection: %v", err)
		return
	}

	c := &connection{
		ws:   conn,
		out:  make(chan *api.Message),
		done: make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	debugger := NewDebugger(s.Connector, func(vm service.VirtualMachine) {
		go c.pumpEvents(ctx, vm)
	})

	go c.writeMessages()
	c.readCommands(ctx, debugger)
	cancel()
	debugger.Close()
}

// connection serializes writes to one websocket; gorilla allows a single
// concurrent writer.
type connection struct {
	ws   *gws.Conn
	out  chan *api.Message
	done chan struct{}
	once sync.Once
}

func (c *connection) send(msg *api.Message) bool {
	select {
	case c.out <- msg:
		return true
	case <-c.done:
		return false
	}
}

func (c *connection) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *connection) readCommands(ctx context.Context, debugger *Debugger) {
	defer c.close()
	for {
		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			glog.V(1).Infof("connection closed: %v", err)
			return
		}

		if messageType != gws.TextMessage {
			glog.Errorf("received invalid message type %d", messageType)
			continue
		}

		var command *api.Command
		if err := json.Unmarshal(message, &command); err != nil || command == nil {
			glog.Errorf("couldn't decode command: %v", err)
			continue
		}

		reply := debugger.Handle(ctx, command)
		if !c.send(&api.Message{Name: api.ReplyMessage, Reply: reply}) {
			return
		}
	}
}

func (c *connection) writeMessages() {
	defer c.ws.Close()
	for {
		select {
		case msg := <-c.out:
			data, err := json.Marshal(msg)
			if err != nil {
				glog.Errorf("error marshalling message: %v", err)
				continue
			}
			if err := c.ws.WriteMessage(gws.TextMessage, data); err != nil {
				glog.Errorf("error writing message: %v", err)
				c.close()
				return
			}
		case <-c.done:
			c.ws.WriteControl(gws.CloseMessage,
				gws.FormatCloseMessage(gws.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

// pumpEvents streams the event sets of vm until the target is gone. The
// connection is closed afterwards: a client sees the transport end right
// after the last event set.
func (c *connection) pumpEvents(ctx context.Context, vm service.VirtualMachine) {
	defer c.close()
	queue := vm.EventQueue()
	for {
		set, err := queue.Remove(ctx)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrInterrupted):
			continue
		case errors.Is(err, service.ErrDisconnected):
			glog.Info("target disconnected")
			return
		default:
			if ctx.Err() == nil {
				glog.Errorf("error removing event set: %v", err)
			}
			return
		}

		glog.V(2).Infof("sending event set of %d events", len(set.Events))
		if !c.send(&api.Message{Name: api.EventsMessage, Events: set}) {
			return
		}
	}
}
