// Package ipc is the local control channel between aeris-ctl and the daemon:
// one JSON request and one JSON response per connection over a unix socket.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"sync"
	"time"
)

const (
	CmdTrigger = "trigger"
	CmdHistory = "history"
)

type Request struct {
	Cmd   string `json:"cmd"`
	Limit int    `json:"limit,omitempty"`
}

type Response struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler answers one request. The returned value is marshalled into
// Response.Data.
type Handler func(ctx context.Context, req Request) (any, error)

type Server struct {
	path    string
	ln      net.Listener
	handler Handler

	wg sync.WaitGroup
}

// Listen binds the socket, replacing a stale one left by a previous run.
func Listen(path string, handler Handler) (*Server, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return &Server{path: path, ln: ln, handler: handler}, nil
}

func (s *Server) Path() string { return s.path }

// Serve accepts connections until ctx is done or the server is closed.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			log.Warn("Failed to accept control connection", "err", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) Close() error {
	err := s.ln.Close()
	os.Remove(s.path)
	return err
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		log.Warn("Bad control request", "err", err)
		json.NewEncoder(conn).Encode(Response{Error: "bad request"})
		return
	}
	log.Debug("Control request", "cmd", req.Cmd)

	resp := Response{OK: true}
	data, err := s.handler(ctx, req)
	if err != nil {
		resp = Response{Error: err.Error()}
	} else if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			resp = Response{Error: err.Error()}
		} else {
			resp.Data = raw
		}
	}

	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		log.Warn("Failed to write control response", "err", err)
	}
}

// Send delivers one request and waits for the daemon's response.
func Send(ctx context.Context, path string, req Request) (Response, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("send: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	if !resp.OK {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}
