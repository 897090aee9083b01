package tcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/prn-tf/hermes-users/internal/domain"
	"github.com/prn-tf/hermes-users/internal/handler"
	"github.com/prn-tf/hermes-users/internal/service"
)

// Commands accepted by the message-pattern surface.
const (
	CmdCreateUser        = "create_user"
	CmdGetUsers          = "get_users"
	CmdGetUser           = "get_user"
	CmdGetUserByEmail    = "get_user_by_email"
	CmdGetUserByUsername = "get_user_by_username"
	CmdUpdateUser        = "update_user"
	CmdDeleteUser        = "delete_user"
	CmdHardDeleteUser    = "hard_delete_user"
)

// MessageObserver records handled commands, typically into Prometheus.
type MessageObserver interface {
	ObserveTCPMessage(command, outcome string)
}

// Server serves the message-pattern commands over TCP. Every command maps
// onto the same UserService operation its HTTP counterpart uses.
type Server struct {
	users    *service.UserService
	observer MessageObserver
	logger   zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	closed   bool
}

// NewServer creates a new message-pattern server. observer may be nil.
func NewServer(users *service.UserService, observer MessageObserver, logger zerolog.Logger) *Server {
	return &Server{
		users:    users,
		observer: observer,
		logger:   logger.With().Str("component", "tcp_server").Logger(),
		conns:    make(map[net.Conn]struct{}),
	}
}

// Listen starts accepting connections on addr. It returns once the listener
// is bound; serving continues in the background until Shutdown.
func (s *Server) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("message server listening")

	s.wg.Add(1)
	go s.acceptLoop(listener)
	return nil
}

// Addr returns the bound listen address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops the listener, closes open connections, and waits for
// handlers to drain or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	if s.listener != nil {
		_ = s.listener.Close()
	}
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.logger.Error().Err(err).Msg("accept failed")
			}
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	reader := bufio.NewReader(conn)
	for {
		frame, err := ReadFrame(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("closing connection")
			}
			return
		}

		var req Request
		if err := json.Unmarshal(frame, &req); err != nil {
			// Without a correlation id there is nothing to reply to.
			s.logger.Warn().Err(err).Msg("malformed request frame")
			return
		}

		resp := s.dispatch(context.Background(), req)

		data, err := json.Marshal(resp)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to marshal response")
			return
		}
		if err := WriteFrame(conn, data); err != nil {
			s.logger.Debug().Err(err).Msg("failed to write response")
			return
		}
	}
}

// dispatch routes a request to the lifecycle service and shapes the reply.
func (s *Server) dispatch(ctx context.Context, req Request) Response {
	result, err := s.handleCommand(ctx, req.Pattern.Cmd, req.Data)

	outcome := "ok"
	resp := Response{ID: req.ID, Response: result, IsDisposed: true}
	if err != nil {
		outcome = "error"
		status, label, message := handler.ClassifyError(err)
		resp.Response = nil
		resp.Err = &ErrorPayload{StatusCode: status, Error: label, Message: message}
	}

	if s.observer != nil {
		s.observer.ObserveTCPMessage(req.Pattern.Cmd, outcome)
	}
	return resp
}

// createPayload is the data of a create_user command.
type createPayload struct {
	Email     string  `json:"email"`
	Username  string  `json:"username"`
	Password  string  `json:"password"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
}

// updatePayload is the data of an update_user command.
type updatePayload struct {
	ID   int64           `json:"id"`
	Data json.RawMessage `json:"data"`
}

func (s *Server) handleCommand(ctx context.Context, cmd string, data json.RawMessage) (any, error) {
	switch cmd {
	case CmdCreateUser:
		var payload createPayload
		if err := decodeStrict(data, &payload); err != nil {
			return nil, err
		}
		return s.users.Create(ctx, service.CreateUserInput{
			Email:     payload.Email,
			Username:  payload.Username,
			Password:  payload.Password,
			FirstName: payload.FirstName,
			LastName:  payload.LastName,
		})

	case CmdGetUsers:
		users, err := s.users.ListActive(ctx)
		if err != nil {
			return nil, err
		}
		if users == nil {
			users = []*domain.User{}
		}
		return users, nil

	case CmdGetUser:
		var id int64
		if err := decodeStrict(data, &id); err != nil {
			return nil, err
		}
		return s.users.GetByID(ctx, id)

	case CmdGetUserByEmail:
		var email string
		if err := decodeStrict(data, &email); err != nil {
			return nil, err
		}
		user, err := s.users.GetByEmail(ctx, email)
		if errors.Is(err, domain.ErrUserNotFound) {
			// Inter-service lookups reply null rather than erroring.
			return nil, nil
		}
		return user, err

	case CmdGetUserByUsername:
		var username string
		if err := decodeStrict(data, &username); err != nil {
			return nil, err
		}
		user, err := s.users.GetByUsername(ctx, username)
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil
		}
		return user, err

	case CmdUpdateUser:
		var payload updatePayload
		if err := decodeStrict(data, &payload); err != nil {
			return nil, err
		}
		var update domain.UserUpdate
		if err := decodeStrict(payload.Data, &update); err != nil {
			return nil, err
		}
		return s.users.Update(ctx, payload.ID, update)

	case CmdDeleteUser:
		var id int64
		if err := decodeStrict(data, &id); err != nil {
			return nil, err
		}
		return nil, s.users.SoftDelete(ctx, id)

	case CmdHardDeleteUser:
		var id int64
		if err := decodeStrict(data, &id); err != nil {
			return nil, err
		}
		return nil, s.users.HardDelete(ctx, id)

	default:
		verr := &domain.ValidationError{}
		verr.Add("pattern", "unknown command "+cmd)
		return nil, verr
	}
}

// decodeStrict unmarshals data into dst, rejecting unknown fields.
func decodeStrict(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		verr := &domain.ValidationError{}
		verr.Add("data", "payload is required")
		return verr
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		verr := &domain.ValidationError{}
		verr.Add("data", "invalid payload: "+err.Error())
		return verr
	}
	return nil
}
