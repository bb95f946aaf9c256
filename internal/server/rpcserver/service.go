package rpcserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/time/rate"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	storagev1 "github.com/yndnr/mirrorsync/api/proto/v1"
	"github.com/yndnr/mirrorsync/internal/core/domain"
	"github.com/yndnr/mirrorsync/internal/storage"
	"github.com/yndnr/mirrorsync/pkg/cmap"
)

// DefaultStreamBuffer is the per-stream queue of undelivered changes.
const DefaultStreamBuffer = 256

// Service serves one backend.
type Service struct {
	backend storage.Backend
	logger  *slog.Logger
	buffer  int

	// origins remembers the last RPC writer per key so relayed changes can
	// name their origin. Each entry is consumed by the next relayed change.
	origins *cmap.Map[string, string]

	dropLog rate.Sometimes
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStreamBuffer sets the per-stream queue size.
func WithStreamBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// New creates a service for backend.
func New(backend storage.Backend, opts ...Option) *Service {
	s := &Service{
		backend: backend,
		logger:  slog.Default(),
		buffer:  DefaultStreamBuffer,
		origins: cmap.New[string, string](),
		dropLog: rate.Sometimes{Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the path prefix and handler serving every procedure.
func (s *Service) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(storagev1.GetProcedure, connect.NewUnaryHandler(storagev1.GetProcedure, s.get, opts...))
	mux.Handle(storagev1.SetProcedure, connect.NewUnaryHandler(storagev1.SetProcedure, s.set, opts...))
	mux.Handle(storagev1.RemoveProcedure, connect.NewUnaryHandler(storagev1.RemoveProcedure, s.remove, opts...))
	mux.Handle(storagev1.KeysProcedure, connect.NewUnaryHandler(storagev1.KeysProcedure, s.keys, opts...))
	mux.Handle(storagev1.WatchProcedure, connect.NewServerStreamHandler(storagev1.WatchProcedure, s.watch, opts...))
	return "/" + storagev1.ServiceName + "/", mux
}

func (s *Service) get(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	value, found, err := s.backend.Get(ctx, storagev1.GetString(req.Msg, storagev1.FieldKey))
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(storagev1.Fields{
		storagev1.FieldFound: storagev1.Bool(found),
		storagev1.FieldValue: storagev1.String(value),
	}.Struct()), nil
}

func (s *Service) set(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[emptypb.Empty], error) {
	key := storagev1.GetString(req.Msg, storagev1.FieldKey)
	s.noteOrigin(key, req.Header())
	if err := s.backend.Set(ctx, key, storagev1.GetString(req.Msg, storagev1.FieldValue)); err != nil {
		s.origins.Delete(key)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

func (s *Service) remove(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[emptypb.Empty], error) {
	key := storagev1.GetString(req.Msg, storagev1.FieldKey)
	s.noteOrigin(key, req.Header())
	if err := s.backend.Remove(ctx, key); err != nil {
		s.origins.Delete(key)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

func (s *Service) keys(ctx context.Context, _ *connect.Request[emptypb.Empty]) (*connect.Response[structpb.ListValue], error) {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(storagev1.StringList(keys)), nil
}

func (s *Service) watch(ctx context.Context, _ *connect.Request[emptypb.Empty], stream *connect.ServerStream[structpb.Struct]) error {
	w, ok := s.backend.(storage.Watchable)
	if !ok {
		return connect.NewError(connect.CodeUnimplemented,
			errors.New(storage.NameOf(s.backend)+" does not report changes"))
	}

	ch := make(chan storage.Change, s.buffer)
	stop, err := w.Watch(func(c storage.Change) {
		select {
		case ch <- c:
		default:
			s.dropLog.Do(func() {
				s.logger.Warn("watch stream is slow, dropping changes", "key", c.Key)
			})
		}
	})
	if err != nil {
		return toConnectError(err)
	}
	defer stop()

	if err := stream.Send(storagev1.Fields{storagev1.FieldReady: storagev1.Bool(true)}.Struct()); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-ch:
			origin, _ := s.origins.Pop(c.Key)
			msg := storagev1.Fields{
				storagev1.FieldKey:      storagev1.String(c.Key),
				storagev1.FieldNewValue: storagev1.String(c.NewValue),
				storagev1.FieldOldValue: storagev1.String(c.OldValue),
				storagev1.FieldRemoved:  storagev1.Bool(c.Removed),
				storagev1.FieldOrigin:   storagev1.String(origin),
			}.Struct()
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

func (s *Service) noteOrigin(key string, h http.Header) {
	if origin := h.Get(storagev1.OriginHeader); origin != "" {
		s.origins.Set(key, origin)
	}
}

// toConnectError maps backend errors onto Connect codes.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, domain.ErrBackendClosed), errors.Is(err, domain.ErrBackendUnavailable):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
