package snapshotrpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/danielpatrickdp/algo-explorer/internal/kmeans"
	"github.com/danielpatrickdp/algo-explorer/internal/session"
	"github.com/danielpatrickdp/algo-explorer/internal/step"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region server

// Server serves one session over SnapshotService.
type Server struct {
	sess *session.Session
}

// NewServer wraps a session.
func NewServer(sess *session.Session) *Server {
	return &Server{sess: sess}
}

type engineRequest struct {
	Engine session.Engine `json:"engine"`
}

type mutateResponse struct {
	Snapshots []session.Snapshot `json:"snapshots"`
}

// Snapshot returns the current snapshot of one engine.
func (s *Server) Snapshot(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	e, err := parseEngine(in)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(s.sess.Snapshot(e))
}

// Step advances one engine.
func (s *Server) Step(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	e, err := parseEngine(in)
	if err != nil {
		return nil, toStatus(err)
	}
	snap, err := s.sess.Step(e)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(snap)
}

// Mutate applies a mutation.
func (s *Server) Mutate(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var m session.Mutation
	if err := fromStruct(in, &m); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	snaps, err := s.sess.Apply(m)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(mutateResponse{Snapshots: snaps})
}

func parseEngine(in *structpb.Struct) (session.Engine, error) {
	var req engineRequest
	if err := fromStruct(in, &req); err != nil {
		return "", err
	}
	return session.ParseEngine(string(req.Engine))
}

func encode(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus maps session errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, step.ErrInvalidParameter):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, kmeans.ErrOutOfPhase):
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// #endregion server

// #region interceptor

// UnaryLogger logs every unary call with its method, duration and code.
func UnaryLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("rpc",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start),
		)
		return resp, err
	}
}

// #endregion interceptor
