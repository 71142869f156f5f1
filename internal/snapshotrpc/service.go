package snapshotrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region service-desc

const (
	ServiceName = "algoexplorer.v1.SnapshotService"

	methodSnapshot = "/" + ServiceName + "/Snapshot"
	methodStep     = "/" + ServiceName + "/Step"
	methodMutate   = "/" + ServiceName + "/Mutate"
)

// SnapshotServer is the server API. Requests and responses are
// google.protobuf.Struct bodies carrying the JSON form of session types.
type SnapshotServer interface {
	// Snapshot takes {"engine": name} and returns the engine's snapshot.
	Snapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Step takes {"engine": name} and returns the snapshot after one step.
	Step(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Mutate takes a mutation and returns {"snapshots": [...]}.
	Mutate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes SnapshotService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SnapshotServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Snapshot", Handler: unaryHandler(methodSnapshot, SnapshotServer.Snapshot)},
		{MethodName: "Step", Handler: unaryHandler(methodStep, SnapshotServer.Step)},
		{MethodName: "Mutate", Handler: unaryHandler(methodMutate, SnapshotServer.Mutate)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "algoexplorer/v1/snapshot.proto",
}

// Register attaches srv to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv SnapshotServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryMethod func(SnapshotServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SnapshotServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SnapshotServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// #endregion service-desc
