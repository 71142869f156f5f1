package snapshotrpc

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/algo-explorer/internal/session"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region client-struct
// Client calls a remote SnapshotService.
type Client struct {
	conn *grpc.ClientConn
}
// #endregion client-struct

// #region constructor
// NewClient connects to a SnapshotService without transport security.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// NewClientWithConn wraps an existing connection, e.g. over bufconn.
func NewClientWithConn(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}
// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
// #endregion close

// #region calls
// Snapshot fetches one engine's current snapshot.
func (c *Client) Snapshot(ctx context.Context, e session.Engine) (session.Snapshot, error) {
	var snap session.Snapshot
	if err := c.call(ctx, methodSnapshot, engineRequest{Engine: e}, &snap); err != nil {
		return session.Snapshot{}, fmt.Errorf("snapshot rpc: %w", err)
	}
	return snap, nil
}

// Step advances one engine remotely.
func (c *Client) Step(ctx context.Context, e session.Engine) (session.Snapshot, error) {
	var snap session.Snapshot
	if err := c.call(ctx, methodStep, engineRequest{Engine: e}, &snap); err != nil {
		return session.Snapshot{}, fmt.Errorf("step rpc: %w", err)
	}
	return snap, nil
}

// Mutate applies a mutation remotely.
func (c *Client) Mutate(ctx context.Context, m session.Mutation) ([]session.Snapshot, error) {
	var resp mutateResponse
	if err := c.call(ctx, methodMutate, m, &resp); err != nil {
		return nil, fmt.Errorf("mutate rpc: %w", err)
	}
	return resp.Snapshots, nil
}

func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return err
	}
	return fromStruct(out, resp)
}
// #endregion calls
