package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a Backtester gRPC service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client targeting addr. Without options the connection is
// unencrypted.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Run executes one job on the server.
func (c *Client) Run(ctx context.Context, req RunRequest) (Reply, error) {
	in, err := toStruct(req)
	if err != nil {
		return Reply{}, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, runMethod, in, out); err != nil {
		return Reply{}, err
	}
	return decodeReply(out), nil
}

// RunBatch submits jobs and calls fn with each reply in completion order.
// It returns when the server closes the stream, fn fails or ctx is done.
func (c *Client) RunBatch(ctx context.Context, jobs []RunRequest, fn func(Reply) error) error {
	in, err := toStruct(BatchRequest{Jobs: jobs})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], runBatchMethod)
	if err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	if err := stream.SendMsg(in); err != nil {
		return fmt.Errorf("sending batch: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	for {
		out := new(structpb.Struct)
		err := stream.RecvMsg(out)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("receiving reply: %w", err)
		}
		if err := fn(decodeReply(out)); err != nil {
			return err
		}
	}
}
