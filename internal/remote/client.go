// ABOUTME: ItemsRepository implemented over the inventory.v1.Items gRPC service
// ABOUTME: Streams open one server-streaming call per subscription

package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/2389/inventory/internal/inventory"
	"github.com/2389/inventory/internal/live"
)

// Client talks to an inventory-server. It implements inventory.ItemsRepository.
type Client struct {
	conn   *grpc.ClientConn
	logger *slog.Logger
}

// Dial connects to addr and waits until the connection is ready or ctx is done.
func Dial(ctx context.Context, addr string, logger *slog.Logger, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating client for %s: %w", addr, err)
	}

	if err := waitReady(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to %s: %w", addr, fromStatus(err))
	}
	return NewClient(conn, logger), nil
}

func waitReady(ctx context.Context, conn *grpc.ClientConn) error {
	conn.Connect()
	for {
		state := conn.GetState()
		if state == connectivity.Ready {
			return nil
		}
		if !conn.WaitForStateChange(ctx, state) {
			return ctx.Err()
		}
	}
}

// NewClient wraps an existing connection. Close closes conn.
func NewClient(conn *grpc.ClientConn, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		conn:   conn,
		logger: logger.With("component", "remote_client"),
	}
}

// Close closes the connection, ending every open watch.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) InsertItem(ctx context.Context, item inventory.Item) (int64, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.conn.Invoke(ctx, InsertItemMethod, encodeItem(item), out); err != nil {
		return 0, fromStatus(err)
	}
	return out.GetValue(), nil
}

func (c *Client) UpdateItem(ctx context.Context, item inventory.Item) error {
	if err := c.conn.Invoke(ctx, UpdateItemMethod, encodeItem(item), new(emptypb.Empty)); err != nil {
		return fromStatus(err)
	}
	return nil
}

func (c *Client) DeleteItem(ctx context.Context, item inventory.Item) error {
	if err := c.conn.Invoke(ctx, DeleteItemMethod, wrapperspb.Int64(item.ID), new(emptypb.Empty)); err != nil {
		return fromStatus(err)
	}
	return nil
}

func (c *Client) GetAllItemsStream() *live.Stream[[]inventory.Item] {
	return watch(c, &itemsServiceDesc.Streams[0], WatchItemsMethod, &emptypb.Empty{},
		func() *structpb.ListValue { return new(structpb.ListValue) },
		decodeItems)
}

func (c *Client) GetItemStream(id int64) *live.Stream[*inventory.Item] {
	return watch(c, &itemsServiceDesc.Streams[1], WatchItemMethod, wrapperspb.Int64(id),
		func() *structpb.Value { return new(structpb.Value) },
		decodeOptionalItem)
}

// watch opens one server stream per subscription. The first message is
// received before the subscription is returned.
func watch[M proto.Message, T any](
	c *Client,
	desc *grpc.StreamDesc,
	method string,
	req proto.Message,
	newMsg func() M,
	decode func(M) (T, error),
) *live.Stream[T] {
	return live.NewStream(func(ctx context.Context, sink live.Sink[T]) (func(), error) {
		ctx, cancel := context.WithCancel(ctx)

		stream, err := c.conn.NewStream(ctx, desc, method)
		if err != nil {
			cancel()
			return nil, fromStatus(err)
		}
		if err := stream.SendMsg(req); err != nil {
			cancel()
			return nil, fromStatus(err)
		}
		if err := stream.CloseSend(); err != nil {
			cancel()
			return nil, fromStatus(err)
		}

		recv := func() (T, error) {
			var zero T
			msg := newMsg()
			if err := stream.RecvMsg(msg); err != nil {
				if errors.Is(err, io.EOF) {
					return zero, fmt.Errorf("watch %s: %w", method, live.ErrSubscriptionEnded)
				}
				return zero, fromStatus(err)
			}
			v, err := decode(msg)
			if err != nil {
				return zero, fmt.Errorf("decoding %s message: %w", method, err)
			}
			return v, nil
		}

		first, err := recv()
		if err != nil {
			cancel()
			return nil, err
		}
		sink.Emit(first)

		go func() {
			for {
				v, err := recv()
				if err != nil {
					if ctx.Err() == nil {
						c.logger.Warn("watch failed", "method", method, "error", err)
						sink.Fail(err)
					}
					return
				}
				sink.Emit(v)
			}
		}()

		return cancel, nil
	})
}

var _ inventory.ItemsRepository = (*Client)(nil)
