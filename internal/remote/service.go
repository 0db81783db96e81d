// ABOUTME: gRPC service inventory.v1.Items exposing an ItemsRepository
// ABOUTME: Hand-written service descriptor over protobuf well-known types

package remote

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/2389/inventory/internal/inventory"
	"github.com/2389/inventory/internal/live"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "inventory.v1.Items"

// Full method names.
const (
	InsertItemMethod = "/" + ServiceName + "/InsertItem"
	UpdateItemMethod = "/" + ServiceName + "/UpdateItem"
	DeleteItemMethod = "/" + ServiceName + "/DeleteItem"
	WatchItemsMethod = "/" + ServiceName + "/WatchItems"
	WatchItemMethod  = "/" + ServiceName + "/WatchItem"
)

// ItemsServer is the server API for the inventory.v1.Items service.
type ItemsServer interface {
	InsertItem(context.Context, *structpb.Struct) (*wrapperspb.Int64Value, error)
	UpdateItem(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	DeleteItem(context.Context, *wrapperspb.Int64Value) (*emptypb.Empty, error)
	// WatchItems sends a structpb.ListValue of all items on every change.
	WatchItems(*emptypb.Empty, grpc.ServerStream) error
	// WatchItem sends a structpb.Value holding the item or null on every change.
	WatchItem(*wrapperspb.Int64Value, grpc.ServerStream) error
}

var itemsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ItemsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "InsertItem", Handler: insertItemHandler},
		{MethodName: "UpdateItem", Handler: updateItemHandler},
		{MethodName: "DeleteItem", Handler: deleteItemHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchItems", Handler: watchItemsHandler, ServerStreams: true},
		{StreamName: "WatchItem", Handler: watchItemHandler, ServerStreams: true},
	},
}

func insertItemHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ItemsServer).InsertItem(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: InsertItemMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ItemsServer).InsertItem(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func updateItemHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ItemsServer).UpdateItem(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: UpdateItemMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ItemsServer).UpdateItem(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func deleteItemHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ItemsServer).DeleteItem(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DeleteItemMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ItemsServer).DeleteItem(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

func watchItemsHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ItemsServer).WatchItems(in, stream)
}

func watchItemHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.Int64Value)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ItemsServer).WatchItem(in, stream)
}

// Server serves a repository over gRPC.
type Server struct {
	repo   inventory.ItemsRepository
	logger *slog.Logger
}

// NewServer creates a server for repo. Pass nil logger for default.
func NewServer(repo inventory.ItemsRepository, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		repo:   repo,
		logger: logger.With("component", "items_server"),
	}
}

// Register adds the service to a gRPC server.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&itemsServiceDesc, s)
}

func (s *Server) InsertItem(ctx context.Context, req *structpb.Struct) (*wrapperspb.Int64Value, error) {
	item, err := decodeItem(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	id, err := s.repo.InsertItem(ctx, item)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Int64(id), nil
}

func (s *Server) UpdateItem(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	item, err := decodeItem(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) DeleteItem(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	if err := s.repo.DeleteItem(ctx, inventory.Item{ID: req.GetValue()}); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) WatchItems(_ *emptypb.Empty, stream grpc.ServerStream) error {
	return forward(s, stream, s.repo.GetAllItemsStream(), func(items []inventory.Item) proto.Message {
		return encodeItems(items)
	})
}

func (s *Server) WatchItem(req *wrapperspb.Int64Value, stream grpc.ServerStream) error {
	return forward(s, stream, s.repo.GetItemStream(req.GetValue()), func(item *inventory.Item) proto.Message {
		return encodeOptionalItem(item)
	})
}

// forward relays every emission of src to the client until either side ends.
func forward[T any](s *Server, stream grpc.ServerStream, src *live.Stream[T], encode func(T) proto.Message) error {
	ctx := stream.Context()

	ch, sub, err := src.Chan(ctx)
	if err != nil {
		return toStatus(err)
	}
	defer sub.Cancel()

	s.logger.Debug("watch started", "subscription_id", sub.ID())

	for v := range ch {
		if err := stream.SendMsg(encode(v)); err != nil {
			s.logger.Debug("watch send failed", "subscription_id", sub.ID(), "error", err)
			return err
		}
	}

	if err := sub.Err(); err != nil {
		s.logger.Warn("watch ended by source", "subscription_id", sub.ID(), "error", err)
		return toStatus(err)
	}
	s.logger.Debug("watch ended", "subscription_id", sub.ID())
	return status.FromContextError(ctx.Err()).Err()
}

var _ ItemsServer = (*Server)(nil)
