// Package remote serves an inventory.ItemsRepository over gRPC and provides a
// client that implements the same interface.
//
// # Service
//
// inventory.v1.Items is described by a hand-written grpc.ServiceDesc and uses
// protobuf well-known types as messages:
//
//	InsertItem(Struct) returns (Int64Value)
//	UpdateItem(Struct) returns (Empty)
//	DeleteItem(Int64Value) returns (Empty)
//	WatchItems(Empty) returns (stream ListValue)
//	WatchItem(Int64Value) returns (stream Value)
//
// An item is a Struct with fields id, name, price and quantity. id and quantity
// are decimal strings, price is a number. WatchItem sends null for an absent
// item. The first message of a watch is the current value.
//
// # Errors
//
// Storage failures travel as codes.Unavailable and come back out of the client
// as store.ErrStorageUnavailable, so callers handle a remote repository exactly
// like a local one.
//
// # Usage
//
//	gs := remote.NewGRPCServer(logger)
//	remote.NewServer(repo, logger).Register(gs)
//	go gs.Serve(lis)
//
//	client, err := remote.Dial(ctx, "localhost:50051", logger)
package remote
