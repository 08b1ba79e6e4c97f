package api

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "storechat.v1.Backend"

// BackendServer is the server API for the storechat.v1.Backend service.
type BackendServer interface {
	ResolveIdentity(context.Context, *ResolveIdentityRequest) (*Identity, error)
	EnsureConversation(context.Context, *EnsureConversationRequest) (*Conversation, error)
	FetchHistory(context.Context, *FetchHistoryRequest) (*FetchHistoryResponse, error)
	PersistMessage(context.Context, *PersistMessageRequest) (*Message, error)
	MarkRead(context.Context, *MarkReadRequest) (*MarkReadResponse, error)
	ListConversations(context.Context, *ListConversationsRequest) (*ListConversationsResponse, error)
}

// RegisterBackendServer registers srv on s.
func RegisterBackendServer(s grpc.ServiceRegistrar, srv BackendServer) {
	s.RegisterService(&backendServiceDesc, srv)
}

var backendServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*BackendServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ResolveIdentity", Handler: unaryHandler("ResolveIdentity", BackendServer.ResolveIdentity)},
		{MethodName: "EnsureConversation", Handler: unaryHandler("EnsureConversation", BackendServer.EnsureConversation)},
		{MethodName: "FetchHistory", Handler: unaryHandler("FetchHistory", BackendServer.FetchHistory)},
		{MethodName: "PersistMessage", Handler: unaryHandler("PersistMessage", BackendServer.PersistMessage)},
		{MethodName: "MarkRead", Handler: unaryHandler("MarkRead", BackendServer.MarkRead)},
		{MethodName: "ListConversations", Handler: unaryHandler("ListConversations", BackendServer.ListConversations)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storechat/v1/backend.json",
}

func fullMethod(name string) string {
	return "/" + serviceName + "/" + name
}

// unaryHandler adapts a typed BackendServer method to grpc.MethodDesc.
func unaryHandler[Req, Resp any](name string, call func(BackendServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BackendServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BackendServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
