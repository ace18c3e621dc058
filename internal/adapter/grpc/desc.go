package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the airdrop service
const ServiceName = "tokendrop.v1.AirdropService"

// AirdropServiceServer is the server API for the airdrop service
// Requests and responses are JSON-shaped google.protobuf.Struct messages
type AirdropServiceServer interface {
	UploadRecipients(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EditRow(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveRow(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetReport(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DiscardUpload(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportCleanList(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EstimateCost(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RetryFailed(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(AirdropServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AirdropServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(AirdropServiceServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes the airdrop service for grpc.Server registration
// Bodies are structpb.Struct and no file descriptor is registered, so server
// reflection lists the service but cannot describe its messages.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AirdropServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("UploadRecipients", AirdropServiceServer.UploadRecipients),
		unaryHandler("EditRow", AirdropServiceServer.EditRow),
		unaryHandler("RemoveRow", AirdropServiceServer.RemoveRow),
		unaryHandler("GetReport", AirdropServiceServer.GetReport),
		unaryHandler("DiscardUpload", AirdropServiceServer.DiscardUpload),
		unaryHandler("ExportCleanList", AirdropServiceServer.ExportCleanList),
		unaryHandler("EstimateCost", AirdropServiceServer.EstimateCost),
		unaryHandler("StartRun", AirdropServiceServer.StartRun),
		unaryHandler("GetRun", AirdropServiceServer.GetRun),
		unaryHandler("ListRuns", AirdropServiceServer.ListRuns),
		unaryHandler("CancelRun", AirdropServiceServer.CancelRun),
		unaryHandler("RetryFailed", AirdropServiceServer.RetryFailed),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "",
}

// RegisterAirdropServiceServer registers srv on s
func RegisterAirdropServiceServer(s grpc.ServiceRegistrar, srv AirdropServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls the airdrop service over a client connection
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a new Client instance
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with fields as the request body
func (c *Client) Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
