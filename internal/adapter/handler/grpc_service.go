package handler

import (
	"context"

	"google.golang.org/grpc"
)

const (
	allocationServiceName = "allocation.v1.AllocationService"
	addBatchFullMethod    = "/" + allocationServiceName + "/AddBatch"
	allocateFullMethod    = "/" + allocationServiceName + "/Allocate"
	deallocateFullMethod  = "/" + allocationServiceName + "/Deallocate"
)

type AddBatchRequest struct {
	Reference string `json:"reference"`
	Sku       string `json:"sku"`
	Quantity  int32  `json:"quantity"`
	Eta       string `json:"eta,omitempty"`
}

type AddBatchResponse struct {
	Reference string `json:"reference"`
}

type AllocateRequest struct {
	RequestId string `json:"request_id"`
	OrderId   string `json:"order_id"`
	Sku       string `json:"sku"`
	Quantity  int32  `json:"quantity"`
}

type AllocateResponse struct {
	BatchRef string `json:"batch_ref"`
}

type DeallocateRequest struct {
	BatchRef string `json:"batch_ref"`
	OrderId  string `json:"order_id"`
	Sku      string `json:"sku"`
	Quantity int32  `json:"quantity"`
}

type DeallocateResponse struct{}

type AllocationServiceServer interface {
	AddBatch(context.Context, *AddBatchRequest) (*AddBatchResponse, error)
	Allocate(context.Context, *AllocateRequest) (*AllocateResponse, error)
	Deallocate(context.Context, *DeallocateRequest) (*DeallocateResponse, error)
}

func RegisterAllocationServiceServer(s grpc.ServiceRegistrar, srv AllocationServiceServer) {
	s.RegisterService(&allocationServiceDesc, srv)
}

var allocationServiceDesc = grpc.ServiceDesc{
	ServiceName: allocationServiceName,
	HandlerType: (*AllocationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AddBatch", Handler: addBatchHandler},
		{MethodName: "Allocate", Handler: allocateHandler},
		{MethodName: "Deallocate", Handler: deallocateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "allocation/v1/allocation.proto",
}

func addBatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AddBatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AllocationServiceServer).AddBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: addBatchFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AllocationServiceServer).AddBatch(ctx, req.(*AddBatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func allocateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AllocateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AllocationServiceServer).Allocate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: allocateFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AllocationServiceServer).Allocate(ctx, req.(*AllocateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func deallocateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DeallocateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AllocationServiceServer).Deallocate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: deallocateFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AllocationServiceServer).Deallocate(ctx, req.(*DeallocateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// AllocationServiceClient calls the service over a connection using the JSON
// codec.
type AllocationServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAllocationServiceClient(cc grpc.ClientConnInterface) *AllocationServiceClient {
	return &AllocationServiceClient{cc: cc}
}

func (c *AllocationServiceClient) AddBatch(ctx context.Context, in *AddBatchRequest, opts ...grpc.CallOption) (*AddBatchResponse, error) {
	out := new(AddBatchResponse)
	if err := c.cc.Invoke(ctx, addBatchFullMethod, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AllocationServiceClient) Allocate(ctx context.Context, in *AllocateRequest, opts ...grpc.CallOption) (*AllocateResponse, error) {
	out := new(AllocateResponse)
	if err := c.cc.Invoke(ctx, allocateFullMethod, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AllocationServiceClient) Deallocate(ctx context.Context, in *DeallocateRequest, opts ...grpc.CallOption) (*DeallocateResponse, error) {
	out := new(DeallocateResponse)
	if err := c.cc.Invoke(ctx, deallocateFullMethod, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withJSON(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
}
