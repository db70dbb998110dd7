package posv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName — полное имя gRPC-сервиса.
const ServiceName = "pos.v1.PointOfSale"

// Полные имена методов, используются в interceptor'ах и idempotency scope.
const (
	MethodListProducts   = "/" + ServiceName + "/ListProducts"
	MethodGetProduct     = "/" + ServiceName + "/GetProduct"
	MethodCreateProduct  = "/" + ServiceName + "/CreateProduct"
	MethodUpdateProduct  = "/" + ServiceName + "/UpdateProduct"
	MethodDeleteProduct  = "/" + ServiceName + "/DeleteProduct"
	MethodListSales      = "/" + ServiceName + "/ListSales"
	MethodGetSale        = "/" + ServiceName + "/GetSale"
	MethodCommitSale     = "/" + ServiceName + "/CommitSale"
	MethodVoidSale       = "/" + ServiceName + "/VoidSale"
	MethodGetSalesReport = "/" + ServiceName + "/GetSalesReport"
)

// PointOfSaleServer — серверная часть API кассы.
type PointOfSaleServer interface {
	ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error)
	GetProduct(context.Context, *GetProductRequest) (*GetProductResponse, error)
	CreateProduct(context.Context, *CreateProductRequest) (*CreateProductResponse, error)
	UpdateProduct(context.Context, *UpdateProductRequest) (*UpdateProductResponse, error)
	DeleteProduct(context.Context, *DeleteProductRequest) (*DeleteProductResponse, error)
	ListSales(context.Context, *ListSalesRequest) (*ListSalesResponse, error)
	GetSale(context.Context, *GetSaleRequest) (*GetSaleResponse, error)
	CommitSale(context.Context, *CommitSaleRequest) (*CommitSaleResponse, error)
	VoidSale(context.Context, *VoidSaleRequest) (*VoidSaleResponse, error)
	GetSalesReport(context.Context, *GetSalesReportRequest) (*GetSalesReportResponse, error)
}

// UnimplementedPointOfSaleServer отвечает Unimplemented на все методы.
type UnimplementedPointOfSaleServer struct{}

func (UnimplementedPointOfSaleServer) ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListProducts not implemented")
}

func (UnimplementedPointOfSaleServer) GetProduct(context.Context, *GetProductRequest) (*GetProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetProduct not implemented")
}

func (UnimplementedPointOfSaleServer) CreateProduct(context.Context, *CreateProductRequest) (*CreateProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateProduct not implemented")
}

func (UnimplementedPointOfSaleServer) UpdateProduct(context.Context, *UpdateProductRequest) (*UpdateProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateProduct not implemented")
}

func (UnimplementedPointOfSaleServer) DeleteProduct(context.Context, *DeleteProductRequest) (*DeleteProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteProduct not implemented")
}

func (UnimplementedPointOfSaleServer) ListSales(context.Context, *ListSalesRequest) (*ListSalesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListSales not implemented")
}

func (UnimplementedPointOfSaleServer) GetSale(context.Context, *GetSaleRequest) (*GetSaleResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetSale not implemented")
}

func (UnimplementedPointOfSaleServer) CommitSale(context.Context, *CommitSaleRequest) (*CommitSaleResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CommitSale not implemented")
}

func (UnimplementedPointOfSaleServer) VoidSale(context.Context, *VoidSaleRequest) (*VoidSaleResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method VoidSale not implemented")
}

func (UnimplementedPointOfSaleServer) GetSalesReport(context.Context, *GetSalesReportRequest) (*GetSalesReportResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetSalesReport not implemented")
}

// RegisterPointOfSaleServer регистрирует реализацию на gRPC-сервере.
func RegisterPointOfSaleServer(s grpc.ServiceRegistrar, srv PointOfSaleServer) {
	s.RegisterService(&PointOfSaleServiceDesc, srv)
}

// unary строит обработчик метода: декодирует запрос и пропускает вызов через interceptor.
func unary[Req any, Resp any](fullMethod string, call func(PointOfSaleServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PointOfSaleServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PointOfSaleServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// PointOfSaleServiceDesc — дескриптор сервиса pos.v1.PointOfSale.
var PointOfSaleServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PointOfSaleServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListProducts", Handler: unary(MethodListProducts, PointOfSaleServer.ListProducts)},
		{MethodName: "GetProduct", Handler: unary(MethodGetProduct, PointOfSaleServer.GetProduct)},
		{MethodName: "CreateProduct", Handler: unary(MethodCreateProduct, PointOfSaleServer.CreateProduct)},
		{MethodName: "UpdateProduct", Handler: unary(MethodUpdateProduct, PointOfSaleServer.UpdateProduct)},
		{MethodName: "DeleteProduct", Handler: unary(MethodDeleteProduct, PointOfSaleServer.DeleteProduct)},
		{MethodName: "ListSales", Handler: unary(MethodListSales, PointOfSaleServer.ListSales)},
		{MethodName: "GetSale", Handler: unary(MethodGetSale, PointOfSaleServer.GetSale)},
		{MethodName: "CommitSale", Handler: unary(MethodCommitSale, PointOfSaleServer.CommitSale)},
		{MethodName: "VoidSale", Handler: unary(MethodVoidSale, PointOfSaleServer.VoidSale)},
		{MethodName: "GetSalesReport", Handler: unary(MethodGetSalesReport, PointOfSaleServer.GetSalesReport)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pos/v1/pos.json",
}

// PointOfSaleClient — клиент API кассы.
type PointOfSaleClient interface {
	ListProducts(ctx context.Context, in *ListProductsRequest, opts ...grpc.CallOption) (*ListProductsResponse, error)
	GetProduct(ctx context.Context, in *GetProductRequest, opts ...grpc.CallOption) (*GetProductResponse, error)
	CreateProduct(ctx context.Context, in *CreateProductRequest, opts ...grpc.CallOption) (*CreateProductResponse, error)
	UpdateProduct(ctx context.Context, in *UpdateProductRequest, opts ...grpc.CallOption) (*UpdateProductResponse, error)
	DeleteProduct(ctx context.Context, in *DeleteProductRequest, opts ...grpc.CallOption) (*DeleteProductResponse, error)
	ListSales(ctx context.Context, in *ListSalesRequest, opts ...grpc.CallOption) (*ListSalesResponse, error)
	GetSale(ctx context.Context, in *GetSaleRequest, opts ...grpc.CallOption) (*GetSaleResponse, error)
	CommitSale(ctx context.Context, in *CommitSaleRequest, opts ...grpc.CallOption) (*CommitSaleResponse, error)
	VoidSale(ctx context.Context, in *VoidSaleRequest, opts ...grpc.CallOption) (*VoidSaleResponse, error)
	GetSalesReport(ctx context.Context, in *GetSalesReportRequest, opts ...grpc.CallOption) (*GetSalesReportResponse, error)
}

type pointOfSaleClient struct {
	cc grpc.ClientConnInterface
}

// NewPointOfSaleClient создаёт клиент. Все вызовы идут с content-subtype json.
func NewPointOfSaleClient(cc grpc.ClientConnInterface) PointOfSaleClient {
	return &pointOfSaleClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pointOfSaleClient) ListProducts(ctx context.Context, in *ListProductsRequest, opts ...grpc.CallOption) (*ListProductsResponse, error) {
	return invoke[ListProductsResponse](ctx, c.cc, MethodListProducts, in, opts)
}

func (c *pointOfSaleClient) GetProduct(ctx context.Context, in *GetProductRequest, opts ...grpc.CallOption) (*GetProductResponse, error) {
	return invoke[GetProductResponse](ctx, c.cc, MethodGetProduct, in, opts)
}

func (c *pointOfSaleClient) CreateProduct(ctx context.Context, in *CreateProductRequest, opts ...grpc.CallOption) (*CreateProductResponse, error) {
	return invoke[CreateProductResponse](ctx, c.cc, MethodCreateProduct, in, opts)
}

func (c *pointOfSaleClient) UpdateProduct(ctx context.Context, in *UpdateProductRequest, opts ...grpc.CallOption) (*UpdateProductResponse, error) {
	return invoke[UpdateProductResponse](ctx, c.cc, MethodUpdateProduct, in, opts)
}

func (c *pointOfSaleClient) DeleteProduct(ctx context.Context, in *DeleteProductRequest, opts ...grpc.CallOption) (*DeleteProductResponse, error) {
	return invoke[DeleteProductResponse](ctx, c.cc, MethodDeleteProduct, in, opts)
}

func (c *pointOfSaleClient) ListSales(ctx context.Context, in *ListSalesRequest, opts ...grpc.CallOption) (*ListSalesResponse, error) {
	return invoke[ListSalesResponse](ctx, c.cc, MethodListSales, in, opts)
}

func (c *pointOfSaleClient) GetSale(ctx context.Context, in *GetSaleRequest, opts ...grpc.CallOption) (*GetSaleResponse, error) {
	return invoke[GetSaleResponse](ctx, c.cc, MethodGetSale, in, opts)
}

func (c *pointOfSaleClient) CommitSale(ctx context.Context, in *CommitSaleRequest, opts ...grpc.CallOption) (*CommitSaleResponse, error) {
	return invoke[CommitSaleResponse](ctx, c.cc, MethodCommitSale, in, opts)
}

func (c *pointOfSaleClient) VoidSale(ctx context.Context, in *VoidSaleRequest, opts ...grpc.CallOption) (*VoidSaleResponse, error) {
	return invoke[VoidSaleResponse](ctx, c.cc, MethodVoidSale, in, opts)
}

func (c *pointOfSaleClient) GetSalesReport(ctx context.Context, in *GetSalesReportRequest, opts ...grpc.CallOption) (*GetSalesReportResponse, error) {
	return invoke[GetSalesReportResponse](ctx, c.cc, MethodGetSalesReport, in, opts)
}
