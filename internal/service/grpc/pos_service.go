package grpcsvc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	posv1 "github.com/vladislavdragonenkov/pos/api/pos/v1"
	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/service/catalog"
	"github.com/vladislavdragonenkov/pos/internal/service/checkout"
	"github.com/vladislavdragonenkov/pos/internal/service/idempotency"
	"github.com/vladislavdragonenkov/pos/internal/service/report"
	"github.com/vladislavdragonenkov/pos/internal/transport/convert"
)

const idempotencyKeyHeader = "idempotency-key"

// PointOfSaleService реализует gRPC API кассы поверх каталога и кассового движка.
type PointOfSaleService struct {
	posv1.UnimplementedPointOfSaleServer

	catalog  *catalog.Service
	checkout *checkout.Engine
	guard    *idempotency.Guard
	report   report.Options
	logger   *log.Entry
}

// Option настраивает PointOfSaleService.
type Option func(*PointOfSaleService)

// WithIdempotency включает защиту от повторов для CommitSale и VoidSale.
func WithIdempotency(repo domain.IdempotencyRepository) Option {
	return func(s *PointOfSaleService) {
		if repo == nil {
			return
		}
		s.guard = idempotency.NewGuard(repo, idempotency.DefaultTTL,
			idempotency.WithGuardLogger(s.logger),
			idempotency.WithFailurePredicate(func(code int) bool { return code != int(codes.OK) }),
		)
	}
}

// WithReportOptions задаёт параметры сводки по умолчанию.
func WithReportOptions(opts report.Options) Option {
	return func(s *PointOfSaleService) {
		s.report = opts
	}
}

// NewPointOfSaleService конструирует сервис с зависимостями.
func NewPointOfSaleService(catalogSvc *catalog.Service, engine *checkout.Engine, logger *log.Entry, opts ...Option) *PointOfSaleService {
	if logger == nil {
		logger = log.WithField("component", "pos-grpc")
	}
	s := &PointOfSaleService{
		catalog:  catalogSvc,
		checkout: engine,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PointOfSaleService) ListProducts(ctx context.Context, _ *posv1.ListProductsRequest) (*posv1.ListProductsResponse, error) {
	products, err := s.catalog.List(ctx)
	if err != nil {
		return nil, s.toStatus(err, "ListProducts")
	}
	return &posv1.ListProductsResponse{Products: convert.Products(products)}, nil
}

func (s *PointOfSaleService) GetProduct(ctx context.Context, req *posv1.GetProductRequest) (*posv1.GetProductResponse, error) {
	if req == nil || req.ID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	product, err := s.catalog.Get(ctx, req.ID)
	if err != nil {
		return nil, s.toStatus(err, "GetProduct")
	}
	return &posv1.GetProductResponse{Product: convert.Product(product)}, nil
}

func (s *PointOfSaleService) CreateProduct(ctx context.Context, req *posv1.CreateProductRequest) (*posv1.CreateProductResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	product, err := s.catalog.Add(ctx, convert.Draft(*req))
	if err != nil {
		return nil, s.toStatus(err, "CreateProduct")
	}
	return &posv1.CreateProductResponse{Product: convert.Product(product)}, nil
}

func (s *PointOfSaleService) UpdateProduct(ctx context.Context, req *posv1.UpdateProductRequest) (*posv1.UpdateProductResponse, error) {
	if req == nil || req.ID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	product, err := s.catalog.Update(ctx, req.ID, convert.Patch(*req))
	if err != nil {
		return nil, s.toStatus(err, "UpdateProduct")
	}
	return &posv1.UpdateProductResponse{Product: convert.Product(product)}, nil
}

func (s *PointOfSaleService) DeleteProduct(ctx context.Context, req *posv1.DeleteProductRequest) (*posv1.DeleteProductResponse, error) {
	if req == nil || req.ID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	if err := s.catalog.Delete(ctx, req.ID); err != nil {
		return nil, s.toStatus(err, "DeleteProduct")
	}
	return &posv1.DeleteProductResponse{Success: true}, nil
}

func (s *PointOfSaleService) ListSales(ctx context.Context, _ *posv1.ListSalesRequest) (*posv1.ListSalesResponse, error) {
	sales, err := s.checkout.ListSales(ctx)
	if err != nil {
		return nil, s.toStatus(err, "ListSales")
	}
	return &posv1.ListSalesResponse{Sales: convert.Sales(sales)}, nil
}

func (s *PointOfSaleService) GetSale(ctx context.Context, req *posv1.GetSaleRequest) (*posv1.GetSaleResponse, error) {
	if req == nil || strings.TrimSpace(req.ID) == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	sale, err := s.checkout.GetSale(ctx, req.ID)
	if err != nil {
		return nil, s.toStatus(err, "GetSale")
	}
	events, err := s.checkout.Timeline(sale.ID)
	if err != nil {
		s.logger.WithError(err).WithField("sale_id", sale.ID).Warn("failed to load sale timeline")
	}
	return &posv1.GetSaleResponse{Sale: convert.Sale(sale), Timeline: convert.Timeline(events)}, nil
}

// CommitSale проводит продажу. Повтор с тем же idempotency-key возвращает сохранённый результат.
func (s *PointOfSaleService) CommitSale(ctx context.Context, req *posv1.CommitSaleRequest) (*posv1.CommitSaleResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	return withIdempotency(s, ctx, posv1.MethodCommitSale, req, func(ctx context.Context) (*posv1.CommitSaleResponse, error) {
		sale, err := s.checkout.Commit(ctx, convert.Lines(req.Items), convert.Payments(req.Payments))
		if err != nil {
			return nil, s.toStatus(err, "CommitSale")
		}
		return &posv1.CommitSaleResponse{Sale: convert.Sale(sale)}, nil
	})
}

// VoidSale аннулирует продажу. Повторное аннулирование ничего не меняет.
func (s *PointOfSaleService) VoidSale(ctx context.Context, req *posv1.VoidSaleRequest) (*posv1.VoidSaleResponse, error) {
	if req == nil || strings.TrimSpace(req.ID) == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	return withIdempotency(s, ctx, posv1.MethodVoidSale, req, func(ctx context.Context) (*posv1.VoidSaleResponse, error) {
		sale, err := s.checkout.Void(ctx, req.ID)
		if err != nil {
			if sale.ID == "" {
				return nil, s.toStatus(err, "VoidSale")
			}
			s.logger.WithError(err).WithField("sale_id", sale.ID).Warn("sale voided with stock credit errors")
		}
		return &posv1.VoidSaleResponse{Sale: convert.Sale(sale)}, nil
	})
}

func (s *PointOfSaleService) GetSalesReport(ctx context.Context, req *posv1.GetSalesReportRequest) (*posv1.GetSalesReportResponse, error) {
	opts := s.report
	if req != nil {
		if req.Days < 0 || req.Top < 0 {
			return nil, status.Error(codes.InvalidArgument, "days and top must be non-negative")
		}
		if req.Days > 0 {
			opts.TrendDays = req.Days
		}
		if req.Top > 0 {
			opts.TopProducts = req.Top
		}
	}
	sales, err := s.checkout.ListSales(ctx)
	if err != nil {
		return nil, s.toStatus(err, "GetSalesReport")
	}
	return &posv1.GetSalesReportResponse{Report: convert.Report(report.Summarize(sales, opts))}, nil
}

// toStatus сопоставляет доменную ошибку с gRPC-статусом.
func (s *PointOfSaleService) toStatus(err error, operation string) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	switch domain.ErrorKind(err) {
	case domain.KindValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case domain.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case domain.KindInsufficientStock, domain.KindIncompletePayment:
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		s.logger.WithError(err).WithField("operation", operation).Error("request failed")
		return status.Error(codes.Internal, "internal error")
	}
}

type idempotencyErrorPayload struct {
	Code    uint32 `json:"code"`
	Message string `json:"message"`
}

// withIdempotency выполняет handler под ключом из метаданных. Без ключа вызов идёт напрямую.
// Клиентские ошибки сохраняются вместе с кодом и воспроизводятся при повторе;
// внутренние не сохраняются.
func withIdempotency[T any](
	s *PointOfSaleService,
	ctx context.Context,
	method string,
	req any,
	handler func(context.Context) (*T, error),
) (*T, error) {
	key := readIdempotencyKey(ctx)
	if s.guard == nil || key == "" {
		return handler(ctx)
	}

	var (
		fresh    *T
		freshErr error
	)
	resp, replayed, err := s.guard.Do(ctx, key, method, req, func(ctx context.Context) (idempotency.Response, error) {
		fresh, freshErr = handler(ctx)
		if freshErr != nil {
			st := status.Convert(freshErr)
			if retryable(st.Code()) {
				return idempotency.Response{}, freshErr
			}
			body, err := json.Marshal(idempotencyErrorPayload{Code: uint32(st.Code()), Message: st.Message()})
			if err != nil {
				return idempotency.Response{}, freshErr
			}
			return idempotency.Response{Status: int(st.Code()), Body: body}, nil
		}
		body, err := json.Marshal(fresh)
		if err != nil {
			return idempotency.Response{}, err
		}
		return idempotency.Response{Status: int(codes.OK), Body: body}, nil
	})
	if err != nil {
		return nil, guardStatus(err)
	}
	if !replayed {
		return fresh, freshErr
	}

	s.logger.WithFields(log.Fields{"method": method, "idempotency_key": key}).Debug("idempotent replay")
	return decodeReplay[T](resp)
}

func decodeReplay[T any](resp idempotency.Response) (*T, error) {
	if resp.Status != int(codes.OK) {
		var payload idempotencyErrorPayload
		if err := json.Unmarshal(resp.Body, &payload); err != nil || payload.Code == uint32(codes.OK) {
			return nil, status.Error(codes.Internal, "failed to decode cached idempotency response")
		}
		return nil, status.Error(codes.Code(payload.Code), payload.Message)
	}
	out := new(T)
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return nil, status.Error(codes.Internal, "failed to decode cached idempotency response")
	}
	return out, nil
}

// guardStatus переводит ошибки Guard в gRPC-статусы. Ошибки handler уже являются статусами.
func guardStatus(err error) error {
	switch {
	case errors.Is(err, idempotency.ErrKeyReused):
		return status.Error(codes.AlreadyExists, "idempotency key is already used with different request payload")
	case errors.Is(err, idempotency.ErrInProgress):
		return status.Error(codes.Aborted, "request with the same idempotency key is already processing")
	case errors.Is(err, idempotency.ErrPreviousAttemptFailed):
		return status.Error(codes.Aborted, err.Error())
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codes.Internal, "failed to initialize idempotency request")
}

func retryable(code codes.Code) bool {
	switch code {
	case codes.Internal, codes.Unknown, codes.Canceled, codes.DeadlineExceeded, codes.Unavailable:
		return true
	default:
		return false
	}
}

func readIdempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(idempotencyKeyHeader)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

var _ posv1.PointOfSaleServer = (*PointOfSaleService)(nil)
