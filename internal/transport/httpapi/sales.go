package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	posv1 "github.com/vladislavdragonenkov/pos/api/pos/v1"
	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/service/idempotency"
	"github.com/vladislavdragonenkov/pos/internal/transport/convert"
)

// saleItemRequest принимает и productId, и id: кассовый интерфейс шлёт товар целиком.
// Цена и название из запроса игнорируются.
type saleItemRequest struct {
	ProductID int64 `json:"productId"`
	ID        int64 `json:"id"`
	Quantity  int   `json:"quantity"`
}

type commitSaleRequest struct {
	Items    []saleItemRequest `json:"items"`
	Payments []posv1.Payment   `json:"payments"`
}

func (r commitSaleRequest) toAPI() posv1.CommitSaleRequest {
	items := make([]posv1.CartItem, 0, len(r.Items))
	for _, item := range r.Items {
		id := item.ProductID
		if id == 0 {
			id = item.ID
		}
		items = append(items, posv1.CartItem{ProductID: id, Quantity: item.Quantity})
	}
	return posv1.CommitSaleRequest{Items: items, Payments: r.Payments}
}

type saleStatusRequest struct {
	Status string `json:"status"`
}

type saleDetail struct {
	posv1.Sale
	Timeline []posv1.TimelineEvent `json:"timeline"`
}

type paymentMethodView struct {
	Method       string `json:"method"`
	AllowsChange bool   `json:"allowsChange"`
}

func (s *Server) listSales(c *gin.Context) {
	sales, err := s.checkout.ListSales(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, convert.Sales(sales))
}

func (s *Server) getSale(c *gin.Context) {
	sale, err := s.checkout.GetSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	events, err := s.checkout.Timeline(sale.ID)
	if err != nil {
		s.logger.WithError(err).WithField("sale_id", sale.ID).Warn("failed to load sale timeline")
	}
	c.JSON(http.StatusOK, saleDetail{Sale: convert.Sale(sale), Timeline: convert.Timeline(events)})
}

func (s *Server) commitSale(c *gin.Context) {
	var body commitSaleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeError(c, badRequest("body", err.Error()))
		return
	}
	req := body.toAPI()

	s.idempotent(c, "POST /api/sales", req, func(ctx context.Context) (int, any, error) {
		sale, err := s.checkout.Commit(ctx, convert.Lines(req.Items), convert.Payments(req.Payments))
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, convert.Sale(sale), nil
	})
}

// updateSaleStatus поддерживает единственный переход: {"status": "VOID"}.
func (s *Server) updateSaleStatus(c *gin.Context) {
	var req saleStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, badRequest("body", err.Error()))
		return
	}
	status := domain.SaleStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	switch {
	case status == "":
		s.writeError(c, badRequest("status", "is required"))
		return
	case status != domain.SaleStatusVoid:
		s.writeError(c, domain.ErrInvalidStatusTransition)
		return
	}

	id := c.Param("id")
	s.idempotent(c, "PATCH /api/sales/"+id, req, func(ctx context.Context) (int, any, error) {
		sale, err := s.checkout.Void(ctx, id)
		if err != nil {
			if sale.ID == "" {
				return 0, nil, err
			}
			s.logger.WithError(err).WithField("sale_id", sale.ID).Warn("sale voided with stock credit errors")
		}
		return http.StatusOK, convert.Sale(sale), nil
	})
}

func (s *Server) paymentMethods(c *gin.Context) {
	methods := s.checkout.PaymentMethods()
	out := make([]paymentMethodView, 0)
	for _, method := range methods.Methods() {
		policy, _ := methods.Policy(method)
		out = append(out, paymentMethodView{Method: string(method), AllowsChange: policy.AllowsChange})
	}
	c.JSON(http.StatusOK, out)
}

type operation func(ctx context.Context) (int, any, error)

// idempotent выполняет операцию под заголовком Idempotency-Key, если он передан.
// Клиентские ошибки сохраняются и воспроизводятся как есть; внутренние не сохраняются.
func (s *Server) idempotent(c *gin.Context, scope string, request any, op operation) {
	key := c.GetHeader(idempotencyKeyHeader)
	resp, replayed, err := s.guard.Do(c.Request.Context(), key, scope, request, func(ctx context.Context) (idempotency.Response, error) {
		code, payload, opErr := op(ctx)
		if opErr != nil {
			errCode, errBody := errorResponse(opErr)
			if errCode >= http.StatusInternalServerError {
				return idempotency.Response{}, opErr
			}
			_ = c.Error(opErr)
			code, payload = errCode, errBody
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return idempotency.Response{}, err
		}
		return idempotency.Response{Status: code, Body: data}, nil
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	if replayed {
		c.Header(replayedHeader, "true")
	}
	c.Data(resp.Status, "application/json; charset=utf-8", resp.Body)
}
