package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/pos/internal/service/report"
	"github.com/vladislavdragonenkov/pos/internal/transport/convert"
)

// salesSummary отдаёт сводку. Параметры: days — длина тренда, top — размер списка лидеров.
func (s *Server) salesSummary(c *gin.Context) {
	opts := s.report
	var err error
	if opts.TrendDays, err = queryInt(c, "days", opts.TrendDays); err != nil {
		s.writeError(c, err)
		return
	}
	if opts.TopProducts, err = queryInt(c, "top", opts.TopProducts); err != nil {
		s.writeError(c, err)
		return
	}

	sales, err := s.checkout.ListSales(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, convert.Report(report.Summarize(sales, opts)))
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, badRequest(name, "must be a non-negative integer")
	}
	return v, nil
}
