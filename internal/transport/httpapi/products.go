package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	posv1 "github.com/vladislavdragonenkov/pos/api/pos/v1"
	"github.com/vladislavdragonenkov/pos/internal/transport/convert"
)

func parseProductID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("id", "must be a positive integer")
	}
	return id, nil
}

func (s *Server) listProducts(c *gin.Context) {
	products, err := s.catalog.List(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, convert.Products(products))
}

func (s *Server) getProduct(c *gin.Context) {
	id, err := parseProductID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	product, err := s.catalog.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, convert.Product(product))
}

func (s *Server) createProduct(c *gin.Context) {
	var req posv1.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, badRequest("body", err.Error()))
		return
	}
	product, err := s.catalog.Add(c.Request.Context(), convert.Draft(req))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, convert.Product(product))
}

// updateProduct меняет только переданные поля; stock задаёт остаток напрямую.
func (s *Server) updateProduct(c *gin.Context) {
	id, err := parseProductID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	var req posv1.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, badRequest("body", err.Error()))
		return
	}
	product, err := s.catalog.Update(c.Request.Context(), id, convert.Patch(req))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, convert.Product(product))
}

func (s *Server) deleteProduct(c *gin.Context) {
	id, err := parseProductID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.catalog.Delete(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, posv1.DeleteProductResponse{Success: true})
}
