package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// PaymentReturn answers the browser redirect from the gateway. The state is
// reconciled server-side; the redirect itself carries no trusted signal.
func (s *Server) PaymentReturn(c *gin.Context) {
	orderID := strings.TrimSpace(c.Query("order_id"))
	if orderID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	status, err := s.paymentSvc.ReconcileReturn(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}
