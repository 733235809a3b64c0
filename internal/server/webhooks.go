package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HandlePayHereNotification receives the gateway's server-to-server IPN push.
// Only a fully processed delivery is acknowledged with 200; any failure keeps
// the gateway retrying.
func (s *Server) HandlePayHereNotification(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.WebhookTimeout)
	defer cancel()

	if err := s.paymentSvc.HandleNotification(ctx, c.Request.PostForm); err != nil {
		AbortWithError(c, err)
		return
	}

	c.String(http.StatusOK, "OK")
}
