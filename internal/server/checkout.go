package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/craftlane/entrypay/internal/checkout/domain"
	"github.com/gin-gonic/gin"
)

type createCheckoutRequest struct {
	UserID string `json:"user_id" binding:"required"`
	CartID string `json:"cart_id" binding:"required"`
}

// CreateCheckout opens a payment attempt for a cart and returns the signed
// gateway form fields.
func (s *Server) CreateCheckout(c *gin.Context) {
	var req createCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	userID, err := parseID(req.UserID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	cartID, err := parseID(req.CartID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	session, err := s.checkoutSvc.CreateCheckout(c.Request.Context(), checkoutdomain.CreateCheckoutRequest{
		UserID: userID,
		CartID: cartID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

func parseID(raw string) (snowflake.ID, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	return snowflake.ID(value), nil
}
