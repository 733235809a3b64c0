package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// GetRegistration looks up one registration by its registration number.
func (s *Server) GetRegistration(c *gin.Context) {
	number := strings.TrimSpace(c.Param("number"))
	if number == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	reg, err := s.registrationSvc.FindByNumber(c.Request.Context(), number)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, reg)
}
