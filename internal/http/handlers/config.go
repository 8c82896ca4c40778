package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetConfig returns the deployment the front end should render
func (h *Handler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.Deployment)
}
