package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cacheops/cachectl/dto"
	"github.com/cacheops/cachectl/services"
)

// Login authenticates the operator and returns a bearer token.
func Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	response, err := services.Login(req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": response})
}
