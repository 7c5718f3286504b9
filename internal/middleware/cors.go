package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Header values the booking front end has always been served with.
const (
	CORSAllowHeaders = "Content-Type,X-Amz-Date,Authorization,X-Api-Key,X-Amz-Security-Token"
	CORSAllowOrigin  = "*"
	CORSAllowMethods = "POST,PUT,GET"
)

// CORS sets the fixed CORS headers on every response, errors included.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Headers", CORSAllowHeaders)
		c.Header("Access-Control-Allow-Origin", CORSAllowOrigin)
		c.Header("Access-Control-Allow-Methods", CORSAllowMethods)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
