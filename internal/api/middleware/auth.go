// Package middleware provides HTTP middleware for the Gin router.
//
// Go Learning Note — Middleware Pattern (Gin):
// In Gin, middleware is any function with the signature `gin.HandlerFunc`, which
// is `func(*gin.Context)`. Middleware functions form a chain: each one runs,
// optionally calls c.Next() to pass control to the next handler, and can call
// c.Abort() to stop the chain.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ridesync/pkg/utils"
)

// Context keys for values set by the middleware.
const (
	AccountKey   = "account"
	RequestIDKey = "request_id"
)

// AccountAuth reads the sending account from the Authorization header.
// Format: "Bearer <address>", where address is a 0x-prefixed 20-byte hex
// string. The wallet has already approved the transaction on the client, so
// the header only names the sender, as a signed transaction's From would.
//
// Go Learning Note — c.Abort():
// c.Abort() prevents subsequent handlers in the chain from running. Always
// pair error responses with c.Abort() in middleware.
func AccountAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			c.Abort()
			return
		}

		account := strings.TrimSpace(parts[1])
		if !utils.IsAddress(account) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid account address"})
			c.Abort()
			return
		}

		c.Set(AccountKey, utils.NormalizeAddress(account))
		c.Next()
	}
}

// GetAccount returns the address set by AccountAuth.
//
// Go Learning Note — Type Assertion:
// c.Get() returns (interface{}, bool). The `.(string)` assertion would panic
// on a non-string; it is only called behind AccountAuth, which guarantees a
// string.
func GetAccount(c *gin.Context) string {
	account, _ := c.Get(AccountKey)
	return account.(string)
}
