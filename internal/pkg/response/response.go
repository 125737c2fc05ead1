// Package response holds the small set of JSON-writing helpers shared by
// every HTTP module, so handlers don't each hand-roll status codes and
// content types.
package response

import "github.com/gin-gonic/gin"

// Message is the generic {"message": "..."} body used by delete/ack
// endpoints that have nothing else to report.
type Message struct {
	Message string `json:"message"`
}

// JSON writes v as the body with the given status code.
func JSON(c *gin.Context, status int, v interface{}) {
	c.JSON(status, v)
}

// OK writes v with HTTP 200.
func OK(c *gin.Context, v interface{}) {
	c.JSON(200, v)
}
