package mock

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Routes registers the fake GitHub endpoints on r.
func Routes(r *gin.Engine, s *Store) {
	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// GitHub endpoints
	users := r.Group("/users", requireToken)
	{
		users.GET("/:username", func(c *gin.Context) { handleGetUser(c, s) })
		users.GET("/:username/events", func(c *gin.Context) { handleGetEvents(c, s, s.Events) })
		users.GET("/:username/received_events", func(c *gin.Context) { handleGetEvents(c, s, s.ReceivedEvents) })
	}

	// Admin endpoints for testing
	admin := r.Group("/admin")
	{
		admin.POST("/users/add", func(c *gin.Context) { handleAddUsers(c, s) })
		admin.POST("/events/generate", func(c *gin.Context) { handleGenerate(c, s) })
	}
}

func requireToken(c *gin.Context) {
	if !strings.HasPrefix(c.GetHeader("Authorization"), "token ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Requires authentication"})
		return
	}
	if strings.EqualFold(c.Param("username"), RateLimitedLogin) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"message":           "API rate limit exceeded for user ID 1.",
			"documentation_url": "https://docs.github.com/rest/overview/rate-limits-for-the-rest-api",
		})
		return
	}
	c.Next()
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"message":           "Not Found",
		"documentation_url": "https://docs.github.com/rest",
	})
}

func handleGetUser(c *gin.Context, s *Store) {
	u, ok := s.User(c.Param("username"))
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, u)
}

func handleGetEvents(c *gin.Context, s *Store, feed func(string) ([]Event, bool)) {
	events, ok := feed(c.Param("username"))
	if !ok {
		notFound(c)
		return
	}

	perPage, err := strconv.Atoi(c.DefaultQuery("per_page", "30"))
	if err != nil || perPage < 1 {
		perPage = 30
	}
	if perPage > 100 {
		perPage = 100
	}
	if len(events) > perPage {
		events = events[:perPage]
	}
	c.JSON(http.StatusOK, events)
}

func handleAddUsers(c *gin.Context, s *Store) {
	var req struct {
		NumUsers int `json:"numUsers"`
	}

	// Try JSON body first
	if err := c.ShouldBindJSON(&req); err != nil {
		// Fall back to query parameter
		if num, err := strconv.Atoi(c.DefaultQuery("numUsers", "1")); err == nil {
			req.NumUsers = num
		}
	}

	// Default to 1 if not specified or invalid
	if req.NumUsers < 1 {
		req.NumUsers = 1
	}

	total, err := s.AddUsers(req.NumUsers)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"added":   req.NumUsers,
		"total":   total,
		"message": fmt.Sprintf("Added %d user(s). Total users: %d", req.NumUsers, total),
	})
}

func handleGenerate(c *gin.Context, s *Store) {
	added := s.Generate(GenerateInterval)
	c.JSON(http.StatusOK, gin.H{"added": added})
}
