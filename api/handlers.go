package api

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/recall/pkg/buffer"
	"github.com/papercomputeco/recall/pkg/turn"
)

// ErrorResponse is the JSON error body every handler returns on failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AppendRequest is the body of POST /v1/append.
type AppendRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	TurnIndex int    `json:"turn_index"`
	Role      string `json:"role"`
	Text      string `json:"text"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleAppend appends one turn to the user's buffer. The write is cheap by
// design; embedding and dedup cost is paid at flush time.
func (s *Server) handleAppend(c *fiber.Ctx) error {
	var req AppendRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user_id is required"})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "text is required"})
	}

	role := turn.Role(req.Role)
	if role != turn.RoleUser && role != turn.RoleAgent {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "role must be user or agent"})
	}

	entry := buffer.Entry{
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		TurnIndex:  req.TurnIndex,
		Role:       role,
		Text:       req.Text,
		AppendedAt: time.Now().UTC(),
	}

	if err := s.buffer.Append(c.Context(), entry); err != nil {
		s.logger.Error("append failed", "user_id", req.UserID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "append failed"})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "buffered"})
}

// handleFlush runs a flush pass and returns its report.
func (s *Server) handleFlush(c *fiber.Ctx) error {
	report, err := s.flusher.Run(c.Context())
	if err != nil {
		s.logger.Error("flush failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(report)
}

// handlePrune removes buffered entries older than the requested age.
// Query parameters:
//   - older_than (optional, default "720h"): a Go duration string
func (s *Server) handlePrune(c *fiber.Ctx) error {
	olderThan := 720 * time.Hour
	if raw := c.Query("older_than"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "older_than must be a positive duration"})
		}
		olderThan = parsed
	}

	removed, err := s.flusher.Prune(c.Context(), time.Now().Add(-olderThan))
	if err != nil {
		s.logger.Error("prune failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(fiber.Map{"removed": removed})
}

// handleSearch merges durable and buffered memories for a user.
// Query parameters:
//   - user_id (required): the memory owner
//   - query (required): the search query text
//   - top_k (optional, default 5): number of results to return
func (s *Server) handleSearch(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user_id parameter is required"})
	}

	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query parameter is required"})
	}

	topK := 5
	if topKStr := c.Query("top_k"); topKStr != "" {
		parsed, err := strconv.Atoi(topKStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "top_k must be a positive integer"})
		}
		topK = parsed
	}

	results, err := s.retriever.Search(c.Context(), userID, query, topK)
	if err != nil {
		s.logger.Error("search failed", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(fiber.Map{
		"count":   len(results),
		"results": results,
	})
}
