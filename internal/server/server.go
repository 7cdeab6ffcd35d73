package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/ticketkg/internal/config"
	"github.com/agenthands/ticketkg/internal/core"
	"github.com/agenthands/ticketkg/internal/core/model"
	"github.com/agenthands/ticketkg/internal/retrieval"
	"github.com/agenthands/ticketkg/internal/store"
	"github.com/agenthands/ticketkg/internal/ticket"
)

// KnowledgeBase is the part of core.KnowledgeBase the HTTP layer serves.
type KnowledgeBase interface {
	Refresh(ctx context.Context) core.RefreshResult
	Status() store.Status
	Graph() model.Graph
	Node(id string) (model.Node, []model.Edge, error)
	SearchNodes(query string, topK int) []model.Node
	Clusters() ([]model.Cluster, error)
	Tickets() []ticket.Ticket
	Ticket(id string) (ticket.Ticket, error)
	SearchTickets(query string, topK int) []ticket.Ticket
	Similar(ctx context.Context, query string, topK int) ([]model.Hit, error)
	Suggest(ctx context.Context, t ticket.Ticket, topK int) (model.Suggestion, error)
}

const (
	defaultSearchTopK  = 10
	defaultNodesTopK   = 20
	defaultSimilarTopK = 3
	defaultSuggestTopK = 4
)

type Server struct {
	KB      KnowledgeBase
	Logger  *slog.Logger
	limiter *RateLimiter
}

func NewServer(kb KnowledgeBase, cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{KB: kb, Logger: logger, limiter: NewRateLimiter(cfg.RateLimit, cfg.Burst)}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()
	r.Use(RequestID(), RateLimit(s.limiter))

	kg := r.Group("/kg")
	kg.GET("/health", s.Health)
	kg.GET("/tickets", s.Tickets)
	kg.GET("/ticket/:id", s.Ticket)
	kg.GET("/search", s.SearchTickets)
	kg.GET("/refresh", s.Refresh)
	kg.POST("/refresh", s.Refresh)
	kg.GET("/graph", s.Graph)
	kg.GET("/node/*id", s.Node)
	kg.GET("/nodes/search", s.SearchNodes)
	kg.GET("/clusters", s.Clusters)

	ai := r.Group("/ai")
	ai.GET("/similar", s.Similar)
	ai.POST("/suggest", s.Suggest)

	return r
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": s.KB.Status()})
}

func (s *Server) Tickets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tickets": s.KB.Tickets()})
}

func (s *Server) Ticket(c *gin.Context) {
	t, err := s.KB.Ticket(c.Param("id"))
	if err != nil {
		s.fail(c, err, "Ticket not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": t})
}

func (s *Server) SearchTickets(c *gin.Context) {
	q, topK, ok := queryParams(c, defaultSearchTopK)
	if !ok {
		return
	}
	hits := s.KB.SearchTickets(q, topK)
	c.JSON(http.StatusOK, gin.H{"query": q, "count": len(hits), "hits": hits})
}

func (s *Server) Refresh(c *gin.Context) {
	c.JSON(http.StatusOK, s.KB.Refresh(c.Request.Context()))
}

func (s *Server) Graph(c *gin.Context) {
	c.JSON(http.StatusOK, s.KB.Graph())
}

// Node serves ids that may contain slashes, hence the wildcard route.
func (s *Server) Node(c *gin.Context) {
	id := strings.TrimPrefix(c.Param("id"), "/")
	node, edges, err := s.KB.Node(id)
	if err != nil {
		s.fail(c, err, "Node not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"node": node, "edges": edges})
}

func (s *Server) SearchNodes(c *gin.Context) {
	q, topK, ok := queryParams(c, defaultNodesTopK)
	if !ok {
		return
	}
	hits := s.KB.SearchNodes(q, topK)
	c.JSON(http.StatusOK, gin.H{"query": q, "count": len(hits), "hits": hits})
}

func (s *Server) Clusters(c *gin.Context) {
	clusters, err := s.KB.Clusters()
	if err != nil {
		s.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(clusters), "clusters": clusters})
}

func (s *Server) Similar(c *gin.Context) {
	q, topK, ok := queryParams(c, defaultSimilarTopK)
	if !ok {
		return
	}
	hits, err := s.KB.Similar(c.Request.Context(), q, topK)
	if err != nil {
		s.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": q, "count": len(hits), "hits": hits})
}

type SuggestRequest struct {
	TicketID string         `json:"ticketId"`
	Ticket   map[string]any `json:"ticket"`
	TopK     int            `json:"top_k"`
}

// Suggest accepts either a stored ticket id or a full ticket payload.
func (s *Server) Suggest(c *gin.Context) {
	var req SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	payload := ticket.Ticket(req.Ticket)
	if len(payload) == 0 && req.TicketID != "" {
		t, err := s.KB.Ticket(req.TicketID)
		if err != nil {
			s.fail(c, err, "Ticket not found")
			return
		}
		payload = t
	}
	if len(payload) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticket or ticketId required"})
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = defaultSuggestTopK
	}
	out, err := s.KB.Suggest(c.Request.Context(), NormalizeTicket(payload), topK)
	if err != nil {
		s.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": out})
}

// NormalizeTicket reduces an incoming ticket to the fields suggestions use,
// accepting the aliases clients send.
func NormalizeTicket(t ticket.Ticket) ticket.Ticket {
	displayID := t.FirstString("displayId", "ticketId")
	if displayID == "" {
		displayID = "NEW-UNKNOWN"
	}
	requester := t.Name("requester")
	if requester == "" {
		requester = t.String("requesterName")
	}
	return ticket.Ticket{
		"displayId":   displayID,
		"subject":     t.FirstString("subject", "title"),
		"requester":   map[string]any{"name": requester},
		"subcategory": t.FirstString("subcategory", "ticketType"),
		"priority":    t.String("priority"),
		"description": t.FirstString("description", "body"),
	}
}

// queryParams reads the required q and optional top_k parameters, writing a
// 400 when q is missing. An unparsable top_k falls back to def.
func queryParams(c *gin.Context, def int) (string, int, bool) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q parameter required"})
		return "", 0, false
	}
	topK, err := strconv.Atoi(c.DefaultQuery("top_k", strconv.Itoa(def)))
	if err != nil || topK <= 0 {
		topK = def
	}
	return q, topK, true
}

func (s *Server) fail(c *gin.Context, err error, notFound string) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
	case errors.Is(err, retrieval.ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.Logger.Error("request failed", "path", c.FullPath(), "request_id", c.GetString("request_id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
