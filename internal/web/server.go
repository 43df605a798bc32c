// Package web provides the REST + websocket driver for simdex: the
// same add/check/list/delete operations the CLI exposes, reachable
// over HTTP, plus a live event feed for corpus changes.
package web

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/simdex/simdex/internal/orchestrator"
)

// Server is the REST + websocket driver wrapping an orchestrator.Index.
type Server struct {
	app *fiber.App
	idx *orchestrator.Index

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]bool
	broadcast chan []byte

	logger *slog.Logger
}

// NewServer builds a Server exposing idx's operations over HTTP.
func NewServer(idx *orchestrator.Index) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		app:       app,
		idx:       idx,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 100),
		logger:    slog.Default(),
	}

	s.setupRoutes()
	go s.handleBroadcast()

	return s
}

func (s *Server) setupRoutes() {
	s.app.Use(cors.New())

	api := s.app.Group("/api")

	api.Get("/documents", s.handleList)
	api.Post("/documents", s.handleAdd)
	api.Delete("/documents/:id", s.handleDelete)
	api.Post("/check", s.handleCheck)
	api.Get("/stats", s.handleStats)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws/events", websocket.New(s.handleEvents))
}

type addRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Author   string `json:"author"`
	Filename string `json:"filename"`
	Category string `json:"category"`
}

func (s *Server) handleAdd(c *fiber.Ctx) error {
	var req addRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if req.Title == "" || req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title and content are required"})
	}

	id, err := s.idx.Add(orchestrator.AddInput{
		Title:    req.Title,
		Content:  req.Content,
		Author:   req.Author,
		Filename: req.Filename,
		Category: req.Category,
	})
	if err != nil {
		return s.errResponse(c, err)
	}

	s.broadcastEvent("document_added", fiber.Map{"id": id, "title": req.Title})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

type checkRequest struct {
	Content string `json:"content"`
	TopK    int    `json:"topK"`
}

func (s *Server) handleCheck(c *fiber.Ctx) error {
	var req checkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "content is required"})
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}

	rep, err := s.idx.Check(req.Content, topK)
	if err != nil {
		return s.errResponse(c, err)
	}

	s.broadcastEvent("check_completed", fiber.Map{"uniquenessScore": rep.UniquenessScore, "candidates": rep.CandidatesFound})
	return c.JSON(rep)
}

func (s *Server) handleList(c *fiber.Ctx) error {
	var filter *orchestrator.ListFilter
	if cat := c.Query("category"); cat != "" {
		filter = &orchestrator.ListFilter{Category: cat}
	}

	docs, err := s.idx.List(filter)
	if err != nil {
		return s.errResponse(c, err)
	}
	return c.JSON(docs)
}

func (s *Server) handleDelete(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid document id"})
	}

	ok, err := s.idx.Delete(id)
	if err != nil {
		return s.errResponse(c, err)
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "document not found"})
	}

	s.broadcastEvent("document_deleted", fiber.Map{"id": id})
	return c.JSON(fiber.Map{"status": "deleted"})
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	stats, err := s.idx.Stats()
	if err != nil {
		return s.errResponse(c, err)
	}
	return c.JSON(stats)
}

// errResponse maps an orchestrator error to an HTTP status, mirroring
// the CLI's exit-code contract: store errors are the server's fault.
func (s *Server) errResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusBadRequest
	if isStoreErr(err) {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func isStoreErr(err error) bool {
	for {
		if err == orchestrator.ErrStore {
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
		if err == nil {
			return false
		}
	}
}

func (s *Server) handleEvents(c *websocket.Conn) {
	s.clientsMu.Lock()
	s.clients[c] = true
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c)
		s.clientsMu.Unlock()
		c.Close()
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) handleBroadcast() {
	for msg := range s.broadcast {
		s.clientsMu.Lock()
		for client := range s.clients {
			if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
				client.Close()
				delete(s.clients, client)
			}
		}
		s.clientsMu.Unlock()
	}
}

func (s *Server) broadcastEvent(kind string, data interface{}) {
	payload, err := json.Marshal(fiber.Map{"type": kind, "data": data})
	if err != nil {
		s.logger.Warn("failed to marshal websocket event", "kind", kind, "error", err)
		return
	}

	select {
	case s.broadcast <- payload:
	default:
		s.logger.Warn("websocket broadcast channel full, dropping event", "kind", kind)
	}
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error {
	s.logger.Info("web driver starting", "addr", addr)
	return s.app.Listen(addr)
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	return s.app.Shutdown()
}
