package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KimApps/ether/internal/service"
	"github.com/KimApps/ether/pkg/withdraw"
)

// Server exposes the withdrawal and signing flows over HTTP. Flow intents map
// to POST endpoints; state snapshots and the event log are polled with GET.
type Server struct {
	router     *gin.Engine
	orch       *withdraw.Orchestrator
	dispatcher *service.Dispatcher
	events     *EventLog
	audit      *service.AuditConsumer

	// baseCtx bounds background withdrawal attempts, which outlive the
	// request that started them.
	baseCtx context.Context
}

func NewServer(
	baseCtx context.Context,
	orch *withdraw.Orchestrator,
	dispatcher *service.Dispatcher,
	events *EventLog,
	audit *service.AuditConsumer,
	environment string,
) *Server {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router:     gin.New(),
		orch:       orch,
		dispatcher: dispatcher,
		events:     events,
		audit:      audit,
		baseCtx:    baseCtx,
	}
	s.router.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

// Router returns the configured handler for the HTTP listener.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1")

	v1.GET("/withdrawals", s.handleWithdrawState)
	v1.GET("/withdrawals/events", s.handleWithdrawEvents)
	v1.POST("/withdrawals/amount", s.handleSetAmount)
	v1.POST("/withdrawals", s.handleWithdraw)

	v1.GET("/signing", s.handleSigningState)
	v1.GET("/signing/events", s.handleSigningEvents)
	v1.POST("/signing/local", s.handleSignLocally)
	v1.POST("/signing/cancel", s.handleSigningCancel)
	v1.POST("/signing/connect", s.handleConnectWallet)
	v1.POST("/signing/pair", s.handlePair)
	v1.POST("/signing/approve", s.handleApprove)
	v1.POST("/signing/reject", s.handleReject)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleWithdrawState(c *gin.Context) {
	c.JSON(http.StatusOK, s.orch.State())
}

func (s *Server) handleWithdrawEvents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": s.events.Recent()})
}

type setAmountRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleSetAmount(c *gin.Context) {
	var req setAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.orch.SetAmount(req.Amount)
	c.JSON(http.StatusOK, s.orch.State())
}

func (s *Server) handleWithdraw(c *gin.Context) {
	go s.orch.Withdraw(s.baseCtx)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (s *Server) handleSigningState(c *gin.Context) {
	session := s.dispatcher.Active()
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no signing in progress"})
		return
	}
	c.JSON(http.StatusOK, session.State())
}

func (s *Server) handleSigningEvents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": s.audit.Recent()})
}

func (s *Server) handleSignLocally(c *gin.Context) {
	session := s.dispatcher.Active()
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no signing in progress"})
		return
	}
	session.SignLocally(c.Request.Context())
	c.JSON(http.StatusOK, session.State())
}

func (s *Server) handleSigningCancel(c *gin.Context) {
	session := s.dispatcher.Active()
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no signing in progress"})
		return
	}
	session.Cancel()
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (s *Server) handleConnectWallet(c *gin.Context) {
	session := s.dispatcher.Active()
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no signing in progress"})
		return
	}
	session.ConnectWallet()
	c.JSON(http.StatusOK, session.State())
}

type pairRequest struct {
	URI string `json:"uri" binding:"required"`
}

func (s *Server) handlePair(c *gin.Context) {
	session := s.dispatcher.Active()
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no signing in progress"})
		return
	}
	var req pairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session.Pair(req.URI)
	c.JSON(http.StatusOK, session.State())
}

func (s *Server) handleApprove(c *gin.Context) {
	session := s.dispatcher.Active()
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no signing in progress"})
		return
	}
	session.ApprovePending(c.Request.Context())
	c.JSON(http.StatusOK, session.State())
}

func (s *Server) handleReject(c *gin.Context) {
	session := s.dispatcher.Active()
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no signing in progress"})
		return
	}
	session.RejectPending(c.Request.Context())
	c.JSON(http.StatusOK, session.State())
}
