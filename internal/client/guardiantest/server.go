// Package guardiantest runs an in-process guardian service for tests. It
// speaks the same JSON wire format as the real one and lets a test script
// pairing progress, check answers, failures and revocation.
package guardiantest

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/client/client"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type session struct {
	transport string
	status    client.PairingStatusResponseBody
}

// Server is a scripted guardian service.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	sessions    map[string]*session
	lastSession string
	revoked     bool

	checkStatus int
	checkDelay  time.Duration
	checkResp   client.CheckResponseBody
	checkRaw    string
	checks      []client.CheckRequestBody

	initStatus int
	polls      int
	requests   []client.CreateRequestBody
}

// New starts a server that allows everything without limits until told
// otherwise. It is closed with t.Cleanup by the caller via Close.
func New() *Server {
	allowed := true
	s := &Server{
		sessions: make(map[string]*session),
		checkResp: client.CheckResponseBody{
			Allowed:    &allowed,
			Activities: map[string]client.ActivityBody{},
		},
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.POST("/pair/:transport/init", s.handleInit)
	e.GET("/pair/:transport/status/:sessionId", s.handleStatus)
	e.POST("/check", s.handleCheck)
	e.POST("/request/createRequest", s.handleCreateRequest)

	s.Server = httptest.NewServer(e)
	return s
}

func (s *Server) handleInit(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.revoked {
		return c.NoContent(http.StatusUnauthorized)
	}
	if s.initStatus != 0 {
		return c.NoContent(s.initStatus)
	}

	var body client.InitPairingBody
	if err := c.Bind(&body); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	transport := c.Param("transport")
	id := uuid.NewString()
	pending := "pending"
	s.sessions[id] = &session{transport: transport, status: client.PairingStatusResponseBody{Status: &pending}}
	s.lastSession = id

	resp := client.InitPairingResponseBody{SessionID: &id, ExpiresIn: 300}
	switch transport {
	case "qr":
		resp.QRPayload = "gophguard://pair?session=" + id
	case "pin":
		resp.PinCode = fmt.Sprintf("%06d", rand.IntN(1_000_000))
	default:
		return c.NoContent(http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStatus(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.polls++
	if s.revoked {
		return c.NoContent(http.StatusUnauthorized)
	}
	sess, ok := s.sessions[c.Param("sessionId")]
	if !ok || sess.transport != c.Param("transport") {
		return c.NoContent(http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, sess.status)
}

func (s *Server) handleCheck(c echo.Context) error {
	var body client.CheckRequestBody
	if err := c.Bind(&body); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	s.mu.Lock()
	s.checks = append(s.checks, body)
	delay := s.checkDelay
	revoked, status := s.revoked, s.checkStatus
	resp, raw := s.checkResp, s.checkRaw
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	switch {
	case revoked:
		return c.NoContent(http.StatusUnauthorized)
	case status != 0:
		return c.NoContent(status)
	case raw != "":
		return c.JSONBlob(http.StatusOK, []byte(raw))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCreateRequest(c echo.Context) error {
	var body client.CreateRequestBody
	if err := c.Bind(&body); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.revoked {
		return c.NoContent(http.StatusUnauthorized)
	}
	s.requests = append(s.requests, body)
	id := uuid.NewString()
	return c.JSON(http.StatusOK, client.CreateRequestResponseBody{RequestID: &id})
}
