package e2e

import (
	"bytes"
	"chat-hub/auth"
	"chat-hub/domain"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Frame is what the hub pushes on a websocket.
type Frame struct {
	Event string          `json:"event"`
	Group string          `json:"group"`
	Data  json.RawMessage `json:"data"`
}

// BaseHubSuite talks to a hub started outside of the test process.
type BaseHubSuite struct {
	suite.Suite
	Config Config
	tokens *auth.TokenManager
}

// SetupSuite loads the environment configuration before running scenarios
func (s *BaseHubSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.HubAddr == "" || s.Config.JWTSecret == "" {
		s.T().Skip("HUB_ADDR and JWT_SECRET are required for end-to-end scenarios")
	}
	s.tokens = auth.NewTokenManager(s.Config.JWTSecret, time.Hour)
}

// Step prints a colorized header before running fn as a subtest
func (s *BaseHubSuite) Step(name string, fn func()) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
	s.Run(name, fn)
}

func (s *BaseHubSuite) Token(user domain.User) string {
	token, err := s.tokens.Issue(user)
	s.Require().NoError(err)
	return token
}

func (s *BaseHubSuite) Dial(user domain.User) *websocket.Conn {
	url := fmt.Sprintf("ws://%s/ws?token=%s", s.Config.HubAddr, s.Token(user))
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err, "Failed to open websocket at "+s.Config.HubAddr)
	return conn
}

// Post sends an authenticated JSON request to the REST surface.
func (s *BaseHubSuite) Post(user domain.User, path string, body, out any) int {
	payload, err := json.Marshal(body)
	s.Require().NoError(err)
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("http://%s%s", s.Config.HubAddr, path), bytes.NewReader(payload))
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+s.Token(user))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil && resp.StatusCode < 300 {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// Expect reads frames until the named event arrives.
func (s *BaseHubSuite) Expect(conn *websocket.Conn, event string) Frame {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	for {
		var frame Frame
		s.Require().NoError(conn.ReadJSON(&frame), "waiting for "+event)
		if s.Config.DebugJSON {
			s.T().Logf("FRAME %s %s", frame.Event, string(frame.Data))
		}
		if frame.Event == event {
			return frame
		}
	}
}

// WithHealth provides a gRPC health client when HEALTH_ADDR is set.
func (s *BaseHubSuite) WithHealth(fn func(ctx context.Context, client healthpb.HealthClient)) {
	if s.Config.HealthAddr == "" {
		s.T().Skip("HEALTH_ADDR not set")
	}
	conn, err := grpc.NewClient(s.Config.HealthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err, "Failed to connect to gRPC server at "+s.Config.HealthAddr)
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fn(ctx, healthpb.NewHealthClient(conn))
}
