package e2e

import (
	"chat-hub/domain"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type chatScenarioSuite struct {
	BaseHubSuite
}

func TestChatScenarioSuite(t *testing.T) {
	suite.Run(t, &chatScenarioSuite{})
}

func (s *chatScenarioSuite) TestPublicRoomWithMention() {
	run := uuid.NewString()[:8]
	alice := domain.User{ID: "alice-" + run, Name: "Alice", Handle: "alice" + run}
	bob := domain.User{ID: "bob-" + run, Name: "Bob", Handle: "bob" + run}

	s.Step("Step 0: Hub reports serving", func() {
		s.WithHealth(func(ctx context.Context, client healthpb.HealthClient) {
			resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
			s.Require().NoError(err)
			s.Require().Equal(healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
		})
	})

	var room domain.Room
	s.Step("Step 1: Alice creates a public room", func() {
		status := s.Post(alice, "/api/rooms", map[string]any{"name": "e2e-" + run}, &room)
		s.Require().Equal(http.StatusCreated, status)
	})

	aliceConn := s.Dial(alice)
	defer func() { _ = aliceConn.Close() }()
	bobConn := s.Dial(bob)
	defer func() { _ = bobConn.Close() }()

	s.Step("Step 2: Alice joins, Bob stays outside", func() {
		s.Require().NoError(aliceConn.WriteJSON(map[string]string{"op": "join", "requestId": "j1", "roomId": room.ID}))
		s.Expect(aliceConn, "UserJoinedRoom")
	})

	s.Step("Step 3: Alice mentions Bob", func() {
		s.Require().NoError(aliceConn.WriteJSON(map[string]any{
			"op": "send", "requestId": "s1", "roomId": room.ID,
			"content": "hi @" + bob.Handle,
		}))
		var received domain.Message
		s.Require().NoError(json.Unmarshal(s.Expect(aliceConn, "MessageReceived").Data, &received))
		s.Require().Equal([]string{bob.ID}, received.Mentions)

		var mentioned domain.Message
		s.Require().NoError(json.Unmarshal(s.Expect(bobConn, "MentionReceived").Data, &mentioned))
		s.Require().Equal(received.ID, mentioned.ID)
	})

	s.Step("Step 4: Closing is clean", func() {
		s.Require().NoError(bobConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	})
}
