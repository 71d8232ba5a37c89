package e2e

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/olekukonko/tablewriter"
	"github.com/stretchr/testify/suite"

	"campus-relay/auth"
	"campus-relay/domain"
)

// BaseRelaySuite connects authenticated WebSocket clients to a running
// relay and records every exchanged frame for the final summary table.
type BaseRelaySuite struct {
	suite.Suite
	Config Config
	tokens *auth.TokenManager

	mu      sync.Mutex
	traffic [][]string
}

// SetupSuite loads the environment configuration before running tests.
// Without a relay address the whole suite is skipped, so it is safe in
// the regular unit test run.
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.RelayAddr == "" {
		s.T().Skip("RELAY_ADDR not set, skipping end-to-end suite")
	}
	s.Require().NotEmpty(s.Config.AuthSecret, "AUTH_SECRET is required to mint connection tokens")
	s.tokens = auth.NewTokenManager([]byte(s.Config.AuthSecret), "campus-relay", time.Hour)
}

// TearDownSuite prints the recorded traffic, one row per frame.
func (s *BaseRelaySuite) TearDownSuite() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.traffic) == 0 {
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Identity", "Direction", "Type", "Frame"})
	for _, row := range s.traffic {
		table.Append(row)
	}
	table.Render()
}

// Connect dials the relay as identityID, with a colorized header in the
// logs marking the step.
func (s *BaseRelaySuite) Connect(name string, identityID domain.IdentityID) *RelayClient {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	token, err := s.tokens.Generate(identityID, domain.RoleStudent)
	s.Require().NoError(err)

	url := fmt.Sprintf("ws://%s/ws?token=%s", s.Config.RelayAddr, token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err, "Failed to connect to relay at "+s.Config.RelayAddr)

	client := &RelayClient{suite: s, identityID: identityID, conn: conn}
	s.T().Cleanup(client.Close)
	return client
}

// RelayClient is one authenticated connection of the suite.
type RelayClient struct {
	suite      *BaseRelaySuite
	identityID domain.IdentityID
	conn       *websocket.Conn
	closeOnce  sync.Once
}

func (c *RelayClient) Close() {
	c.closeOnce.Do(func() { _ = c.conn.Close() })
}

// Send writes one frame and records it.
func (c *RelayClient) Send(frame string) {
	c.suite.Require().NoError(c.conn.WriteMessage(websocket.TextMessage, []byte(frame)))
	c.record("send", []byte(frame))
}

// Expect reads the next frame and asserts its type.
func (c *RelayClient) Expect(frameType string) map[string]any {
	c.suite.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	_, raw, err := c.conn.ReadMessage()
	c.suite.Require().NoError(err, "identity %d expected a %q frame", c.identityID, frameType)
	c.record("recv", raw)

	var frame map[string]any
	c.suite.Require().NoError(json.Unmarshal(raw, &frame))
	c.suite.Require().Equal(frameType, frame["type"],
		"identity %d received an unexpected frame: %s", c.identityID, raw)
	return frame
}

// ExpectSilence asserts that no frame arrives within the window.
func (c *RelayClient) ExpectSilence(window time.Duration) {
	c.suite.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(window)))
	_, raw, err := c.conn.ReadMessage()
	if err == nil {
		c.suite.FailNowf("unexpected frame", "identity %d received: %s", c.identityID, raw)
	}
	c.suite.Require().True(os.IsTimeout(err) || websocket.IsUnexpectedCloseError(err),
		"expected a read timeout, got: %v", err)
}

func (c *RelayClient) record(direction string, raw []byte) {
	var head struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(raw, &head)

	if c.suite.Config.DebugFrames {
		line := fmt.Sprintf("WS identity=%d %s %s", c.identityID, direction, raw)
		if c.suite.Config.Colours && direction == "recv" {
			line = color.New(color.FgCyan).Render(line)
		}
		c.suite.T().Log(line)
	}

	c.suite.mu.Lock()
	defer c.suite.mu.Unlock()
	c.suite.traffic = append(c.suite.traffic, []string{
		fmt.Sprintf("%d", c.identityID), direction, head.Type, string(raw),
	})
}
