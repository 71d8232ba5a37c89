package e2e

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// The scenario needs identities 1, 2 and 3 provisioned in the relay's
// directory, with 1 and 2 sharing conversation 10.
type testCallFlowSuite struct {
	BaseRelaySuite
}

func TestCallFlowSuite(t *testing.T) {
	suite.Run(t, &testCallFlowSuite{})
}

func (s *testCallFlowSuite) TestTypingAndCallFlow() {
	alice := s.Connect("Connecting caller", 1)
	bob := s.Connect("Connecting callee", 2)

	s.Run("Step 1: Typing reaches the other participant only", func() {
		alice.Send(`{"type":"typing","conversationId":10,"isTyping":true}`)

		frame := bob.Expect("typing")
		s.Require().Equal(float64(1), frame["identityId"])
		s.Require().Equal(true, frame["isTyping"])
	})

	s.Run("Step 2: Ring and accept", func() {
		alice.Send(`{"type":"call_request","targetIdentityId":2,"callType":"video"}`)

		frame := bob.Expect("call_incoming")
		s.Require().Equal(float64(1), frame["callerIdentityId"])
		s.Require().Equal("video", frame["callType"])

		bob.Send(`{"type":"call_accepted","targetIdentityId":1}`)
		alice.Expect("call_accepted")
	})

	s.Run("Step 3: Opaque signaling both ways", func() {
		alice.Send(`{"type":"call_signal","targetIdentityId":2,"signal":{"sdp":"offer"}}`)
		frame := bob.Expect("call_signal")
		s.Require().Equal("offer", frame["signal"].(map[string]any)["sdp"])

		bob.Send(`{"type":"call_signal","targetIdentityId":1,"signal":{"sdp":"answer"}}`)
		frame = alice.Expect("call_signal")
		s.Require().Equal("answer", frame["signal"].(map[string]any)["sdp"])
	})

	s.Run("Step 4: A busy third party is refused", func() {
		carol := s.Connect("Connecting a third caller", 3)
		carol.Send(`{"type":"call_request","targetIdentityId":2,"callType":"audio"}`)

		frame := carol.Expect("call_error")
		s.Require().Equal("busy", frame["reason"])
		carol.Close()
	})

	s.Run("Step 5: Hang up", func() {
		alice.Send(`{"type":"call_ended","targetIdentityId":2}`)
		bob.Expect("call_ended")

		// Nothing else is in flight for the caller
		alice.ExpectSilence(500 * time.Millisecond)
	})
}
