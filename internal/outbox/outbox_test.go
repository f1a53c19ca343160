package outbox

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/blockmindJS/blockmind/internal/logging"
	"github.com/blockmindJS/blockmind/internal/testutil"
	"github.com/blockmindJS/blockmind/internal/types"
)

type OutboxSuite struct {
	suite.Suite
	transport *testutil.FakeTransport
	outbox    *Outbox
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan error
}

func TestOutboxSuite(t *testing.T) {
	suite.Run(t, new(OutboxSuite))
}

func (s *OutboxSuite) SetupTest() {
	s.transport = testutil.NewFakeTransport()
	s.outbox = New(s.transport, []Kind{
		{Name: types.ChannelCommand, Pace: 0},
		{Name: types.ChannelGlobal, Template: "!", Pace: 0},
		{Name: types.ChannelWhisper, Template: "/msg {target} ", Pace: 0},
		{Name: "slow", Pace: 100 * time.Millisecond},
	}, logging.Discard())
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.done = nil
}

func (s *OutboxSuite) TearDownTest() {
	s.cancel()
	if s.done != nil {
		select {
		case <-s.done:
		case <-time.After(time.Second):
			s.T().Error("outbox did not stop")
		}
	}
}

func (s *OutboxSuite) start() {
	s.done = make(chan error, 1)
	go func() { s.done <- s.outbox.Run(s.ctx) }()
}

func (s *OutboxSuite) waitLines(n int) []string {
	require.Eventually(s.T(), func() bool {
		return len(s.transport.Lines()) >= n
	}, 2*time.Second, 5*time.Millisecond)
	return s.transport.Lines()
}

func (s *OutboxSuite) TestPacingBetweenLines() {
	s.start()
	s.outbox.Enqueue(NewMessage("slow", "a", "b"))

	s.waitLines(2)
	sent := s.transport.Sent()
	require.Equal(s.T(), "a", sent[0].Line)
	require.Equal(s.T(), "b", sent[1].Line)
	require.GreaterOrEqual(s.T(), sent[1].At.Sub(sent[0].At), 100*time.Millisecond)
}

func (s *OutboxSuite) TestPaceOverride() {
	s.start()
	s.outbox.Enqueue(NewMessage(types.ChannelGlobal, "a", "b").WithPace(80 * time.Millisecond))

	s.waitLines(2)
	sent := s.transport.Sent()
	require.GreaterOrEqual(s.T(), sent[1].At.Sub(sent[0].At), 80*time.Millisecond)
}

func (s *OutboxSuite) TestGlobalOrderAcrossKindsAndFraming() {
	s.outbox.Enqueue(NewMessage(types.ChannelGlobal, "hello", "world"))
	s.outbox.Enqueue(NewMessage(types.ChannelWhisper, "psst").To("Steve"))
	s.outbox.Send(types.ChannelCommand, "", "/list")
	require.Equal(s.T(), 3, s.outbox.Len())

	s.start()
	lines := s.waitLines(4)
	require.Equal(s.T(), []string{"!hello", "!world", "/msg Steve psst", "/list"}, lines)
	require.Zero(s.T(), s.outbox.Len())
}

func (s *OutboxSuite) TestUnknownKindDropped() {
	s.start()
	s.outbox.Enqueue(NewMessage("nowhere", "lost"))
	s.outbox.Enqueue(NewMessage(types.ChannelGlobal, "kept"))

	lines := s.waitLines(1)
	require.Equal(s.T(), []string{"!kept"}, lines)
}

func (s *OutboxSuite) TestSendFailureContinues() {
	s.transport.FailOn("!b", errors.New("connection reset"))
	s.start()
	s.outbox.Enqueue(NewMessage(types.ChannelGlobal, "a", "b", "c"))

	lines := s.waitLines(3)
	require.Equal(s.T(), []string{"!a", "!b", "!c"}, lines)
}

func (s *OutboxSuite) TestEnqueueIgnoresEmptyAndCopies() {
	s.outbox.Enqueue(nil)
	s.outbox.Enqueue(NewMessage(types.ChannelGlobal))
	require.Zero(s.T(), s.outbox.Len())

	msg := NewMessage(types.ChannelGlobal, "original")
	s.outbox.Enqueue(msg)
	msg.Lines[0] = "mutated"

	s.start()
	require.Equal(s.T(), []string{"!original"}, s.waitLines(1))
}

func (s *OutboxSuite) TestSecondRunRejected() {
	s.start()
	require.Eventually(s.T(), func() bool {
		s.outbox.mu.Lock()
		defer s.outbox.mu.Unlock()
		return s.outbox.draining
	}, time.Second, 5*time.Millisecond)

	require.ErrorIs(s.T(), s.outbox.Run(context.Background()), ErrAlreadyRunning)
}

func (s *OutboxSuite) TestRunReturnsOnCancel() {
	s.start()
	s.cancel()
	select {
	case err := <-s.done:
		require.NoError(s.T(), err)
		s.done = nil
	case <-time.After(time.Second):
		s.T().Fatal("Run did not return")
	}
}

func (s *OutboxSuite) TestSendAndAwaitReplyResolves() {
	s.start()
	s.transport.OnSend(func(line string) {
		if line == "status" {
			s.transport.EmitText("noise")
			s.transport.EmitText("OK")
		}
	})

	reply, err := s.outbox.SendAndAwaitReply(s.ctx, "status", []*regexp.Regexp{regexp.MustCompile(`^OK$`)}, time.Second)
	require.NoError(s.T(), err)
	require.Equal(s.T(), "OK", reply.Event.RawText)
	require.Equal(s.T(), 0, reply.Pattern)
	require.NotEmpty(s.T(), reply.ID)
	require.Zero(s.T(), s.transport.Subscribers())
	require.Zero(s.T(), s.outbox.PendingReplies())
}

func (s *OutboxSuite) TestSendAndAwaitReplyFirstPatternWins() {
	s.start()
	s.transport.OnSend(func(string) { s.transport.EmitText("There are 3 of a max 50 players online") })

	patterns := []*regexp.Regexp{
		regexp.MustCompile(`There are (\d+)`),
		regexp.MustCompile(`players online`),
	}
	reply, err := s.outbox.SendAndAwaitReply(s.ctx, "/list", patterns, time.Second)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 0, reply.Pattern)
	require.Equal(s.T(), []string{"There are 3", "3"}, reply.Match)
}

func (s *OutboxSuite) TestSendAndAwaitReplyLaterPatternMatches() {
	s.start()
	s.transport.OnSend(func(string) { s.transport.EmitText("Unknown command") })

	patterns := []*regexp.Regexp{
		regexp.MustCompile(`There are (\d+)`),
		regexp.MustCompile(`^Unknown`),
	}
	reply, err := s.outbox.SendAndAwaitReply(s.ctx, "/list", patterns, time.Second)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, reply.Pattern)
}

func (s *OutboxSuite) TestSendAndAwaitReplyTimeout() {
	s.start()
	for range 3 {
		start := time.Now()
		reply, err := s.outbox.SendAndAwaitReply(s.ctx, "status", []*regexp.Regexp{regexp.MustCompile(`^OK$`)}, 50*time.Millisecond)
		require.ErrorIs(s.T(), err, ErrReplyTimeout)
		require.Nil(s.T(), reply)
		require.GreaterOrEqual(s.T(), time.Since(start), 50*time.Millisecond)
	}
	require.Zero(s.T(), s.transport.Subscribers())
	require.Zero(s.T(), s.outbox.PendingReplies())
}

func (s *OutboxSuite) TestSendAndAwaitReplyMatchAfterTimeoutIgnored() {
	_, err := s.outbox.SendAndAwaitReply(s.ctx, "status", []*regexp.Regexp{regexp.MustCompile(`^OK$`)}, 20*time.Millisecond)
	require.ErrorIs(s.T(), err, ErrReplyTimeout)

	require.NotPanics(s.T(), func() { s.transport.EmitText("OK") })
	require.Zero(s.T(), s.transport.Subscribers())
}

func (s *OutboxSuite) TestSendAndAwaitReplyContextCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := s.outbox.SendAndAwaitReply(ctx, "status", []*regexp.Regexp{regexp.MustCompile(`^OK$`)}, time.Minute)
	require.ErrorIs(s.T(), err, context.Canceled)
	require.Zero(s.T(), s.transport.Subscribers())
	require.Zero(s.T(), s.outbox.PendingReplies())
}

func (s *OutboxSuite) TestSendAndAwaitReplyDefaultTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.outbox.SendAndAwaitReply(ctx, "status", nil, 0)
	require.ErrorIs(s.T(), err, context.DeadlineExceeded)
}

func (s *OutboxSuite) TestAddChannelKindAndSetPace() {
	s.outbox.AddChannelKind("trade", "/trade ", -1)
	k, ok := s.outbox.Kind("trade")
	require.True(s.T(), ok)
	require.Equal(s.T(), DefaultPace, k.Pace)
	require.Equal(s.T(), "/trade x", k.Frame("x", ""))

	require.NoError(s.T(), s.outbox.SetPace("trade", time.Second))
	k, _ = s.outbox.Kind("trade")
	require.Equal(s.T(), time.Second, k.Pace)

	require.ErrorIs(s.T(), s.outbox.SetPace("missing", time.Second), ErrUnknownChannelKind)
	require.Error(s.T(), s.outbox.SetPace("trade", -time.Second))

	kinds := s.outbox.Kinds()
	require.Len(s.T(), kinds, 5)
	for i := 1; i < len(kinds); i++ {
		require.Less(s.T(), string(kinds[i-1].Name), string(kinds[i].Name))
	}
}

func (s *OutboxSuite) TestAddedKindUsedByQueue() {
	s.outbox.AddChannelKind("trade", "/trade ", 0)
	s.start()
	s.outbox.Enqueue(NewMessage("trade", "wts diamonds"))
	require.Equal(s.T(), []string{"/trade wts diamonds"}, s.waitLines(1))
}

func TestDefaultKinds(t *testing.T) {
	kinds := DefaultKinds()
	byName := make(map[types.ChannelKind]Kind)
	for _, k := range kinds {
		byName[k.Name] = k
	}
	require.Equal(t, 400*time.Millisecond, byName[types.ChannelCommand].Pace)
	require.Equal(t, 355*time.Millisecond, byName[types.ChannelFaction].Pace)
	require.Equal(t, "!hi", byName[types.ChannelGlobal].Frame("hi", ""))
	require.Equal(t, "hi", byName[types.ChannelLocal].Frame("hi", ""))
	require.Equal(t, "/msg Alex hi", byName[types.ChannelWhisper].Frame("hi", "Alex"))
	require.Equal(t, "/cc hi", byName[types.ChannelFaction].Frame("hi", ""))
}
