// Package runtime holds the room state machine: who is connected, who is in
// the room under which name, and how messages fan out to members.
// It owns no network or storage code; both are reached through contract interfaces.
package runtime

import (
	"chat-room/contract"
	"chat-room/domain"
	"chat-room/domain/event"
	"chat-room/errors"
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
)

// session is the per-connection state.
// mu serializes the operations of one connection; state, name, replaying and
// pending are guarded by the coordinator mutex.
// While replaying, live messages for the session are queued in pending so the
// history always reaches a joiner before any live traffic.
type session struct {
	mu        sync.Mutex
	id        string
	name      string
	state     domain.SessionState
	replaying bool
	pending   []*queuedMessage
}

// queuedMessage is a live message held back for members replaying their history.
// appending is set under the coordinator mutex once its store append has begun.
type queuedMessage struct {
	message   domain.Message
	appending bool
}

// Coordinator is the single room of the process.
// Its handlers are safe to call from one goroutine per connection.
type Coordinator struct {
	mu            sync.Mutex
	log           *slog.Logger
	roomName      domain.RoomName
	maxNameLength int
	sessions      map[string]*session
	directory     *NameDirectory
	sender        contract.Sender
	store         contract.MessageStore
	sendTimeout   time.Duration
	storeTimeout  time.Duration
}

func NewCoordinator(log *slog.Logger, sender contract.Sender, store contract.MessageStore,
	roomName domain.RoomName, maxNameLength int, sendTimeout, storeTimeout time.Duration) *Coordinator {
	if roomName == "" {
		roomName = domain.DefaultRoomName
	}
	if maxNameLength <= 0 {
		maxNameLength = domain.DefaultMaxNameLength
	}
	return &Coordinator{
		log:           log,
		roomName:      roomName,
		maxNameLength: maxNameLength,
		sessions:      make(map[string]*session),
		directory:     NewNameDirectory(),
		sender:        sender,
		store:         store,
		sendTimeout:   sendTimeout,
		storeTimeout:  storeTimeout,
	}
}

func (c *Coordinator) RoomName() domain.RoomName {
	return c.roomName
}

// Start begins from an empty room.
func (c *Coordinator) Start(_ context.Context) error {
	c.Reset()
	c.log.Info("Room opened", "room", c.roomName)
	return nil
}

// Stop forgets every session and claimed name.
func (c *Coordinator) Stop() {
	c.Reset()
	c.log.Info("Room closed", "room", c.roomName)
}

// Reset clears sessions, names and membership.
// Sessions still referenced by in-flight handlers are marked gone so they cannot join.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sessions {
		s.state = domain.GONE
		s.name = ""
		s.replaying = false
		s.pending = nil
	}
	c.sessions = make(map[string]*session)
	c.directory.Reset()
}

// OnConnect registers a new connection in the Connected state.
func (c *Coordinator) OnConnect(_ context.Context, connectionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[connectionID]; ok {
		c.log.Debug("Connection already registered", "connection_id", connectionID)
		return
	}
	c.sessions[connectionID] = &session{id: connectionID, state: domain.CONNECTED}
	c.log.Debug("Connection opened", "connection_id", connectionID)
}

// OnJoin claims a display name for the connection, acknowledges it and replays the history.
// Duplicate joins and joins from unknown connections are ignored.
func (c *Coordinator) OnJoin(ctx context.Context, connectionID, requestedName string) {
	s := c.lookup(connectionID)
	if s == nil {
		c.log.Debug("Join from unknown connection ignored", "connection_id", connectionID)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if state := c.stateOf(s); state != domain.CONNECTED {
		c.log.Debug("Join ignored", "connection_id", connectionID, "state", state)
		return
	}

	name := strings.TrimSpace(requestedName)
	if name == "" || utf8.RuneCountInString(name) > c.maxNameLength {
		c.send(ctx, connectionID, event.Failure{Reason: errors.ErrInvalidName.Error()})
		return
	}

	if !c.claim(s, name) {
		c.log.Info("Join rejected", "connection_id", connectionID, "name", name)
		c.send(ctx, connectionID, event.Failure{Reason: errors.ErrNameTaken.Error()})
		return
	}
	c.log.Info("Participant joined", "connection_id", connectionID, "name", name)

	c.send(ctx, connectionID, event.Joined{RoomName: c.roomName})
	replayed, overlap := c.replay(ctx, s)
	c.flushPending(ctx, s, replayed, overlap)
}

// OnMessage broadcasts the message to every member, sender included, then persists it.
// Messages from connections that are not in the room are dropped silently.
func (c *Coordinator) OnMessage(ctx context.Context, connectionID string, message domain.Message) {
	s := c.lookup(connectionID)
	if s == nil {
		c.log.Debug("Message from unknown connection ignored", "connection_id", connectionID)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	members, message, queued, ok := c.snapshot(s, message)
	if !ok {
		c.log.Debug("Message from non member ignored", "connection_id", connectionID)
		return
	}

	posted := event.MessagePosted{Message: message}
	for _, member := range members {
		c.send(ctx, member, posted)
	}

	if queued != nil {
		c.mu.Lock()
		queued.appending = true
		c.mu.Unlock()
	}

	storeCtx, cancel := withTimeout(ctx, c.storeTimeout)
	defer cancel()
	if err := c.store.Append(storeCtx, message); err != nil {
		// Already delivered live: the message will be missing from later replays.
		c.log.Error("Failed to persist message", "connection_id", connectionID, "error", err)
	}
}

// OnLeave removes the connection from the room and frees its name.
// Leaving twice, or leaving without having joined, is a no-op.
func (c *Coordinator) OnLeave(_ context.Context, connectionID string) {
	s := c.lookup(connectionID)
	if s == nil {
		return
	}
	// Waits for an in-flight join of the same connection to finish.
	s.mu.Lock()
	defer s.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if s.state == domain.IN_ROOM {
		c.directory.Release(connectionID)
		c.log.Info("Participant left", "connection_id", connectionID, "name", s.name)
	}
	s.state = domain.GONE
	s.name = ""
	s.replaying = false
	s.pending = nil
	if c.sessions[connectionID] == s {
		delete(c.sessions, connectionID)
	}
}

// Members returns the participants currently in the room, ordered by connection id.
func (c *Coordinator) Members() []domain.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo.Map(c.directory.Members(), func(id string, _ int) domain.Participant {
		return domain.Participant{ConnectionID: id, DisplayName: c.sessions[id].name}
	})
}

func (c *Coordinator) SessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// State reports the protocol state of a connection; unknown connections are Gone.
func (c *Coordinator) State(connectionID string) domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[connectionID]
	if !ok {
		return domain.GONE
	}
	return s.state
}

func (c *Coordinator) lookup(connectionID string) *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[connectionID]
}

func (c *Coordinator) stateOf(s *session) domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.state
}

// claim moves a Connected session into the room.
// The name claim and the state change share one critical section with Reset and snapshot.
func (c *Coordinator) claim(s *session, name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.state != domain.CONNECTED || c.sessions[s.id] != s {
		return false
	}
	if !c.directory.TryClaim(s.id, name) {
		return false
	}
	s.name = name
	s.state = domain.IN_ROOM
	s.replaying = true
	return true
}

// snapshot returns the members a message from s must reach now and the message,
// signed with the display name if it had no sender, or false if s is not in the room.
// Members still replaying their history get the message queued instead; the
// returned queuedMessage is nil when nobody is replaying.
func (c *Coordinator) snapshot(s *session, message domain.Message) ([]string, domain.Message, *queuedMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.state != domain.IN_ROOM {
		return nil, message, nil, false
	}
	if message.Sender == "" {
		message.Sender = s.name
	}
	var queued *queuedMessage
	members := c.directory.Members()
	live := make([]string, 0, len(members))
	for _, id := range members {
		member, ok := c.sessions[id]
		if ok && member.replaying {
			if queued == nil {
				queued = &queuedMessage{message: message}
			}
			member.pending = append(member.pending, queued)
			continue
		}
		live = append(live, id)
	}
	return live, message, queued, true
}

// replay sends the stored history to s and returns it, along with the queued
// messages whose append had begun when the read returned: only those can also
// be part of the history.
func (c *Coordinator) replay(ctx context.Context, s *session) ([]domain.Message, map[*queuedMessage]bool) {
	storeCtx, cancel := withTimeout(ctx, c.storeTimeout)
	history, err := c.store.ListAll(storeCtx)
	cancel()
	if err != nil {
		c.log.Error("History unavailable, replay skipped", "connection_id", s.id, "error", err)
		return nil, nil
	}

	c.mu.Lock()
	overlap := make(map[*queuedMessage]bool)
	for _, queued := range s.pending {
		if queued.appending {
			overlap[queued] = true
		}
	}
	c.mu.Unlock()

	for _, message := range history {
		c.send(ctx, s.id, event.MessagePosted{Message: message})
	}
	return history, overlap
}

// flushPending delivers the messages queued during the replay in arrival order,
// then switches the session to live delivery.
// A queued message that may have been stored before the read is dropped when
// the replay already carried it.
func (c *Coordinator) flushPending(ctx context.Context, s *session, replayed []domain.Message, overlap map[*queuedMessage]bool) {
	unmatched := replayed
	for {
		c.mu.Lock()
		batch := s.pending
		s.pending = nil
		if len(batch) == 0 || s.state != domain.IN_ROOM {
			s.replaying = false
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		for _, queued := range batch {
			if overlap[queued] {
				if i := lastEqual(unmatched, queued.message); i >= 0 {
					unmatched = append(unmatched[:i:i], unmatched[i+1:]...)
					continue
				}
			}
			c.send(ctx, s.id, event.MessagePosted{Message: queued.message})
		}
	}
}

func lastEqual(messages []domain.Message, target domain.Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Equal(target) {
			return i
		}
	}
	return -1
}

// send never fails the caller: a recipient that cannot be reached is only logged.
func (c *Coordinator) send(ctx context.Context, connectionID string, e event.Event) {
	sendCtx, cancel := withTimeout(ctx, c.sendTimeout)
	defer cancel()
	if err := c.sender.SendTo(sendCtx, connectionID, e); err != nil {
		c.log.Warn("Failed to deliver event",
			"connection_id", connectionID,
			"kind", e.Kind(),
			"error", err)
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
