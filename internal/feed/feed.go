package feed

import (
	"context"
	"time"
)

type EventType string

const (
	EvtPlayerJoined  EventType = "PlayerJoined"
	EvtPlayerLeft    EventType = "PlayerLeft"
	EvtPlayerEvicted EventType = "PlayerEvicted"
	EvtMatchInit     EventType = "MatchInit"
	EvtMatchStart    EventType = "MatchStart"
	EvtMatchEnded    EventType = "MatchEnded"
)

// Event is a room lifecycle transition as seen by observers.
type Event struct {
	Type    EventType
	Room    int32
	Player  int32
	MatchID string
	Winner  int32
	At      time.Time
}

// History is how many recent events a new subscriber is replayed.
const History = 16

type Msg interface{ isFeedMsg() }

type Publish struct {
	Event Event
}

func (Publish) isFeedMsg() {}

type Subscribe struct {
	ClientID string
	Outbox   chan Event // where this subscriber wants to receive events
}

func (Subscribe) isFeedMsg() {}

type Unsubscribe struct{ ClientID string }

func (Unsubscribe) isFeedMsg() {}

type Shutdown struct{}

func (Shutdown) isFeedMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isFeedMsg() {}

type View struct {
	Room       int32
	Version    int
	NumClients int
	Recent     []Event
}

// Feed fans one room's events out to its subscribers. All state is owned by
// the loop goroutine; callers talk to it through Inbox.
type Feed struct {
	room    int32
	inbox   chan Msg
	version int
	recent  []Event
	clients map[string]chan Event
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewFeed(parent context.Context, room int32) *Feed {
	ctx, cancel := context.WithCancel(parent)

	f := &Feed{
		room:    room,
		inbox:   make(chan Msg, 64),
		clients: make(map[string]chan Event),
		ctx:     ctx,
		cancel:  cancel,
	}

	go f.loop()
	return f
}

func (f *Feed) loop() {
	for {
		select {
		case <-f.ctx.Done():
			f.shutdown()
			return

		case m := <-f.inbox:
			switch msg := m.(type) {
			case Subscribe:
				// Register subscriber + replay what it missed
				f.clients[msg.ClientID] = msg.Outbox
				for _, ev := range f.recent {
					select {
					case msg.Outbox <- ev:
					default:
					}
				}

			case Unsubscribe:
				if ch, ok := f.clients[msg.ClientID]; ok {
					close(ch)
					delete(f.clients, msg.ClientID)
				}

			case Publish:
				f.version++
				f.recent = append(f.recent, msg.Event)
				if len(f.recent) > History {
					f.recent = f.recent[len(f.recent)-History:]
				}
				f.broadcast(msg.Event)

			case GetState:
				msg.Reply <- View{
					Room:       f.room,
					Version:    f.version,
					NumClients: len(f.clients),
					Recent:     append([]Event(nil), f.recent...),
				}

			case Shutdown:
				f.shutdown()
				return
			}
		}
	}
}

func (f *Feed) shutdown() {
	for id, ch := range f.clients {
		close(ch) // Tell subscriber no more events
		delete(f.clients, id)
	}
	f.cancel()
}

func (f *Feed) broadcast(ev Event) {
	for id, ch := range f.clients {
		select {
		case ch <- ev:
			//ok
		default:
			// Subscriber is slow/full - drop them.
			close(ch)
			delete(f.clients, id)
		}
	}
}

// Inbox is how the hub, the server and the websocket layer talk to the feed.
func (f *Feed) Inbox() chan<- Msg { return f.inbox }

// Done is closed once the feed has shut down.
func (f *Feed) Done() <-chan struct{} { return f.ctx.Done() }
