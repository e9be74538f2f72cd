package hub

import (
	"context"

	"github.com/colibrishin/dx-api-sub000/internal/feed"
)

type HubMsg interface{ isHubMsg() }

type CreateFeed struct {
	Room  int32
	Reply chan *feed.Feed
}

type GetFeed struct {
	Room  int32
	Reply chan *feed.Feed
}

type EnsureFeed struct {
	Room  int32
	Reply chan *feed.Feed
}

type RemoveFeed struct {
	Room int32
}

type ListFeeds struct {
	Reply chan []int32
}

type ShutdownHub struct{}

// Hub owns one feed per room that has ever produced an event.
type Hub struct {
	inbox  chan HubMsg
	feeds  map[int32]*feed.Feed
	ctx    context.Context
	cancel context.CancelFunc
}

func (CreateFeed) isHubMsg()  {}
func (GetFeed) isHubMsg()     {}
func (EnsureFeed) isHubMsg()  {}
func (RemoveFeed) isHubMsg()  {}
func (ListFeeds) isHubMsg()   {}
func (ShutdownHub) isHubMsg() {}

func NewHub(parent context.Context) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		feeds:  make(map[int32]*feed.Feed),
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateFeed:
				if f := h.feeds[msg.Room]; f != nil {
					msg.Reply <- f
					break
				}
				f := feed.NewFeed(h.ctx, msg.Room)
				h.feeds[msg.Room] = f
				msg.Reply <- f

			case GetFeed:
				msg.Reply <- h.feeds[msg.Room] // May be nil

			case EnsureFeed:
				if f := h.feeds[msg.Room]; f != nil {
					msg.Reply <- f
					break
				}

				f := feed.NewFeed(h.ctx, msg.Room)
				h.feeds[msg.Room] = f
				msg.Reply <- f

			case RemoveFeed:
				if f := h.feeds[msg.Room]; f != nil {
					f.Inbox() <- feed.Shutdown{}
					delete(h.feeds, msg.Room)
				}

			case ListFeeds:
				rooms := make([]int32, 0, len(h.feeds))
				for id := range h.feeds {
					rooms = append(rooms, id)
				}
				msg.Reply <- rooms

			case ShutdownHub:
				for _, f := range h.feeds {
					f.Inbox() <- feed.Shutdown{}
				}
				clear(h.feeds)
				h.cancel()
			}

		}
	}
}

// Feed asks the hub for room's feed, creating it when create is set. It
// returns nil if the hub has shut down or ctx ends first.
func (h *Hub) Feed(ctx context.Context, room int32, create bool) *feed.Feed {
	reply := make(chan *feed.Feed, 1)
	var msg HubMsg = GetFeed{Room: room, Reply: reply}
	if create {
		msg = EnsureFeed{Room: room, Reply: reply}
	}

	select {
	case h.inbox <- msg:
	case <-h.ctx.Done():
		return nil
	case <-ctx.Done():
		return nil
	}
	select {
	case f := <-reply:
		return f
	case <-h.ctx.Done():
		return nil
	case <-ctx.Done():
		return nil
	}
}

// Publish delivers ev to its room's feed, creating the feed on first use.
func (h *Hub) Publish(ctx context.Context, ev feed.Event) {
	f := h.Feed(ctx, ev.Room, true)
	if f == nil {
		return
	}
	select {
	case f.Inbox() <- feed.Publish{Event: ev}:
	case <-f.Done():
	case <-ctx.Done():
	}
}

// Remove shuts room's feed down once the room is gone. Subscribers see
// their channel closed after the last event.
func (h *Hub) Remove(room int32) {
	select {
	case h.inbox <- RemoveFeed{Room: room}:
	case <-h.ctx.Done():
	}
}

// Rooms lists the rooms that currently have a feed, in no particular order.
func (h *Hub) Rooms(ctx context.Context) []int32 {
	reply := make(chan []int32, 1)
	select {
	case h.inbox <- ListFeeds{Reply: reply}:
	case <-h.ctx.Done():
		return nil
	case <-ctx.Done():
		return nil
	}
	select {
	case rooms := <-reply:
		return rooms
	case <-h.ctx.Done():
		return nil
	case <-ctx.Done():
		return nil
	}
}

// Close shuts every feed down and stops the hub.
func (h *Hub) Close() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.ctx.Done():
	}
}
