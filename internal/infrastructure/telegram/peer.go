package telegram

import (
	"sync"

	"github.com/gotd/td/tg"
)

// channelIDOffset marks channel and supergroup ids as -100<id>
const channelIDOffset int64 = 1000000000000

// MarkedChannelID returns the marked id of a channel or supergroup
func MarkedChannelID(id int64) int64 {
	return -(channelIDOffset + id)
}

// MarkedChatID returns the marked id of a basic group
func MarkedChatID(id int64) int64 {
	return -id
}

// MarkedPeerID returns the marked id of a message peer
func MarkedPeerID(p tg.PeerClass) (int64, bool) {
	switch peer := p.(type) {
	case *tg.PeerChannel:
		return MarkedChannelID(peer.ChannelID), true
	case *tg.PeerChat:
		return MarkedChatID(peer.ChatID), true
	case *tg.PeerUser:
		return peer.UserID, true
	default:
		return 0, false
	}
}

// peerCache remembers input peers of chats seen in updates so reactions
// can address them without resolving
type peerCache struct {
	mu    sync.RWMutex
	peers map[int64]tg.InputPeerClass
}

func newPeerCache() *peerCache {
	return &peerCache{peers: make(map[int64]tg.InputPeerClass)}
}

// Remember stores the input peer of p using access hashes from e.
// Returns the marked id of p.
func (c *peerCache) Remember(p tg.PeerClass, e tg.Entities) (int64, bool) {
	id, ok := MarkedPeerID(p)
	if !ok {
		return 0, false
	}

	var input tg.InputPeerClass
	switch peer := p.(type) {
	case *tg.PeerChannel:
		if ch, found := e.Channels[peer.ChannelID]; found {
			input = &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
		}
	case *tg.PeerChat:
		input = &tg.InputPeerChat{ChatID: peer.ChatID}
	case *tg.PeerUser:
		if u, found := e.Users[peer.UserID]; found {
			input = &tg.InputPeerUser{UserID: u.ID, AccessHash: u.AccessHash}
		}
	}

	if input != nil {
		c.mu.Lock()
		c.peers[id] = input
		c.mu.Unlock()
	}

	return id, true
}

// Get returns the input peer of a marked chat id
func (c *peerCache) Get(id int64) (tg.InputPeerClass, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	peer, ok := c.peers[id]
	if ok {
		return peer, true
	}

	// Basic groups need no access hash
	if id < 0 && id > -channelIDOffset {
		return &tg.InputPeerChat{ChatID: -id}, true
	}

	return nil, false
}
