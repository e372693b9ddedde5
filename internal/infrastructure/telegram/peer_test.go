package telegram

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkedPeerID(t *testing.T) {
	tests := []struct {
		name string
		peer tg.PeerClass
		want int64
		ok   bool
	}{
		{name: "channel", peer: &tg.PeerChannel{ChannelID: 1234567890}, want: -1001234567890, ok: true},
		{name: "basic group", peer: &tg.PeerChat{ChatID: 4242}, want: -4242, ok: true},
		{name: "user", peer: &tg.PeerUser{UserID: 77}, want: 77, ok: true},
		{name: "nil", peer: nil, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MarkedPeerID(tt.peer)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPeerCache_RememberChannel(t *testing.T) {
	c := newPeerCache()
	e := tg.Entities{
		Channels: map[int64]*tg.Channel{
			100: {ID: 100, AccessHash: 999},
		},
	}

	id, ok := c.Remember(&tg.PeerChannel{ChannelID: 100}, e)
	require.True(t, ok)
	assert.Equal(t, MarkedChannelID(100), id)

	peer, ok := c.Get(id)
	require.True(t, ok)
	assert.Equal(t, &tg.InputPeerChannel{ChannelID: 100, AccessHash: 999}, peer)
}

func TestPeerCache_ChannelWithoutEntities(t *testing.T) {
	c := newPeerCache()

	id, ok := c.Remember(&tg.PeerChannel{ChannelID: 100}, tg.Entities{})
	require.True(t, ok)

	_, ok = c.Get(id)
	assert.False(t, ok)
}

func TestPeerCache_BasicGroupFallback(t *testing.T) {
	c := newPeerCache()

	peer, ok := c.Get(-4242)
	require.True(t, ok)
	assert.Equal(t, &tg.InputPeerChat{ChatID: 4242}, peer)
}

func TestPeerCache_User(t *testing.T) {
	c := newPeerCache()
	e := tg.Entities{
		Users: map[int64]*tg.User{
			5: {ID: 5, AccessHash: 55},
		},
	}

	id, ok := c.Remember(&tg.PeerUser{UserID: 5}, e)
	require.True(t, ok)

	peer, ok := c.Get(id)
	require.True(t, ok)
	assert.Equal(t, &tg.InputPeerUser{UserID: 5, AccessHash: 55}, peer)

	_, ok = c.Get(6)
	assert.False(t, ok)
}
