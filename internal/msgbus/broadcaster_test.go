package msgbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTopicFiltersEmptyMeansAll(t *testing.T) {
	t.Parallel()

	matchers, err := parseTopicFilters("")
	require.NoError(t, err)
	assert.Nil(t, matchers)
}

func TestParseTopicFiltersSplitsAndTrims(t *testing.T) {
	t.Parallel()

	matchers, err := parseTopicFilters("data.quotes.*, events.order.*")
	require.NoError(t, err)
	require.Len(t, matchers, 2)
	assert.True(t, matchers[0].match("data.quotes.BTCUSDT"))
	assert.True(t, matchers[1].match("events.order.accepted"))
	assert.False(t, matchers[0].match("events.order.accepted"))
}

func TestWsClientAcceptsEverythingWithNoMatchers(t *testing.T) {
	t.Parallel()

	c := &wsClient{}
	assert.True(t, c.accepts("anything.at.all"))
}

func TestWsClientAcceptsOnlyMatchingTopics(t *testing.T) {
	t.Parallel()

	quotes, err := compileTopicPattern("data.quotes.*")
	require.NoError(t, err)
	c := &wsClient{matchers: []*topicMatcher{quotes}}

	assert.True(t, c.accepts("data.quotes.BTCUSDT"))
	assert.False(t, c.accepts("events.order.accepted"))
}

func TestBroadcasterFanOutFiltersPerClientSubscription(t *testing.T) {
	t.Parallel()

	h := NewWSBroadcaster(BroadcasterConfig{}, nil)
	stop := make(chan struct{})
	go h.Run(stop)
	defer close(stop)

	quotes, err := compileTopicPattern("data.quotes.*")
	require.NoError(t, err)
	orders, err := compileTopicPattern("events.order.*")
	require.NoError(t, err)

	quoteClient := &wsClient{hub: h, send: make(chan outboundFrame, 4), matchers: []*topicMatcher{quotes}}
	orderClient := &wsClient{hub: h, send: make(chan outboundFrame, 4), matchers: []*topicMatcher{orders}}
	wildcardClient := &wsClient{hub: h, send: make(chan outboundFrame, 4)}

	h.register <- quoteClient
	h.register <- orderClient
	h.register <- wildcardClient

	h.BroadcastTopic("data.quotes.BTCUSDT", map[string]string{"bid": "100"})

	select {
	case frame := <-quoteClient.send:
		assert.Equal(t, frameData, frame.kind)
	case <-time.After(time.Second):
		t.Fatal("quote client did not receive matching broadcast")
	}

	select {
	case frame := <-wildcardClient.send:
		assert.Equal(t, frameData, frame.kind)
	case <-time.After(time.Second):
		t.Fatal("wildcard client did not receive broadcast")
	}

	select {
	case <-orderClient.send:
		t.Fatal("order client should not have received a data.quotes broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcasterPingAllReachesEveryClient(t *testing.T) {
	t.Parallel()

	h := NewWSBroadcaster(BroadcasterConfig{PongWait: 20 * time.Millisecond}, nil)
	stop := make(chan struct{})
	go h.Run(stop)
	defer close(stop)

	client := &wsClient{hub: h, send: make(chan outboundFrame, 4)}
	h.register <- client

	select {
	case frame := <-client.send:
		assert.Equal(t, framePing, frame.kind)
	case <-time.After(time.Second):
		t.Fatal("client did not receive a keepalive ping")
	}
}

func TestBroadcasterUnregisterClosesSendChannel(t *testing.T) {
	t.Parallel()

	h := NewWSBroadcaster(BroadcasterConfig{}, nil)
	stop := make(chan struct{})
	go h.Run(stop)
	defer close(stop)

	client := &wsClient{hub: h, send: make(chan outboundFrame, 4)}
	h.register <- client
	h.unregister <- client

	select {
	case _, ok := <-client.send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed after unregister")
	}
}

func TestBroadcasterConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := BroadcasterConfig{}.withDefaults()
	assert.Equal(t, 10*time.Second, cfg.WriteWait)
	assert.Equal(t, 60*time.Second, cfg.PongWait)
	assert.Equal(t, int64(512*1024), cfg.MaxMessageSize)
	assert.Equal(t, 54*time.Second, cfg.pingPeriod())
}
