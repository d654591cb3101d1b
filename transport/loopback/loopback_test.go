package loopback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openspdm/spdm-go/transport"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	a, b := NewPair()
	ctx := context.Background()

	require.NoError(t, a.Send(ctx, transport.Message{Data: []byte("hello")}))
	msg, err := b.Receive(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), msg.Data)
	assert.Len(t, a.SentMessages(), 1)
}

func TestReceiveTimesOut(t *testing.T) {
	a, _ := NewPair()
	_, err := a.Receive(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, transport.ErrTimeout)
}

func TestSendAfterCloseFails(t *testing.T) {
	a, _ := NewPair()
	require.NoError(t, a.Close())
	err := a.Send(context.Background(), transport.Message{Data: []byte("x")})
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestInSessionRoundTrip(t *testing.T) {
	a, b := NewPair()
	ctx := context.Background()
	require.NoError(t, a.Send(ctx, transport.Message{InSession: true, SessionID: 7, Data: []byte("app-data")}))
	msg, err := b.Receive(ctx, time.Second)
	require.NoError(t, err)
	assert.True(t, msg.InSession)
	assert.EqualValues(t, 7, msg.SessionID)
}
