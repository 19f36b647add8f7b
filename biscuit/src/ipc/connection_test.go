package ipc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"defs"
	"token"
)

func TestConnectionAcceptTransitionsSetupToActive(t *testing.T) {
	c := newConnection(token.System())
	setup, active, closed := c.State()
	require.True(t, setup)
	require.False(t, active)
	require.False(t, closed)

	c.accept()
	setup, active, closed = c.State()
	require.False(t, setup)
	require.True(t, active)
	require.False(t, closed)
}

func TestConnectionCloseIsIdempotentAndHangsUpBothEndpoints(t *testing.T) {
	c := newConnection(token.System())
	c.accept()

	client := newConnEnd(c, ClientSide)
	server := newConnEnd(c, ServerSide)

	c.Close()
	c.Close() // must not panic or double-release ClientToken

	_, _, closed := c.State()
	require.True(t, closed)

	_, err := client.Receive(0)
	require.Equal(t, defs.EHUNGUP, err)
	_, err = server.Receive(0)
	require.Equal(t, defs.EHUNGUP, err)
}

func TestConnEndOrientationRoutesEachSideToTheOthersInbox(t *testing.T) {
	c := newConnection(token.System())
	c.accept()
	client := newConnEnd(c, ClientSide)
	server := newConnEnd(c, ServerSide)

	out, _ := NewMessage(UserMsgBase, []byte("ping"), nil, nil)
	require.Equal(t, defs.Err_t(0), client.Send(out, -1, false))

	got, err := server.Receive(-1)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, "ping", string(got.Data))
}
