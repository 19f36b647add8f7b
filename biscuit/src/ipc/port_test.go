package ipc

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"defs"
	"token"
)

const testOwner defs.Pid_t = 1

func TestCreateDuplicatePortIDFails(t *testing.T) {
	p, err := Create(testOwner, 1001, nil)
	require.Equal(t, defs.Err_t(0), err)
	defer p.Disown()

	_, err = Create(testOwner, 1001, nil)
	require.Equal(t, defs.EEXIST, err)
}

func TestConnectToUnknownPortFails(t *testing.T) {
	_, err := Connect(testOwner, 99999, token.System(), 0)
	require.Equal(t, defs.ENOENT, err)
}

func TestListenAcceptsPendingConnect(t *testing.T) {
	p, err := Create(testOwner, 1002, nil)
	require.Equal(t, defs.Err_t(0), err)
	defer p.Disown()

	results := make(chan error, 1)
	go func() {
		client, cerr := Connect(testOwner, 1002, token.System(), time.Second)
		if cerr != 0 {
			results <- cerr
			return
		}
		out, _ := NewMessage(UserMsgBase, []byte("hi"), nil, nil)
		results <- toErr(client.Send(out, time.Second, false))
	}()

	server, err := p.Listen(token.System(), time.Second)
	require.Equal(t, defs.Err_t(0), err)
	msg, err := server.Receive(time.Second)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, "hi", string(msg.Data))
	require.NoError(t, <-results)
}

func toErr(e defs.Err_t) error {
	if e == 0 {
		return nil
	}
	return e
}

func TestConnectTimesOutWithoutAMatchingListen(t *testing.T) {
	p, err := Create(testOwner, 1003, nil)
	require.Equal(t, defs.Err_t(0), err)
	defer p.Disown()

	_, err = Connect(testOwner, 1003, token.System(), 10*time.Millisecond)
	require.Equal(t, defs.ETIMEDOUT, err)
}

func TestListenRequiresRightListen(t *testing.T) {
	sec := token.NewSecurity(token.System(), 0)
	p, err := Create(testOwner, 1004, sec)
	require.Equal(t, defs.Err_t(0), err)
	defer p.Disown()

	stranger, _ := token.Create(token.System(), token.CreateRequest{Uid: int32Ptr(9999)})
	_, err = p.Listen(stranger, 0)
	require.Equal(t, defs.EACCES, err)
}

func int32Ptr(v int32) *int32 { return &v }

func TestDisownHangsUpPendingConnections(t *testing.T) {
	p, err := Create(testOwner, 1005, nil)
	require.Equal(t, defs.Err_t(0), err)

	var wg sync.WaitGroup
	wg.Add(1)
	var connErr defs.Err_t
	go func() {
		defer wg.Done()
		_, connErr = Connect(testOwner, 1005, token.System(), time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	p.Disown()
	wg.Wait()
	require.Equal(t, defs.EHUNGUP, connErr)
}

func TestWellKnownPortIsVisibleAcrossOwners(t *testing.T) {
	p, err := Create(testOwner, RootPortID, nil)
	require.Equal(t, defs.Err_t(0), err)
	defer p.Disown()

	results := make(chan error, 1)
	go func() {
		_, cerr := Connect(defs.Pid_t(2), RootPortID, token.System(), time.Second)
		results <- toErr(cerr)
	}()

	_, err = p.Listen(token.System(), time.Second)
	require.Equal(t, defs.Err_t(0), err)
	require.NoError(t, <-results)
}
