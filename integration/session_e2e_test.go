//go:build integration

package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rdmakit/dct-go/client"
	"github.com/rdmakit/dct-go/dct"
)

func TestSessionSharedEndToEnd(t *testing.T) {
	session, err := client.Open(client.Config{
		PoolSize:       2,
		Policy:         dct.PolicyShared,
		MaxOutstanding: 2,
		Timeout:        10 * time.Second,
	})
	require.NoError(t, err, "open session")
	t.Cleanup(func() {
		_ = session.Close()
	})

	const peerCount = 16
	const opsPerPeer = 8

	peers := make([]client.Peer, 0, peerCount)
	for i := 0; i < peerCount; i++ {
		peer, err := session.RegisterPeer([]byte(fmt.Sprintf("peer-%02d", i)))
		require.NoErrorf(t, err, "register peer %d", i)
		peers = append(peers, peer)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, peerCount*opsPerPeer)
	for i, peer := range peers {
		wg.Add(1)
		go func(i int, peer client.Peer) {
			defer wg.Done()
			for j := 0; j < opsPerPeer; j++ {
				if err := session.Submit(ctx, peer, []byte(fmt.Sprintf("payload-%d-%d", i, j))); err != nil {
					errCh <- fmt.Errorf("peer %d op %d: %w", i, j, err)
					return
				}
			}
		}(i, peer)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	require.NoError(t, session.Drain(ctx), "drain")

	stats := session.Stats()
	require.EqualValues(t, peerCount*opsPerPeer, stats.Completed, "completed operations")
	require.Zero(t, stats.Errored, "errored operations")
}

func TestSessionDedicatedEndToEnd(t *testing.T) {
	session, err := client.Open(client.Config{
		PoolSize:       4,
		Policy:         dct.PolicyDedicated,
		MaxOutstanding: 4,
		Timeout:        10 * time.Second,
	})
	require.NoError(t, err, "open session")
	t.Cleanup(func() {
		_ = session.Close()
	})

	peers := make([]client.Peer, 0, 4)
	for i := 0; i < 4; i++ {
		peer, err := session.RegisterPeer([]byte(fmt.Sprintf("pinned-%d", i)))
		require.NoErrorf(t, err, "register peer %d", i)
		peers = append(peers, peer)
	}

	// Pool fully pinned: a fifth registration must be refused.
	_, err = session.RegisterPeer([]byte("overflow"))
	require.ErrorIs(t, err, dct.ErrPoolExhausted, "fifth dedicated peer")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for i, peer := range peers {
		for j := 0; j < 4; j++ {
			require.NoErrorf(t, session.Submit(ctx, peer, []byte(fmt.Sprintf("op-%d-%d", i, j))), "submit %d/%d", i, j)
		}
	}

	// Closing one peer frees its initiator for a new registration.
	require.NoError(t, session.FlushPeer(ctx, peers[0]), "flush first peer")
	require.NoError(t, session.ClosePeer(peers[0]), "close first peer")

	var replacement client.Peer
	require.Eventually(t, func() bool {
		peer, err := session.RegisterPeer([]byte("replacement"))
		if err != nil {
			return false
		}
		replacement = peer
		return true
	}, 5*time.Second, 10*time.Millisecond, "register replacement peer")

	require.NoError(t, session.Submit(ctx, replacement, []byte("replacement-op")), "submit on replacement")
	require.NoError(t, session.Drain(ctx), "drain")
}
