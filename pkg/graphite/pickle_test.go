// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package graphite

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/require"
)

func TestEncodePickleShape(t *testing.T) {
	payload := EncodePickle([]Sample{
		{Path: "hosts.h1.zfs.pools.tank.free", Timestamp: 1000, Value: 42.5},
	})

	require.Equal(t, byte(opProto), payload[0])
	require.Equal(t, byte(2), payload[1])
	require.Equal(t, byte(opEmptyList), payload[2])
	require.Equal(t, byte(opMark), payload[3])
	require.Equal(t, byte(opStop), payload[len(payload)-1])
	require.Equal(t, byte(opAppends), payload[len(payload)-2])
}

func TestChunkSamplesRespectsMaxSamples(t *testing.T) {
	samples := make([]Sample, 2500)
	for i := range samples {
		samples[i] = Sample{Path: "a.b.c", Timestamp: 1, Value: 1}
	}
	chunks := chunkSamples(samples, MaxChunkSamples, MaxChunkBytes)
	require.Len(t, chunks, 3)
	require.Len(t, chunks[0], MaxChunkSamples)
	require.Len(t, chunks[2], 500)
}

func TestSubmitterSendsLengthPrefixedChunks(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, aerr := ln.Accept()
		if aerr != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		n, _ := conn.Read(buf)
		received <- buf[:n]
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	s, err := NewSubmitter(host, port, logger.Config{LogLevel: "error"})
	require.NoError(t, err)
	err = s.Submit(context.Background(), []Sample{{Path: "a.b.c", Timestamp: 1, Value: 2}})
	require.NoError(t, err)

	select {
	case data := <-received:
		require.True(t, len(data) > 4)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for carbon chunk")
	}
}
