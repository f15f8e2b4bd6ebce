// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package graphite

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/stratastor/logger"

	"github.com/stratastor/dropboxd/pkg/errors"
)

// DefaultCarbonPort is the conventional carbon pickle-receiver port.
const DefaultCarbonPort = 2004

// MaxChunkBytes and MaxChunkSamples bound one submission message.
const (
	MaxChunkBytes   = 1024 * 1024
	MaxChunkSamples = 1000
)

// Submitter dials a carbon pickle receiver, opening one TCP connection
// per chunk.
type Submitter struct {
	Host string
	Port int
	// Dial is overridable in tests to avoid a real network connection.
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)

	log logger.Logger
}

// NewSubmitter creates a Submitter logging under the "graphite" tag.
func NewSubmitter(host string, port int, logCfg logger.Config) (*Submitter, error) {
	if port == 0 {
		port = DefaultCarbonPort
	}
	l, err := logger.NewTag(logCfg, "graphite")
	if err != nil {
		return nil, errors.Wrap(err, errors.CommandExecution)
	}
	var d net.Dialer
	return &Submitter{Host: host, Port: port, Dial: d.DialContext, log: l}, nil
}

// Submit splits samples into chunks (at most MaxChunkSamples each, within
// the MaxChunkBytes pickle-payload budget) and sends each chunk over its
// own TCP connection.
func (s *Submitter) Submit(ctx context.Context, samples []Sample) error {
	for _, chunk := range chunkSamples(samples, MaxChunkSamples, MaxChunkBytes) {
		if err := s.sendChunk(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (s *Submitter) sendChunk(ctx context.Context, chunk []Sample) error {
	payload := EncodePickle(chunk)

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	conn, err := s.Dial(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrap(err, errors.CommandTransient).WithMetadata("addr", addr)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	}

	if _, err := conn.Write(header[:]); err != nil {
		return errors.Wrap(err, errors.CommandTransient)
	}
	if _, err := conn.Write(payload); err != nil {
		return errors.Wrap(err, errors.CommandTransient)
	}
	s.log.Debug("submitted graphite chunk", "samples", len(chunk), "bytes", len(payload))
	return nil
}

// chunkSamples splits samples into groups bounded by both maxSamples and
// an approximate pickled-byte budget, so a handful of unusually long
// metric paths can't blow past the carbon message-size convention.
func chunkSamples(samples []Sample, maxSamples, maxBytes int) [][]Sample {
	var out [][]Sample
	var cur []Sample
	curBytes := 0

	flush := func() {
		if len(cur) > 0 {
			out = append(out, cur)
			cur = nil
			curBytes = 0
		}
	}

	for _, sample := range samples {
		estimate := len(sample.Path) + 32
		if len(cur) >= maxSamples || (curBytes+estimate > maxBytes && len(cur) > 0) {
			flush()
		}
		cur = append(cur, sample)
		curBytes += estimate
	}
	flush()
	return out
}
