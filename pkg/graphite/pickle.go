// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package graphite implements the carbon pickle submission protocol:
// chunked (<=1MiB / <=1000 samples per message), one TCP connection per
// chunk. Carbon's pickle receiver only ever sees the fixed
// (str, (int, float)) tuple shape, so the encoder emits exactly that
// subset of pickle protocol 2 rather than pulling in a general
// serializer.
package graphite

import (
	"encoding/binary"
	"math"
)

// Sample is one (metric path, timestamp, value) point, matching carbon's
// expected (path, (timestamp, value)) pickled tuple shape.
type Sample struct {
	Path      string
	Timestamp int64
	Value     float64
}

// pickle protocol-2 opcodes used by EncodePickle.
const (
	opProto      = 0x80
	opEmptyList  = ']'
	opMark       = '('
	opBinUnicode = 'X'
	opBinInt     = 'J'
	opBinFloat   = 'G'
	opTuple2     = 0x86
	opAppends    = 'e'
	opStop       = '.'
)

// EncodePickle serializes samples as a python pickle protocol-2 list of
// (path, (timestamp, value)) tuples, the payload carbon's pickle listener
// expects after the 4-byte big-endian length header (WriteChunk adds that
// header; this function returns the payload alone so tests can assert on
// it directly).
func EncodePickle(samples []Sample) []byte {
	buf := make([]byte, 0, 64*len(samples)+16)
	buf = append(buf, opProto, 2)
	buf = append(buf, opEmptyList)
	buf = append(buf, opMark)

	for _, s := range samples {
		buf = appendBinUnicode(buf, s.Path)
		buf = appendBinInt(buf, s.Timestamp)
		buf = appendBinFloat(buf, s.Value)
		buf = append(buf, opTuple2) // (timestamp, value)
		buf = append(buf, opTuple2) // (path, (timestamp, value))
	}

	buf = append(buf, opAppends)
	buf = append(buf, opStop)
	return buf
}

func appendBinUnicode(buf []byte, s string) []byte {
	b := []byte(s)
	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(b)))
	buf = append(buf, opBinUnicode)
	buf = append(buf, lenBytes[:]...)
	return append(buf, b...)
}

func appendBinInt(buf []byte, v int64) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(int32(v)))
	buf = append(buf, opBinInt)
	return append(buf, b[:]...)
}

func appendBinFloat(buf []byte, v float64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	buf = append(buf, opBinFloat)
	return append(buf, b[:]...)
}
