// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"os"

	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/pierrec/lz4/v4"

	"github.com/stratastor/dropboxd/pkg/errors"
)

// StreamChunkSize is the read chunk size for InitialCrawl's streaming
// hash.
const StreamChunkSize = 25 * 1024 * 1024

// ratioEstimator tracks a running mean LZ4 compression ratio across chunks
// without ever materializing the compressed stream on disk. Each chunk is
// fed through an in-memory lz4.Writer purely to measure its compressed
// size.
type ratioEstimator struct {
	sumRatio float64
	count    int
}

func (r *ratioEstimator) add(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	counter := &countingWriter{}
	w := lz4.NewWriter(counter)
	if _, err := w.Write(chunk); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	if counter.n == 0 {
		return nil
	}
	r.sumRatio += float64(len(chunk)) / float64(counter.n)
	r.count++
	return nil
}

func (r *ratioEstimator) mean() float64 {
	if r.count == 0 {
		return 0
	}
	return r.sumRatio / float64(r.count)
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

// hashFile streams path's content in StreamChunkSize chunks, computing a
// SHA-1 digest and a running-mean LZ4 ratio estimate, testing ctx for
// cancellation on every chunk. Transient read failures are retried via
// Rican7/retry before surfacing as TransientIO.
func hashFile(ctx context.Context, path string) (sha1hex string, ratio float64, size int64, err error) {
	err = retry.Retry(func(attempt uint) error {
		sha1hex, ratio, size, err = hashFileOnce(ctx, path)
		return err
	}, strategy.Limit(3), strategy.Backoff(backoff.Linear(50*time.Millisecond)))
	if err != nil {
		return "", 0, 0, errors.Wrap(err, errors.StreamCopyTransient)
	}
	return sha1hex, ratio, size, nil
}

func hashFileOnce(ctx context.Context, path string) (string, float64, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, 0, err
	}
	defer f.Close()

	h := sha1.New()
	est := &ratioEstimator{}
	buf := make([]byte, StreamChunkSize)
	var total int64

	for {
		select {
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		default:
		}

		n, rerr := f.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if _, werr := h.Write(chunk); werr != nil {
				return "", 0, 0, werr
			}
			if werr := est.add(chunk); werr != nil {
				return "", 0, 0, werr
			}
			total += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", 0, 0, rerr
		}
	}

	return hex.EncodeToString(h.Sum(nil)), est.mean(), total, nil
}
