package memory

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/irfansharif/halo/internal/logging"
)

// Compactor shrinks oversized buffers. A cell whose geometry shrank keeps
// its buffer across in-place updates; once utilization drops below
// DefragThreshold the contents are copied into a buffer of the smallest
// bucket that fits.
type Compactor struct {
	maxPerFrame int
	logger      *zap.SugaredLogger
}

func newCompactor(maxPerFrame int) *Compactor {
	return &Compactor{
		maxPerFrame: maxPerFrame,
		logger:      logging.Named("compaction"),
	}
}

// shrinksTo reports the bucket b would move to, if it's a candidate.
func shrinksTo(b *Batch) (BucketSize, bool) {
	if b.Utilization() >= DefragThreshold {
		return b.Bucket, false
	}
	target := selectBucket(b.VertexCount)
	if capacityFor(target, b.VertexCount) >= b.Capacity {
		return b.Bucket, false
	}
	return target, true
}

// ScanForCompaction identifies sparse batches. Returns them sorted by
// sparseness (i.e., lowest utilization first), ties broken by cell.
func (c *Compactor) ScanForCompaction(cache *Cache) []*Batch {
	if !DefragEnableCompaction {
		return nil
	}

	c.logger.Debugf("scanning %d batches for candidates (min-util=%.1f%%)", cache.Len(), DefragThreshold*100)

	var candidates []*Batch
	cache.Visit(func(b *Batch) {
		target, ok := shrinksTo(b)
		if !ok {
			return
		}
		candidates = append(candidates, b)
		c.logger.Debugf("[%s] %s - CANDIDATE (%.1f%% util, %d/%d vertices, fits %s)",
			b.Bucket, b.Cell, b.Utilization()*100, b.VertexCount, b.Capacity, target)
	})

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Utilization() < candidates[j].Utilization()
	})
	return candidates
}

// Compact shrinks up to maxPerFrame candidates, returning how many moved.
func (c *Compactor) Compact(cache *Cache) (int, error) {
	candidates := c.ScanForCompaction(cache)
	if len(candidates) == 0 {
		return 0, nil
	}

	var errs []error
	shrunk := 0
	for _, b := range candidates {
		if shrunk >= c.maxPerFrame {
			c.logger.Debugf("reached max compactions (%d) per frame, skipping %d remaining candidates",
				c.maxPerFrame, len(candidates)-shrunk)
			break
		}
		if err := c.shrink(cache, b); err != nil {
			c.logger.Debugf("failed to compact %s: %v", b.Cell, err)
			errs = append(errs, err)
			continue
		}
		shrunk++
	}

	c.logger.Debugf("completed: processed %d candidates, compacted %d", len(candidates), shrunk)
	return shrunk, errors.Join(errs...)
}

// shrink moves b's contents into a smaller buffer with a device-side copy,
// then releases the old one. On failure b is left untouched.
func (c *Compactor) shrink(cache *Cache, b *Batch) error {
	target, ok := shrinksTo(b)
	if !ok {
		return nil
	}
	capacity := capacityFor(target, b.VertexCount)

	buf, err := cache.device.Create(capacity)
	if err != nil {
		return fmt.Errorf("compacting %s: %w", b.Cell, err)
	}
	cache.stats.Creates++
	if b.VertexCount > 0 {
		if err := cache.device.Copy(buf, b.Buffer, b.VertexCount); err != nil {
			cache.device.Destroy(buf)
			cache.stats.Destroys++
			return fmt.Errorf("compacting %s: %w", b.Cell, err)
		}
	}

	c.logger.Debugf("moved %s from %s (%d) to %s (%d), %d vertices",
		b.Cell, b.Bucket, b.Capacity, target, capacity, b.VertexCount)
	cache.device.Destroy(b.Buffer)
	cache.stats.Destroys++
	b.Buffer, b.Bucket, b.Capacity = buf, target, capacity
	return nil
}
