// Package memory provides GPU buffer management for per-cell render batches.
//
// Every non-empty cell owns exactly one vertex buffer, sized to one of a
// handful of capacity buckets so that most rebuilds can update the buffer in
// place. Rebuilds whose content is unchanged never touch the GPU.
package memory

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/irfansharif/halo/internal/batch"
	"github.com/irfansharif/halo/internal/geom"
	"github.com/irfansharif/halo/internal/logging"
	"github.com/irfansharif/halo/internal/marker"
)

// ErrOutOfMemory is returned by a Device when it can't satisfy an
// allocation or upload.
var ErrOutOfMemory = errors.New("out of GPU memory")

// Configuration constants for memory management.
const (
	// Defragmentation configuration. If a buffer's utilization is below the
	// threshold and its contents would fit a smaller bucket, it is moved to
	// a smaller buffer. No more than the configured number of buffers are
	// shrunk per call, to keep compaction load minimal.
	DefragEnableCompaction = true
	DefragThreshold        = 0.25 // 25%
	DefragMaxPerFrame      = 1

	// Bucket configuration, in vertices.
	vertexCapacityS  = 1024
	vertexCapacityM  = 4096
	vertexCapacityL  = 16384
	vertexCapacityXL = 65536

	// BytesPerVertex is the size of one vertex on the GPU.
	BytesPerVertex = batch.FloatsPerVertex * 4
)

// BucketSize represents different size categories for cell geometry.
type BucketSize int

const (
	BucketS   BucketSize = iota // 1K vertices (~341 triangles)
	BucketM                     // 4K vertices (~1365 triangles)
	BucketL                     // 16K vertices (~5461 triangles)
	BucketXL                    // 64K vertices (~21845 triangles)
	BucketXXL                   // Exact fit for outliers
)

var bucketSizes = []BucketSize{BucketS, BucketM, BucketL, BucketXL, BucketXXL}

func (bs BucketSize) String() string {
	switch bs {
	case BucketS:
		return "small"
	case BucketM:
		return "medium"
	case BucketL:
		return "large"
	case BucketXL:
		return "xlarge"
	case BucketXXL:
		return "xxlarge"
	default:
		return "unknown"
	}
}

// selectBucket chooses the smallest bucket that can fit the given vertex count.
func selectBucket(vertexCount int) BucketSize {
	if vertexCount <= vertexCapacityS {
		return BucketS
	}
	if vertexCount <= vertexCapacityM {
		return BucketM
	}
	if vertexCount <= vertexCapacityL {
		return BucketL
	}
	if vertexCount <= vertexCapacityXL {
		return BucketXL
	}
	return BucketXXL
}

// capacityFor returns the buffer capacity, in vertices, for a bucket. XXL
// buffers are sized exactly.
func capacityFor(bucket BucketSize, vertexCount int) int {
	switch bucket {
	case BucketS:
		return vertexCapacityS
	case BucketM:
		return vertexCapacityM
	case BucketL:
		return vertexCapacityL
	case BucketXL:
		return vertexCapacityXL
	default:
		return vertexCount
	}
}

// Buffer is a device vertex buffer handle. Zero is never a valid handle.
type Buffer uint32

// Device allocates and fills vertex buffers. Capacities and counts are in
// vertices.
type Device interface {
	Create(capacity int) (Buffer, error)
	Upload(buf Buffer, vertices []float32) error
	Copy(dst, src Buffer, vertexCount int) error
	Destroy(buf Buffer)
}

// Builder turns a cell's members into geometry.
type Builder interface {
	Build(cell geom.Cell, members []marker.Object) (batch.Geometry, error)
}

// MemberSource supplies the members of dirty cells, and records which
// fingerprints each successful sync used.
type MemberSource interface {
	Members(cell geom.Cell) []marker.Object
	Commit(members []marker.Member)
}

// Membership reports whether a cell still has members.
type Membership interface {
	IsEmpty(cell geom.Cell) bool
}

// Batch is the cached render state of one cell. The cache owns the buffer.
type Batch struct {
	Cell        geom.Cell
	Origin      geom.BlockPos
	Buffer      Buffer
	Bucket      BucketSize
	Capacity    int // vertices
	VertexCount int
	Box         geom.Box
	Digest      uint64
	Members     []marker.Member
}

// Utilization is the used fraction of the buffer.
func (b *Batch) Utilization() float64 {
	if b.Capacity == 0 {
		return 0
	}
	return float64(b.VertexCount) / float64(b.Capacity)
}

// SyncResult summarizes one Sync.
type SyncResult struct {
	Rebuilt   []geom.Cell // geometry uploaded
	Unchanged []geom.Cell // rebuilt to identical geometry, no upload
	Evicted   []geom.Cell
	Failed    []geom.Cell // left without an entry, retried next frame
	Uploads   int
	Bytes     int64 // uploaded
}

// Cache maps cells to their cached batches.
type Cache struct {
	device    Device
	builder   Builder
	entries   map[geom.Cell]*Batch
	compactor *Compactor
	stats     Stats
	logger    *zap.SugaredLogger
}

// Options configures a Cache.
type Options struct {
	DefragMaxPerFrame int
}

// NewCache returns an empty cache.
func NewCache(device Device, builder Builder, opts Options) *Cache {
	if opts.DefragMaxPerFrame <= 0 {
		opts.DefragMaxPerFrame = DefragMaxPerFrame
	}
	return &Cache{
		device:    device,
		builder:   builder,
		entries:   make(map[geom.Cell]*Batch),
		compactor: newCompactor(opts.DefragMaxPerFrame),
		logger:    logging.Named("memory"),
	}
}

// Sync brings the cache up to date: evicted cells release their buffers,
// then each rebuild cell is rebuilt from src and uploaded. A failure on one
// cell never affects the others.
func (c *Cache) Sync(rebuild, evict []geom.Cell, src MemberSource) SyncResult {
	startTime := time.Now()
	var res SyncResult

	for _, cell := range evict {
		if c.drop(cell) {
			res.Evicted = append(res.Evicted, cell)
		}
	}

	for _, cell := range rebuild {
		members := src.Members(cell)
		if len(members) == 0 {
			// Emptied after it was collected.
			if c.drop(cell) {
				res.Evicted = append(res.Evicted, cell)
			}
			continue
		}

		g, err := c.builder.Build(cell, members)
		if err != nil {
			logging.Base().Warnf("building %s: %v", cell, err)
			c.drop(cell)
			res.Failed = append(res.Failed, cell)
			c.stats.Failures++
			continue
		}

		if e, ok := c.entries[cell]; ok && e.Digest == g.Digest {
			// Identical content; the buffer is already current.
			e.Members = g.Members
			src.Commit(g.Members)
			res.Unchanged = append(res.Unchanged, cell)
			c.stats.SkippedUploads++
			continue
		}

		uploaded, err := c.store(g)
		if err != nil {
			logging.Base().Warnf("uploading %s (%d vertices): %v", cell, g.VertexCount, err)
			res.Failed = append(res.Failed, cell)
			c.stats.Failures++
			continue
		}
		src.Commit(g.Members)
		res.Rebuilt = append(res.Rebuilt, cell)
		if uploaded {
			res.Uploads++
			res.Bytes += int64(g.VertexCount * BytesPerVertex)
		}
	}

	c.stats.LastSyncTimeUs = float64(time.Since(startTime).Microseconds())
	if len(res.Rebuilt)+len(res.Evicted)+len(res.Failed) > 0 {
		c.logger.Debugf("sync: %d rebuilt, %d unchanged, %d evicted, %d failed, %d uploads (%d bytes) in %.0fμs",
			len(res.Rebuilt), len(res.Unchanged), len(res.Evicted), len(res.Failed), res.Uploads, res.Bytes, c.stats.LastSyncTimeUs)
	}
	return res
}

// store writes g into the cell's buffer, reallocating only if it no longer
// fits. It reports whether any vertex data was uploaded. On failure the cell
// is left without an entry.
func (c *Cache) store(g batch.Geometry) (uploaded bool, err error) {
	e, ok := c.entries[g.Cell]
	if ok && g.VertexCount <= e.Capacity {
		if g.VertexCount > 0 {
			if err := c.device.Upload(e.Buffer, g.Vertices); err != nil {
				c.drop(g.Cell)
				return false, fmt.Errorf("updating buffer in place: %w", err)
			}
			c.stats.Uploads++
		}
		c.logger.Debugf("updated %s in place (%d/%d vertices)", g.Cell, g.VertexCount, e.Capacity)
		e.set(g)
		return g.VertexCount > 0, nil
	}

	if ok {
		c.logger.Debugf("%s outgrew %s buffer (%d > %d vertices)", g.Cell, e.Bucket, g.VertexCount, e.Capacity)
		c.drop(g.Cell)
	}

	bucket := selectBucket(g.VertexCount)
	capacity := capacityFor(bucket, g.VertexCount)
	buf, err := c.device.Create(capacity)
	if err != nil {
		return false, fmt.Errorf("creating %s buffer: %w", bucket, err)
	}
	c.stats.Creates++
	if g.VertexCount > 0 {
		if err := c.device.Upload(buf, g.Vertices); err != nil {
			c.device.Destroy(buf)
			c.stats.Destroys++
			return false, fmt.Errorf("uploading to new buffer: %w", err)
		}
		c.stats.Uploads++
	}

	e = &Batch{Cell: g.Cell, Buffer: buf, Bucket: bucket, Capacity: capacity}
	e.set(g)
	c.entries[g.Cell] = e
	c.logger.Debugf("allocated %s buffer for %s (%d/%d vertices)", bucket, g.Cell, g.VertexCount, capacity)
	return g.VertexCount > 0, nil
}

func (b *Batch) set(g batch.Geometry) {
	b.Origin = g.Origin
	b.VertexCount = g.VertexCount
	b.Box = g.Box
	b.Digest = g.Digest
	b.Members = g.Members
}

// drop releases the cell's buffer, if any, and reports whether there was one.
func (c *Cache) drop(cell geom.Cell) bool {
	e, ok := c.entries[cell]
	if !ok {
		return false
	}
	c.device.Destroy(e.Buffer)
	c.stats.Destroys++
	delete(c.entries, cell)
	c.logger.Debugf("released %s buffer for %s", e.Bucket, cell)
	return true
}

// Release frees every buffer. Used on world reload and teardown.
func (c *Cache) Release() {
	for _, cell := range c.Cells() {
		c.drop(cell)
	}
}

// Has reports whether cell has a cached batch.
func (c *Cache) Has(cell geom.Cell) bool {
	_, ok := c.entries[cell]
	return ok
}

// Get returns a copy of the cell's batch.
func (c *Cache) Get(cell geom.Cell) (Batch, bool) {
	e, ok := c.entries[cell]
	if !ok {
		return Batch{}, false
	}
	return *e, true
}

// Len returns the number of cached batches.
func (c *Cache) Len() int { return len(c.entries) }

// Cells returns the cached cells in sorted order.
func (c *Cache) Cells() []geom.Cell {
	cells := make([]geom.Cell, 0, len(c.entries))
	for cell := range c.entries {
		cells = append(cells, cell)
	}
	slices.SortFunc(cells, geom.CompareCells)
	return cells
}

// Visit calls fn for every cached batch, in cell order. fn must not retain
// or modify the batch.
func (c *Cache) Visit(fn func(b *Batch)) {
	for _, cell := range c.Cells() {
		fn(c.entries[cell])
	}
}

// ValidateIntegrity checks that every cached cell is still populated and
// that every batch is backed by a live, large enough buffer.
func (c *Cache) ValidateIntegrity(m Membership) error {
	var errs []error
	for _, cell := range c.Cells() {
		e := c.entries[cell]
		if e.Cell != cell {
			errs = append(errs, fmt.Errorf("batch for %s is keyed under %s", e.Cell, cell))
		}
		if m.IsEmpty(cell) {
			errs = append(errs, fmt.Errorf("%s is cached but has no members", cell))
		}
		if e.Buffer == 0 {
			errs = append(errs, fmt.Errorf("%s has no buffer", cell))
		}
		if e.VertexCount < 0 || e.VertexCount > e.Capacity {
			errs = append(errs, fmt.Errorf("%s holds %d vertices in a %d-vertex buffer", cell, e.VertexCount, e.Capacity))
		}
		if e.Bucket != BucketXXL && e.Capacity != capacityFor(e.Bucket, e.VertexCount) {
			errs = append(errs, fmt.Errorf("%s has %d-vertex capacity in a %s bucket", cell, e.Capacity, e.Bucket))
		}
	}

	if len(errs) > 0 {
		logging.Base().Errorf("cache integrity check failed with %d errors", len(errs))
		for _, err := range errs {
			logging.Base().Errorf("  - %s", err)
		}
		return errors.Join(errs...)
	}
	return nil
}

// TryCompaction shrinks sparse buffers into smaller buckets.
func (c *Cache) TryCompaction() error {
	startTime := time.Now()
	shrunk, err := c.compactor.Compact(c)
	if shrunk > 0 {
		c.stats.CompactionEvents += shrunk
		c.stats.LastCompactionTimeUs = float64(time.Since(startTime).Microseconds())
	}
	return err
}
