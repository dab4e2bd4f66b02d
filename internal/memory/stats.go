package memory

import (
	"strings"

	"github.com/dustin/go-humanize"
)

// Stats tracks performance metrics for the cache.
type Stats struct {
	TotalBatches    int
	TotalVertices   int64
	TotalCapacity   int64 // vertices
	TotalGPUBytes   int64
	BucketSizeStats map[BucketSize]BucketSizeStats

	Creates              int
	Uploads              int
	SkippedUploads       int // rebuilds with unchanged content
	Destroys             int
	Failures             int
	CompactionEvents     int
	LastCompactionTimeUs float64
	LastSyncTimeUs       float64
}

// BucketSizeStats tracks metrics across batches of a specific size.
type BucketSizeStats struct {
	BatchCount int
	Vertices   int64
	Capacity   int64
	GPUBytes   int64
}

// Utilization is the used fraction of the bucket's capacity.
func (s BucketSizeStats) Utilization() float64 {
	if s.Capacity == 0 {
		return 0
	}
	return float64(s.Vertices) / float64(s.Capacity)
}

// Stats returns current statistics.
func (c *Cache) Stats() Stats {
	c.updateStats()
	return c.stats
}

func (c *Cache) updateStats() {
	c.stats.TotalBatches = len(c.entries)
	c.stats.TotalVertices = 0
	c.stats.TotalCapacity = 0
	c.stats.TotalGPUBytes = 0
	c.stats.BucketSizeStats = make(map[BucketSize]BucketSizeStats)

	for _, e := range c.entries {
		bs := c.stats.BucketSizeStats[e.Bucket]
		bs.BatchCount++
		bs.Vertices += int64(e.VertexCount)
		bs.Capacity += int64(e.Capacity)
		bs.GPUBytes += int64(e.Capacity * BytesPerVertex)
		c.stats.BucketSizeStats[e.Bucket] = bs

		c.stats.TotalVertices += int64(e.VertexCount)
		c.stats.TotalCapacity += int64(e.Capacity)
		c.stats.TotalGPUBytes += int64(e.Capacity * BytesPerVertex)
	}
}

// PrintStats outputs cache statistics with visual bars.
func (c *Cache) PrintStats() {
	stats := c.Stats()

	util := 0.0
	if stats.TotalCapacity > 0 {
		util = float64(stats.TotalVertices) / float64(stats.TotalCapacity)
	}

	c.logger.Info("===== Buffer Cache Stats =====")
	c.logger.Infof("%d creates, %d uploads (%d skipped as unchanged), %d destroys, %d failures",
		stats.Creates, stats.Uploads, stats.SkippedUploads, stats.Destroys, stats.Failures)
	c.logger.Infof("%d compactions (%.2fμs last), last sync %.2fμs",
		stats.CompactionEvents, stats.LastCompactionTimeUs, stats.LastSyncTimeUs)
	c.logger.Infof("%s %.1f%% capacity used, %d batches, %s GPU (%s triangles, %s vertices)",
		makeUtilizationBar(util, 12),
		util*100,
		stats.TotalBatches,
		humanize.IBytes(uint64(stats.TotalGPUBytes)),
		humanize.Comma(stats.TotalVertices/3),
		humanize.Comma(stats.TotalVertices),
	)

	for _, bucketSize := range bucketSizes {
		bs, ok := stats.BucketSizeStats[bucketSize]
		if !ok || bs.BatchCount == 0 {
			continue
		}
		c.logger.Infof("  [%8s] %s %.0f%% capacity used, %d batches, %s GPU (%s vertices)",
			bucketSize.String(),
			makeUtilizationBar(bs.Utilization(), 12),
			bs.Utilization()*100,
			bs.BatchCount,
			humanize.IBytes(uint64(bs.GPUBytes)),
			humanize.Comma(bs.Vertices),
		)
	}
	c.logger.Info("==============================")
}

// makeUtilizationBar creates a visual bar for utilization percentage.
func makeUtilizationBar(utilization float64, width int) string {
	if utilization < 0 {
		utilization = 0
	}
	if utilization > 1 {
		utilization = 1
	}

	filled := int(utilization * float64(width))
	empty := width - filled

	return strings.Repeat("█", filled) + strings.Repeat("░", empty)
}
