// Package plan groups scanned entries by depth so that deeper entries can be
// removed before the directories that contain them.
package plan

import (
	"sort"

	"turbodelete/internal/scan"
)

// Bucket holds every path found at one depth below the root
type Bucket struct {
	Depth int
	Paths []string
}

// Plan is the ordered removal schedule for one target. The root itself is
// not part of any bucket.
type Plan struct {
	Root    string
	Buckets []Bucket // descending depth
}

// Build partitions entries by depth. Paths keep their input order inside a
// bucket; buckets are sorted deepest first.
func Build(root string, entries []scan.Entry) *Plan {
	byDepth := make(map[int][]string)
	for _, e := range entries {
		byDepth[e.Depth] = append(byDepth[e.Depth], e.Path)
	}

	buckets := make([]Bucket, 0, len(byDepth))
	for depth, paths := range byDepth {
		buckets = append(buckets, Bucket{Depth: depth, Paths: paths})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Depth > buckets[j].Depth
	})

	return &Plan{Root: root, Buckets: buckets}
}

// Len returns the number of planned entries
func (p *Plan) Len() int {
	n := 0
	for _, b := range p.Buckets {
		n += len(b.Paths)
	}
	return n
}

// Depths lists the bucket depths in submission order
func (p *Plan) Depths() []int {
	out := make([]int, len(p.Buckets))
	for i, b := range p.Buckets {
		out[i] = b.Depth
	}
	return out
}

// MaxDepth is the depth of the deepest bucket, 0 for an empty plan
func (p *Plan) MaxDepth() int {
	if len(p.Buckets) == 0 {
		return 0
	}
	return p.Buckets[0].Depth
}
