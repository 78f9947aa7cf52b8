// SPDX-License-Identifier: MIT
package feature

// Region is a maximal run of modified samples, Start and End inclusive.
type Region struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of samples in the region.
func (r Region) Len() int {
	return r.End - r.Start + 1
}

// Regions scans the modification flags and returns every maximal contiguous
// run of modified samples in index order.
func (d *Data) Regions() []Region {
	var regions []Region
	start := -1
	for i := range d.samples {
		if d.samples[i].WasModified {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			regions = append(regions, Region{Start: start, End: i - 1})
			start = -1
		}
	}
	if start >= 0 {
		regions = append(regions, Region{Start: start, End: len(d.samples) - 1})
	}
	return regions
}

// coalesceRegions merges regions whose margin-extended spans overlap or touch,
// so no two patches ever blend over the same samples. Input must be sorted
// by Start and non-overlapping, as returned by Regions.
func coalesceRegions(regions []Region, margin int) []Region {
	if len(regions) < 2 {
		return regions
	}
	merged := make([]Region, 0, len(regions))
	cur := regions[0]
	for _, next := range regions[1:] {
		if next.Start-margin <= cur.End+margin+1 {
			cur.End = next.End
			continue
		}
		merged = append(merged, cur)
		cur = next
	}
	return append(merged, cur)
}
