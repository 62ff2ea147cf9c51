// Package service implements the finding-synthesis pipeline: activation-field
// region detection, region characterization, whole-image profiling, view and
// laterality determination and risk aggregation.
package service

import (
	"sort"

	"github.com/mammo-screening-server/internal/domain"
	"github.com/mammo-screening-server/internal/imaging"
)

// RawRegion is a detected connected component before characterization.
// Coordinates are in source-image pixels; Peak and Mean are activation values
// in [0, 1] sampled over the component's cells.
type RawRegion struct {
	BBox           domain.BoundingBox
	Peak           float64
	Mean           float64
	AreaCells      int
	AreaPercentage float64
}

// Confidence is the region confidence on the 0-100 scale, derived from the
// component's peak activation.
func (r RawRegion) Confidence() float64 {
	return r.Peak * 100.0
}

// RegionDetector extracts suspicious regions from an activation field by
// thresholding and 8-connected component labeling.
type RegionDetector struct {
	cfg domain.PipelineConfig
}

// NewRegionDetector creates a detector with the given tuning parameters.
func NewRegionDetector(cfg domain.PipelineConfig) *RegionDetector {
	if cfg.ActivationThreshold == 0 {
		cfg.ActivationThreshold = 0.5
	}
	if cfg.MaxRegions == 0 {
		cfg.MaxRegions = 10
	}
	return &RegionDetector{cfg: cfg}
}

// Detect binarizes field at the activation threshold, labels 8-connected
// components, filters by minimum area and tissue coverage, and returns the
// survivors ordered by peak activation descending, capped at MaxRegions.
// Bounding boxes are scaled to the given source-image dimensions.
//
// An empty result is the normal "no suspicious regions" outcome, not an
// error. Components are disjoint by construction of the thresholded mask,
// so no merge step exists.
func (d *RegionDetector) Detect(field *imaging.Field, tissueMask []bool, imgWidth, imgHeight int) []RawRegion {
	w, h := field.Width, field.Height
	if w == 0 || h == 0 {
		return nil
	}

	binary := make([]bool, len(field.Values))
	for i, v := range field.Values {
		binary[i] = v > d.cfg.ActivationThreshold
	}

	minCells := int(d.cfg.MinAreaFraction * float64(len(field.Values)))

	scaleX := float64(imgWidth) / float64(w)
	scaleY := float64(imgHeight) / float64(h)

	visited := make([]bool, len(binary))
	var regions []RawRegion

	for start := range binary {
		if !binary[start] || visited[start] {
			continue
		}
		cells := floodFill(binary, visited, w, h, start)
		if len(cells) < minCells {
			continue
		}

		minX, minY := w, h
		maxX, maxY := 0, 0
		peak, sum := 0.0, 0.0
		tissueCells := 0
		for _, c := range cells {
			x, y := c%w, c/w
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
			v := field.Values[c]
			if v > peak {
				peak = v
			}
			sum += v
			if c < len(tissueMask) && tissueMask[c] {
				tissueCells++
			}
		}

		// Components sitting mostly on background are projector artifacts,
		// not findings.
		if len(tissueMask) > 0 && float64(tissueCells)/float64(len(cells)) < 0.4 {
			continue
		}

		bbox := domain.BoundingBox{
			X1: int(float64(minX) * scaleX),
			Y1: int(float64(minY) * scaleY),
			X2: int(float64(maxX+1) * scaleX),
			Y2: int(float64(maxY+1) * scaleY),
		}
		areaPct := float64(bbox.Width()*bbox.Height()) / float64(imgWidth*imgHeight) * 100.0

		regions = append(regions, RawRegion{
			BBox:           bbox,
			Peak:           peak,
			Mean:           sum / float64(len(cells)),
			AreaCells:      len(cells),
			AreaPercentage: areaPct,
		})
	}

	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].Peak > regions[j].Peak
	})
	if len(regions) > d.cfg.MaxRegions {
		regions = regions[:d.cfg.MaxRegions]
	}
	return regions
}

// floodFill collects one 8-connected component by breadth-first traversal.
func floodFill(binary, visited []bool, w, h, start int) []int {
	queue := []int{start}
	visited[start] = true
	var cells []int

	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		cells = append(cells, c)

		cx, cy := c%w, c/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				nx, ny := cx+dx, cy+dy
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				n := ny*w + nx
				if binary[n] && !visited[n] {
					visited[n] = true
					queue = append(queue, n)
				}
			}
		}
	}
	return cells
}
