package spatial

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"unidrome/internal/aerodrome"
)

// Noise is the label of points that belong to no cluster.
const Noise = -1

// Clustering parameters used by the combine workflow. Eps is in degrees.
const (
	DefaultEps        = 0.005
	DefaultMinSamples = 2
)

const unclassified = -2

// Clustering is the result of DBSCAN.
type Clustering struct {
	Labels   []int
	Clusters int
	Noise    int
}

// DBSCAN clusters points by Euclidean distance in coordinate space. A point
// is a core point when at least minSamples points, itself included, lie
// within eps. Labels are numbered from 0 in order of the first core point
// of each cluster.
func DBSCAN(points []orb.Point, eps float64, minSamples int) Clustering {
	objs := make([]rtreego.Spatial, len(points))
	for i, p := range points {
		objs[i] = &entry{idx: i, point: p}
	}
	tree := rtreego.NewTree(2, 25, 50, objs...)

	neighbours := func(i int) []int {
		p := points[i]
		rect, err := rtreego.NewRectFromPoints(
			rtreego.Point{p.X() - eps, p.Y() - eps},
			rtreego.Point{p.X() + eps, p.Y() + eps},
		)
		if err != nil {
			return nil
		}
		var out []int
		for _, h := range tree.SearchIntersect(rect) {
			e := h.(*entry)
			if math.Hypot(e.point.X()-p.X(), e.point.Y()-p.Y()) <= eps {
				out = append(out, e.idx)
			}
		}
		sort.Ints(out)
		return out
	}

	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = unclassified
	}

	cluster := 0
	for i := range points {
		if labels[i] != unclassified {
			continue
		}
		nb := neighbours(i)
		if len(nb) < minSamples {
			labels[i] = Noise
			continue
		}
		labels[i] = cluster
		queue := nb
		for k := 0; k < len(queue); k++ {
			j := queue[k]
			if labels[j] == Noise {
				labels[j] = cluster
				continue
			}
			if labels[j] != unclassified {
				continue
			}
			labels[j] = cluster
			if nbj := neighbours(j); len(nbj) >= minSamples {
				queue = append(queue, nbj...)
			}
		}
		cluster++
	}

	c := Clustering{Labels: labels, Clusters: cluster}
	for _, l := range labels {
		if l == Noise {
			c.Noise++
		}
	}
	return c
}

// ClusterProperty is the property carrying the DBSCAN label.
const ClusterProperty = "cluster"

// Dissolve builds one feature per cluster, a MultiPoint of its members with
// the first non-empty value of each prefixed column, followed by one Point
// feature per noise record.
func Dissolve(records []aerodrome.Record, labels []int) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	members := make(map[int][]aerodrome.Record)
	var order []int
	var singles []aerodrome.Record
	for i, r := range records {
		l := labels[i]
		if l == Noise {
			singles = append(singles, r)
			continue
		}
		if _, ok := members[l]; !ok {
			order = append(order, l)
		}
		members[l] = append(members[l], r)
	}
	sort.Ints(order)

	for _, l := range order {
		var mp orb.MultiPoint
		props := geojson.Properties{}
		for _, r := range members[l] {
			mp = append(mp, r.Point)
			for k, v := range r.PrefixedFields() {
				if v == "" {
					continue
				}
				if _, ok := props[k]; !ok {
					props[k] = v
				}
			}
		}
		props[ClusterProperty] = l
		f := geojson.NewFeature(mp)
		f.Properties = props
		fc.Append(f)
	}

	for _, r := range singles {
		props := geojson.Properties{}
		for k, v := range r.PrefixedFields() {
			if v != "" {
				props[k] = v
			}
		}
		props[ClusterProperty] = Noise
		f := geojson.NewFeature(r.Point)
		f.Properties = props
		fc.Append(f)
	}
	return fc
}
