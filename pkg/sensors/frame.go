// Package sensors reads the ranging sensor board and provides distance
// snapshots to the decision engine.
//
// The board streams one JSON object per line:
//
//	{"dist":{"33":0.41,"90":1.2,"0":null,"-33":0.8,"-90":2.5,"180":0.3},"color":[12,40,33]}
//
// Distances are meters keyed by mounting angle. null marks a sensor error.
package sensors

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/gwillem/rover/pkg/motion"
)

// Frame is one decoded sensor board line.
type Frame struct {
	Ranging motion.Ranging
	Color   [3]int
}

type wireFrame struct {
	Dist  map[string]*float64 `json:"dist"`
	Color []int               `json:"color"`
}

// EmptyRanging returns a snapshot with every sensor unread.
func EmptyRanging() motion.Ranging {
	var r motion.Ranging
	for i, a := range motion.Angles() {
		r[i] = motion.Reading{Angle: a, Distance: math.NaN()}
	}
	return r
}

// ParseFrame decodes one line from the sensor board. Missing or null
// distances are returned as NaN.
func ParseFrame(line []byte) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(line, &w); err != nil {
		return Frame{}, fmt.Errorf("parse sensor frame: %w", err)
	}
	if w.Dist == nil {
		return Frame{}, fmt.Errorf("parse sensor frame: no dist field")
	}

	f := Frame{Ranging: EmptyRanging()}
	for i, a := range motion.Angles() {
		if v := w.Dist[strconv.Itoa(a)]; v != nil {
			f.Ranging[i].Distance = *v
		}
	}
	copy(f.Color[:], w.Color)
	return f, nil
}
