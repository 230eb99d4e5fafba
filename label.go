package flowmesh

/*
   Copyright 2018 Bruno Moura <brunotm@gmail.com>

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/cespare/xxhash"
)

// Label annotates an element range [Index, Index+Width) of a port's current
// buffer view with opaque Data. Index is measured in elements relative to
// the start of an input's current buffer view (spec I3).
type Label struct {
	ID    string
	Data  interface{}
	Index int64
	Width int64
}

// NewLabel derives ID from the content of data rather than leaving the
// caller to invent one, the same way the teacher's record.go derives
// Record.ID as xxhash.Sum64(record.Value): two labels carrying equal Data
// collapse to the same ID regardless of which block produced them.
func NewLabel(data interface{}, index, width int64) Label {
	return Label{ID: stableID(data), Data: data, Index: index, Width: width}
}

func stableID(data interface{}) string {
	var b []byte
	switch v := data.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		b = []byte(fmt.Sprintf("%v", v))
	}
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}

// labelOrder sorts labels by (port is implicit per-slice, index) per spec's
// total ordering of labels by (port, index).
type labelOrder []Label

func (l labelOrder) Len() int           { return len(l) }
func (l labelOrder) Less(i, j int) bool { return l[i].Index < l[j].Index }
func (l labelOrder) Swap(i, j int)      { l[i], l[j] = l[j], l[i] }

func sortLabels(labels []Label) {
	sort.Stable(labelOrder(labels))
}

// splitLabels partitions labels at consumedElements: visible holds the
// labels whose index lies in [0, consumedElements), unchanged; remaining
// holds the rest, shifted so index is relative to the new view start.
// Port.Consume keeps remaining and discards visible.
func splitLabels(labels []Label, consumedElements int64) (visible, remaining []Label) {
	for _, l := range labels {
		if l.Index < consumedElements {
			visible = append(visible, l)
			continue
		}
		shifted := l
		shifted.Index -= consumedElements
		remaining = append(remaining, shifted)
	}
	return visible, remaining
}
