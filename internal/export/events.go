package export

import (
	"fmt"
	"io"

	"github.com/zheng/modgraph/internal/graph"
)

// EventRecord is the serialised form of one walk event
type EventRecord struct {
	Event        string       `json:"event" yaml:"event"`
	Item         graph.ItemID `json:"item" yaml:"item"`
	Target       graph.ItemID `json:"target,omitempty" yaml:"target,omitempty"`
	Relationship string       `json:"relationship,omitempty" yaml:"relationship,omitempty"`
	Depth        int          `json:"depth" yaml:"depth"`
}

// EventRecords converts walk events to records
func EventRecords(events []graph.Event) []EventRecord {
	records := make([]EventRecord, 0, len(events))
	for _, ev := range events {
		rec := EventRecord{Event: ev.Kind.String(), Item: ev.Node.Item.ID, Depth: ev.Depth}
		if ev.Kind == graph.EventEdge {
			rec.Target = ev.Target.Item.ID
			rec.Relationship = ev.Relationship.DisplayName()
		}
		records = append(records, rec)
	}
	return records
}

// WriteEvents encodes walk events as JSON or YAML
func WriteEvents(w io.Writer, events []graph.Event, format Format) error {
	records := EventRecords(events)
	switch format {
	case FormatJSON:
		return encodeJSON(w, records)
	case FormatYAML:
		return encodeYAML(w, records)
	}
	return fmt.Errorf("events cannot be exported as %q", format)
}
