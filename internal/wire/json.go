package wire

import "encoding/json"

// ChartEntry is one datapoint for the transformer/UI chart topics.
type ChartEntry struct {
	Topic     string `json:"topic"`
	Payload   int64  `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

func (c ChartEntry) Encode() []byte {
	b, _ := json.Marshal(c)
	return b
}

func DecodeChartEntry(b []byte) (ChartEntry, error) {
	var c ChartEntry
	err := json.Unmarshal(b, &c)
	return c, err
}

// Location is the map-display payload published on power/location and
// echoed back on worldmap/event.
type Location struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Icon    string  `json:"icon"`
	Label   string  `json:"label"`
	Color   string  `json:"color,omitempty"`
	Line    string  `json:"line,omitempty"`
	Deleted bool    `json:"deleted,omitempty"`
}

func (l Location) Encode() []byte {
	b, _ := json.Marshal(l)
	return b
}

func DecodeLocation(b []byte) (Location, error) {
	var l Location
	err := json.Unmarshal(b, &l)
	return l, err
}
