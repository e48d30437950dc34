package history

import (
	"encoding/json"
	"net/http"
	"strconv"

	"powercable/internal/wire"
)

// Handler serves the recorded history as JSON.
//
//	GET /api/history                  list of recorded topics
//	GET /api/history?topic=t          all entries of topic t
//	GET /api/history?topic=t&since=ms entries at or after the timestamp
func Handler(s *Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		topic := r.URL.Query().Get("topic")
		if topic == "" {
			json.NewEncoder(w).Encode(map[string][]string{"topics": s.Topics()})
			return
		}

		var entries []wire.ChartEntry
		if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
			since, err := strconv.ParseInt(sinceStr, 10, 64)
			if err != nil {
				http.Error(w, `{"error":"invalid since"}`, http.StatusBadRequest)
				return
			}
			entries = s.Since(topic, since)
		} else {
			entries = s.Entries(topic)
		}
		if entries == nil {
			entries = []wire.ChartEntry{}
		}

		json.NewEncoder(w).Encode(map[string]any{
			"topic":   topic,
			"entries": entries,
		})
	})
}
