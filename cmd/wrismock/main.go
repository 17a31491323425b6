// Command wrismock serves an offline stand-in for the WRIS station-query and
// postal lookup services, for local runs of ingestd without network access.
//
// Usage:
//
//	go run ./cmd/wrismock -addr :9090 -stations 750
//	WRIS_BASE_URL=http://localhost:9090 POSTAL_BASE_URL=http://localhost:9090 \
//	  go run ./cmd/ingestd -state "Andhra Pradesh"
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var villages = []string{"Alpha", "Beta", "Gamma", "Delta", "Epsilon", "Zeta"}

var districts = []string{"Guntur", "Krishna", "Prakasam", "Nellore"}

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	stations := flag.Int("stations", 750, "number of synthetic stations")
	seed := flag.Int64("seed", 1, "rng seed for reproducible fixtures")
	flag.Parse()

	features := makeFeatures(*stations, rand.New(rand.NewSource(*seed)))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /query", handleQuery(features))
	mux.HandleFunc("GET /postoffice/{place}", handlePostOffice)

	log.Printf("wrismock listening on %s with %d stations", *addr, *stations)
	log.Fatal(http.ListenAndServe(*addr, mux))
}

func makeFeatures(n int, rng *rand.Rand) []map[string]any {
	base := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	out := make([]map[string]any, n)
	for i := range n {
		district := districts[i%len(districts)]
		out[i] = map[string]any{
			"attributes": map[string]any{
				"state_name":       "Andhra Pradesh",
				"district_name":    district,
				"block_name":       fmt.Sprintf("Block-%d", i%10),
				"village_name":     villages[i%len(villages)],
				"station_code":     fmt.Sprintf("AP%05d", i),
				"water_level":      2 + rng.Float64()*28,
				"measurement_date": base.AddDate(0, 0, -i%30).UnixMilli(),
				"trend":            []string{"Rising", "Falling", "Stable"}[i%3],
			},
			"geometry": map[string]any{
				"x": 78.0 + rng.Float64()*4,
				"y": 14.0 + rng.Float64()*4,
			},
		}
	}
	return out
}

// handleQuery mimics the ArcGIS layer: a where clause filter plus
// resultOffset / resultRecordCount pagination.
func handleQuery(features []map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		where := q.Get("where")
		offset, _ := strconv.Atoi(q.Get("resultOffset"))
		count, _ := strconv.Atoi(q.Get("resultRecordCount"))
		if count <= 0 {
			count = 1000
		}

		// Match only the exact-case clause; other variants come back empty,
		// which exercises the client's clause fallback.
		matched := where == "1=1" || strings.Contains(where, "state_name='Andhra Pradesh'")

		page := []map[string]any{}
		if matched && offset < len(features) {
			end := min(offset+count, len(features))
			page = features[offset:end]
		}

		writeJSON(w, map[string]any{"features": page})
	}
}

// handlePostOffice mimics the postal lookup wire shape.
func handlePostOffice(w http.ResponseWriter, r *http.Request) {
	place := r.PathValue("place")

	for vi, v := range villages {
		if strings.EqualFold(v, place) {
			offices := []map[string]any{}
			for di, d := range districts {
				offices = append(offices, map[string]any{
					"Name":     place + " S.O",
					"Pincode":  fmt.Sprintf("5%02d%03d", vi, di*7+100),
					"District": d,
					"State":    "Andhra Pradesh",
				})
			}
			writeJSON(w, []map[string]any{{"Status": "Success", "PostOffice": offices}})
			return
		}
	}

	writeJSON(w, []map[string]any{{"Status": "Error", "Message": "No records found"}})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}
