package output

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"memguard/internal/engine"
	"memguard/internal/monitor"
)

// Section constants to avoid hardcoded strings
const (
	SectionMemory   = "memory"
	SectionRecovery = "recovery"
)

// Report view-model types (no printing here)
type Item struct {
	Key    string  `json:"key"`
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit,omitempty"`
	Status string  `json:"status,omitempty"`
	Note   string  `json:"note,omitempty"`
}

type Section struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Items []Item `json:"items"`
}

type Report struct {
	Sections []Section `json:"sections"`
	Level    string    `json:"pressure_level"`
}

// BuildReport converts a status and a batch of strategy results into
// report sections.
func BuildReport(st monitor.Status, results []engine.Result) Report {
	memory := Section{ID: SectionMemory, Title: "Memory"}
	memory.Items = append(memory.Items,
		Item{Key: "percent_used", Label: "Used", Value: st.PercentUsed, Unit: "%", Status: st.PressureLevel},
		Item{Key: "available_mb", Label: "Available", Value: st.AvailableMB, Unit: "MB"},
		Item{Key: "process_rss_mb", Label: "Process RSS", Value: st.ProcessRSSMB, Unit: "MB"},
		Item{Key: "live_objects", Label: "Live Objects", Value: float64(st.LiveObjects)},
		Item{Key: "recovery_count", Label: "Recoveries", Value: float64(st.RecoveryCount), Note: st.LastRecovery},
	)

	rec := Section{ID: SectionRecovery, Title: "Recovery"}
	for _, r := range results {
		status := "ok"
		if len(r.Errors) > 0 {
			status = "partial"
		}
		rec.Items = append(rec.Items, Item{
			Key:    r.Strategy,
			Label:  r.Action,
			Value:  float64(r.Duration.Microseconds()) / 1000,
			Unit:   "ms",
			Status: status,
			Note:   summarizeDetails(r),
		})
	}

	return Report{
		Sections: []Section{memory, rec},
		Level:    st.PressureLevel,
	}
}

// summarizeDetails renders details as sorted key=value pairs followed by
// any per-handle errors.
func summarizeDetails(r engine.Result) string {
	keys := make([]string, 0, len(r.Details))
	for k := range r.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+len(r.Errors))
	for _, k := range keys {
		parts = append(parts, k+"="+formatValue(r.Details[k]))
	}
	parts = append(parts, r.Errors...)
	return strings.Join(parts, " ")
}

func (r Report) SectionByID(id string) *Section {
	for i := range r.Sections {
		if r.Sections[i].ID == id {
			return &r.Sections[i]
		}
	}
	return nil
}

func (s Section) ItemByKey(key string) *Item {
	for i := range s.Items {
		if s.Items[i].Key == key {
			return &s.Items[i]
		}
	}
	return nil
}

func formatValue(v any) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
