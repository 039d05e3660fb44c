package controllers

import (
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

// DeliveryStats reports sink delivery counters.
type DeliveryStats interface {
	Stats() (delivered, failed int64)
}

type HealthController struct {
	targets   TargetRegistry
	delivery  DeliveryStats
	startTime time.Time
}

type healthResponse struct {
	Status        string  `json:"status"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Targets       int     `json:"targets"`
	Active        int     `json:"active"`
	Delivered     int64   `json:"delivered"`
	DeliveryFails int64   `json:"delivery_failures"`
}

// Health answers 503 once every target is terminal.
func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	views := hc.targets.Views()
	active := 0
	for _, v := range views {
		if !v.State.Terminal() {
			active++
		}
	}
	delivered, failed := hc.delivery.Stats()

	uptime := time.Since(hc.startTime)
	resp := healthResponse{
		Status:        "ok",
		Uptime:        formatDuration(uptime),
		UptimeSeconds: uptime.Seconds(),
		Targets:       len(views),
		Active:        active,
		Delivered:     delivered,
		DeliveryFails: failed,
	}
	status := http.StatusOK
	if active == 0 {
		resp.Status = "stopped"
		status = http.StatusServiceUnavailable
	}

	gson, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, status, gson)
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(targets TargetRegistry, delivery DeliveryStats) *HealthController {
	return &HealthController{
		targets:   targets,
		delivery:  delivery,
		startTime: time.Now(),
	}
}
