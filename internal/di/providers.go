package di

import (
	"profmon/internal/notify"
	"profmon/internal/runner"
	"profmon/internal/structures"
)

// livenessObservers feeds heartbeats to the dashboard when it is served.
func livenessObservers(conf *structures.Config, hub *notify.Hub) []runner.LivenessObserver {
	if !conf.Notify.Dashboard.Enabled {
		return nil
	}
	return []runner.LivenessObserver{hub}
}
