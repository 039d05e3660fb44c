package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"profmon/internal/models"
	"profmon/internal/providers"
	"profmon/internal/runner"
)

// Target state changes every poll; a short TTL keeps dashboards cheap
// without hiding changes for long.
const apiCacheTTL = 2 * time.Second

// TargetRegistry is the part of the coordinator the HTTP surface uses.
type TargetRegistry interface {
	Views() []models.TargetState
	View(username string) (models.TargetState, bool)
	Trigger(username string, cmd runner.Command) (found, accepted bool)
}

type ApiController struct {
	logger  providers.Logger
	targets TargetRegistry
	cache   providers.CacheProviderInterface
}

type controlResponse struct {
	Target   string `json:"target"`
	Command  string `json:"command"`
	Accepted bool   `json:"accepted"`
}

func NewApiController(logger providers.Logger, targets TargetRegistry, cache providers.CacheProviderInterface) *ApiController {
	return &ApiController{
		logger:  logger,
		targets: targets,
		cache:   cache,
	}
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, bool)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, data)
		return
	}

	result, found := compute()
	if !found {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ac.cache.Set(cacheKey, gson, apiCacheTTL)
	writeJSON(w, http.StatusOK, gson)
}

func (ac *ApiController) GetTargets(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, "targets", func() (any, bool) {
		return ac.targets.Views(), true
	})
}

func (ac *ApiController) GetTarget(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	ac.serveFromCacheOrCompute(w, "target:"+username, func() (any, bool) {
		view, ok := ac.targets.View(username)
		return view, ok
	})
}

// Control returns a handler delivering cmd to the target in the URL.
func (ac *ApiController) Control(cmd runner.Command) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := chi.URLParam(r, "username")
		found, accepted := ac.targets.Trigger(username, cmd)
		if !found {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		ac.logger.Infof(providers.TypePost, "Control %s for %s accepted=%t", cmd, username, accepted)

		gson, err := json.Marshal(controlResponse{Target: username, Command: cmd.String(), Accepted: accepted})
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		status := http.StatusAccepted
		if !accepted {
			status = http.StatusConflict
		}
		writeJSON(w, status, gson)
	}
}
