package api

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// RebuildHandler starts a background rebuild and returns its job ID.
func (api *API) RebuildHandler(c *gin.Context) {
	jobID, err := api.engine.RebuildAsync("api")
	if err != nil {
		SendJobExecutionError(c, "rebuild", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "accepted",
		"message": "Index rebuild started",
		"job_id":  jobID,
	})
}

// RefreshHandler reloads the corpus from the configured source in the background.
func (api *API) RefreshHandler(c *gin.Context) {
	if api.source == nil {
		SendError(c, http.StatusNotImplemented, ErrorCodeNotConfigured, "No package source is configured")
		return
	}

	jobID, err := api.engine.RefreshAsync(api.source, "api")
	if err != nil {
		SendJobExecutionError(c, "refresh", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "accepted",
		"message": "Refresh from '" + api.source.Name() + "' started",
		"job_id":  jobID,
	})
}

// GetIndexStatsHandler returns statistics of the published snapshot
func (api *API) GetIndexStatsHandler(c *gin.Context) {
	stats, err := api.engine.Stats()
	if err != nil {
		SendEngineError(c, "index stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetSettingsHandler returns the live search settings
func (api *API) GetSettingsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, api.engine.Settings())
}

// SettingsUpdateRequest is a partial settings update; omitted fields keep their value.
type SettingsUpdateRequest struct {
	DefaultLimit *int      `json:"default_limit"`
	MaxLimit     *int      `json:"max_limit"`
	SdkLibraries *[]string `json:"sdk_libraries"`
}

// UpdateSettingsHandler applies a partial settings update. A change to the SDK
// library registry starts a rebuild so it reaches the published snapshot.
func (api *API) UpdateSettingsHandler(c *gin.Context) {
	var req SettingsUpdateRequest
	if result := ValidateJSONBinding(c, &req); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	settings := api.engine.Settings()
	original := settings.SdkLibraries
	updated := false

	if req.DefaultLimit != nil {
		settings.DefaultLimit = *req.DefaultLimit
		updated = true
	}
	if req.MaxLimit != nil {
		settings.MaxLimit = *req.MaxLimit
		updated = true
	}
	requiresRebuild := false
	if req.SdkLibraries != nil {
		settings.SdkLibraries = append([]string{}, (*req.SdkLibraries)...)
		requiresRebuild = !slices.Equal(original, settings.SdkLibraries)
		updated = true
	}

	if !updated {
		SendError(c, http.StatusBadRequest, ErrorCodeInvalidRequest, "No settings provided")
		return
	}
	if result := ValidateSettings(&settings); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	if err := api.engine.UpdateSettings(settings); err != nil {
		SendEngineError(c, "update settings", err)
		return
	}

	response := gin.H{
		"message":  "Settings updated",
		"settings": api.engine.Settings(),
	}
	if requiresRebuild {
		jobID, err := api.engine.RebuildAsync("settings")
		if err != nil {
			SendJobExecutionError(c, "rebuild", err)
			return
		}
		response["job_id"] = jobID
		c.JSON(http.StatusAccepted, response)
		return
	}
	c.JSON(http.StatusOK, response)
}
