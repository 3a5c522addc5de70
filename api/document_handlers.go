package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/package-search/model"
)

// AddPackagesHandler stores one package object or an array of them.
// Changes become searchable after the next rebuild; pass ?rebuild=true to
// start one right away.
func (api *API) AddPackagesHandler(c *gin.Context) {
	var raw json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		SendInvalidJSONError(c, err)
		return
	}

	docs, err := decodePackages(raw)
	if err != nil {
		SendError(c, http.StatusBadRequest, ErrorCodeInvalidRequest, err.Error())
		return
	}

	if result := ValidatePackages(docs); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	if err := api.engine.AddPackages(docs); err != nil {
		SendEngineError(c, "add packages", err)
		return
	}

	response := gin.H{
		"message":       fmt.Sprintf("%d package(s) added/updated", len(docs)),
		"package_count": len(docs),
	}

	if c.Query("rebuild") == "true" {
		jobID, err := api.engine.RebuildAsync("api")
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

// decodePackages accepts either a single document object or an array.
func decodePackages(raw json.RawMessage) ([]model.PackageDocument, error) {
	var docs []model.PackageDocument
	if err := json.Unmarshal(raw, &docs); err == nil {
		return docs, nil
	}

	var doc model.PackageDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid request body, expecting a package object or an array of packages: %w", err)
	}
	return []model.PackageDocument{doc}, nil
}

// GetPackageHandler retrieves a stored package by name
func (api *API) GetPackageHandler(c *gin.Context) {
	name := c.Param("name")
	if result := ValidatePackageName(name); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	doc, err := api.engine.GetPackage(name)
	if err != nil {
		SendEngineError(c, "get package", err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

// DeletePackageHandler removes a package from the store
func (api *API) DeletePackageHandler(c *gin.Context) {
	name := c.Param("name")
	if result := ValidatePackageName(name); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	if err := api.engine.DeletePackage(name); err != nil {
		SendEngineError(c, "delete package", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Package '" + name + "' deleted"})
}
