package model

import (
	"strings"
	"time"
)

// PackageDocument is the metadata of a single package as supplied by the crawler/storage layer.
// The Name is the only required field and identifies the document.
// Documents are replaced wholesale on update; readers never observe a partial mutation.
type PackageDocument struct {
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Tags           []string  `json:"tags,omitempty"` // Platform/tag labels, e.g. "platform:web", "sdk:flutter"
	Popularity     float64   `json:"popularity"`
	Health         float64   `json:"health"`
	Maintenance    float64   `json:"maintenance"`
	Created        time.Time `json:"created"`
	Updated        time.Time `json:"updated"`
	Versions       []string  `json:"versions,omitempty"`
	IsDiscontinued bool      `json:"is_discontinued,omitempty"`
}

// Text returns the free-text content used for indexing: name, description and tags.
func (d PackageDocument) Text() string {
	parts := make([]string, 0, 2+len(d.Tags))
	parts = append(parts, d.Name)
	if d.Description != "" {
		parts = append(parts, d.Description)
	}
	parts = append(parts, d.Tags...)
	return strings.Join(parts, " ")
}

// HasTag reports whether the document carries the given tag (case-insensitive).
func (d PackageDocument) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can't mutate slices shared with the store.
func (d PackageDocument) Clone() PackageDocument {
	c := d
	if d.Tags != nil {
		c.Tags = append([]string(nil), d.Tags...)
	}
	if d.Versions != nil {
		c.Versions = append([]string(nil), d.Versions...)
	}
	return c
}
