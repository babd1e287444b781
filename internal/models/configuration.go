package models

import (
	"strings"
	"time"
)

// ConfigurationType defines supported types for configuration values.
type ConfigurationType string

const (
	ConfigurationTypeString       ConfigurationType = "STRING"
	ConfigurationTypeStepTemplate ConfigurationType = "STEP_TEMPLATE"
)

// ClearanceTemplateKeyPrefix namespaces per-department approval chain overrides.
const ClearanceTemplateKeyPrefix = "clearance_template."

// ClearanceTemplateKey returns the configuration key holding the chain for a department.
func ClearanceTemplateKey(department string) string {
	return ClearanceTemplateKeyPrefix + strings.ToLower(strings.TrimSpace(department))
}

// Configuration represents a persisted configuration entry.
type Configuration struct {
	Key         string            `db:"key" json:"key"`
	Value       string            `db:"value" json:"value"`
	Type        ConfigurationType `db:"type" json:"type"`
	Description *string           `db:"description" json:"description,omitempty"`
	UpdatedBy   *string           `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}
