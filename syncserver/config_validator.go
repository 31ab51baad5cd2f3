package syncserver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tarikbc/accountmonitor/models"

	"github.com/xeipuuv/gojsonschema"
)

const configSchema = `{
	"type": "object",
	"required": ["userId", "enabled"],
	"properties": {
		"userId": { "type": "string", "minLength": 1 },
		"enabled": { "type": "boolean" },
		"triggers": {
			"type": "object",
			"additionalProperties": { "type": "boolean" }
		},
		"thresholds": {
			"type": "object",
			"additionalProperties": { "type": "number", "minimum": 0 }
		},
		"cooldownMinutes": { "type": "number", "minimum": 0 }
	}
}`

// ConfigValidator checks full-config writes: structural validity against the
// schema, plus warning <= critical for every explicitly configured pair.
// Toggle writes bypass it; they only flip booleans.
type ConfigValidator struct {
	schemaLoader gojsonschema.JSONLoader
}

func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		schemaLoader: gojsonschema.NewStringLoader(configSchema),
	}
}

func (v *ConfigValidator) Validate(config *models.AlertConfig) error {
	configBytes, err := json.Marshal(config)
	if err != nil {
		return err
	}

	result, err := gojsonschema.Validate(v.schemaLoader, gojsonschema.NewBytesLoader(configBytes))
	if err != nil {
		return err
	}
	if !result.Valid() {
		descriptions := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			descriptions = append(descriptions, resultError.String())
		}
		return fmt.Errorf("invalid alert config: %s", strings.Join(descriptions, "; "))
	}

	return v.checkThresholdOrder(config)
}

func (v *ConfigValidator) checkThresholdOrder(config *models.AlertConfig) error {
	for key, warning := range config.Thresholds {
		metricId, ok := strings.CutSuffix(key, "Warning")
		if !ok {
			continue
		}
		critical, ok := config.Thresholds[metricId+"Critical"]
		if !ok {
			continue
		}
		if warning > critical {
			return fmt.Errorf("invalid alert config: %s warning threshold %v exceeds critical threshold %v", metricId, warning, critical)
		}
	}
	return nil
}
