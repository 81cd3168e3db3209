package dash

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/veridian-dash/veridian/lib/entity"
)

//go:embed alerts_schema.json
var alertsSchemaBytes []byte

var (
	alertsSchemaOnce sync.Once
	alertsSchemaC    *gojsonschema.Schema
	alertsSchemaErr  error
)

func loadAlertsSchema() (*gojsonschema.Schema, error) {
	alertsSchemaOnce.Do(func() {
		alertsSchemaC, alertsSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(alertsSchemaBytes))
		if alertsSchemaErr != nil {
			alertsSchemaErr = fmt.Errorf("compile alert schema: %w", alertsSchemaErr)
		}
	})
	return alertsSchemaC, alertsSchemaErr
}

// ValidateAlertConfigurations checks a JSON document against the alert configuration
// schema (enum values, required fields, no unknown fields). Violations are reported as
// entity validation errors listing every failing field.
func ValidateAlertConfigurations(document []byte) error {
	schema, err := loadAlertsSchema()
	if err != nil {
		return err
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return entity.NewError(entity.RetCValidation, "invalid alert configurations: %v", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return entity.NewError(entity.RetCValidation, "invalid alert configurations: %s", strings.Join(problems, "; "))
}
