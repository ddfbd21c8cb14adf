// Package dataset loads the pricing-plan table at startup. The file is
// validated against a JSON schema before decoding so malformed entries fail
// the process at load time, never on a per-question path.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	commonerrors "grounded-qa/internal/common/errors"
	"grounded-qa/internal/models"
)

const planSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "Platform": {"type": "string", "minLength": 1},
      "PlanName": {"type": "string", "minLength": 1},
      "Price": {"type": "number", "minimum": 0},
      "BillingPeriod": {"type": "string", "enum": ["Monthly", "Annual"]},
      "StorageGB": {"type": "number", "minimum": 0},
      "Features": {"type": "array", "items": {"type": "string"}}
    },
    "required": ["Platform", "PlanName", "Price", "BillingPeriod", "StorageGB", "Features"],
    "additionalProperties": false
  }
}`

// Load reads, validates, and decodes the dataset file. Any failure is a
// DATASET_ERROR; the dataset is immutable afterwards.
func Load(path string) (*models.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, commonerrors.NewDatasetError(path, err)
	}

	schemaLoader := gojsonschema.NewStringLoader(planSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, commonerrors.NewDatasetError(path, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return nil, commonerrors.NewDatasetError(path, fmt.Errorf("schema validation failed: %s", strings.Join(messages, "; ")))
	}

	var records []models.PlanRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, commonerrors.NewDatasetError(path, err)
	}

	if len(records) == 0 {
		return nil, commonerrors.NewDatasetError(path, fmt.Errorf("dataset contains no plans"))
	}

	return &models.Dataset{Records: records}, nil
}
