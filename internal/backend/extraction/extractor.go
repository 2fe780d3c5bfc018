package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
)

// ErrNoStructuredBlock is returned when the response has no ```json fenced block
var ErrNoStructuredBlock = errors.New("no structured block found in the response")

// ErrInvalidJSON wraps parser failures of the fenced block
var ErrInvalidJSON = errors.New("extracted JSON data is not valid")

var jsonBlockPattern = regexp.MustCompile("(?s)```json\n(.*?)\n```")

var requiredKeys = []string{"identifier", "date", "correspondent", "summary"}

// Validation rules, reported in ValidationError.Rule
const (
	RuleSingleObject = "single-object"
	RuleRequiredKey  = "required-key"
	RuleStringValue  = "string-value"
	RuleDate         = "iso8601-date"
	RuleTagsArray    = "tags-array"
	RuleTagsStrings  = "tags-strings"
)

// ValidationError describes the first schema rule a block violated
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// FindBlock returns the content of the first ```json fenced block
func FindBlock(response string) (string, error) {
	match := jsonBlockPattern.FindStringSubmatch(response)
	if match == nil {
		return "", ErrNoStructuredBlock
	}
	return match[1], nil
}

// Extract locates, parses and validates the record embedded in a model response
func Extract(response string) (*ExtractionRecord, error) {
	block, err := FindBlock(response)
	if err != nil {
		return nil, err
	}

	var document any
	if err := json.Unmarshal([]byte(block), &document); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if _, isObject := document.(map[string]any); isObject {
		// decode again so extra numeric values keep their exact text
		if object, err := decodeObject([]byte(block)); err == nil {
			document = object
		}
	}

	return Validate(document)
}

// ExtractFile reads a saved response and extracts the record from it
func ExtractFile(path string) (*ExtractionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read response file %s: %w", path, err)
	}
	return Extract(string(data))
}

// Validate checks a decoded JSON document against the record schema. Checks run in a
// fixed order and stop at the first violation.
func Validate(document any) (*ExtractionRecord, error) {
	object, ok := document.(map[string]any)
	if !ok {
		return nil, &ValidationError{Rule: RuleSingleObject, Message: "JSON must be a single object"}
	}

	values := make(map[string]string, len(requiredKeys))
	for _, key := range requiredKeys {
		raw, exists := object[key]
		if !exists {
			return nil, &ValidationError{Rule: RuleRequiredKey, Message: "missing required key: " + key}
		}
		value, isString := raw.(string)
		if !isString {
			return nil, &ValidationError{Rule: RuleStringValue, Message: fmt.Sprintf("value for '%s' must be a string", key)}
		}
		values[key] = value
	}

	if _, err := ParseISODate(values["date"]); err != nil {
		return nil, &ValidationError{Rule: RuleDate, Message: fmt.Sprintf("invalid date: %q is not ISO8601", values["date"])}
	}

	record := &ExtractionRecord{
		Identifier:    values["identifier"],
		Date:          values["date"],
		Correspondent: values["correspondent"],
		Summary:       values["summary"],
	}

	if raw, exists := object["tags"]; exists {
		items, isArray := raw.([]any)
		if !isArray {
			return nil, &ValidationError{Rule: RuleTagsArray, Message: "tags must be an array"}
		}
		tags := make([]string, 0, len(items))
		for _, item := range items {
			tag, isString := item.(string)
			if !isString {
				return nil, &ValidationError{Rule: RuleTagsStrings, Message: "tags must be strings"}
			}
			tags = append(tags, tag)
		}
		record.Tags = tags
	}
	record.Extra = extraKeys(object)

	return record, nil
}
