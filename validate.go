package propertygrid

import "fmt"

// Validate reports field-level input errors that block a search. It expects
// sanitized filters and only checks fields that would be sent: searchable
// fields other than SearchBy are ignored.
func Validate(schema *TableSchema, filters FilterState) error {
	fields := map[string]string{}

	if filters.SearchBy != "" && len(schema.SearchableFields()) > 0 && !schema.IsSearchable(filters.SearchBy) {
		fields[filters.SearchBy] = fmt.Sprintf("%s is not a searchable field", filters.SearchBy)
	}

	for key, v := range filters.Values {
		fc, ok := schema.Field(key)
		if !ok || fc.pattern == nil {
			continue
		}
		if schema.IsSearchable(fc.Key) && NormalizeKey(fc.Key) != NormalizeKey(filters.SearchBy) {
			continue
		}
		var texts []string
		switch val := v.(type) {
		case Text:
			texts = []string{string(val)}
		case MultiText:
			texts = val
		}
		for _, s := range texts {
			if !fc.pattern.MatchString(s) {
				fields[fc.Key] = validationMessage(fc)
				break
			}
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func validationMessage(fc *FieldCapability) string {
	if fc.Validation != nil && fc.Validation.Message != "" {
		return fc.Validation.Message
	}
	return fmt.Sprintf("%s is not valid", fc.Label)
}
