package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// Properties is a free-form JSON bag stored in a single longtext/json
// column. The core persists it opaquely: Organization/CourseFamily/Course
// use it for external-provider coordinates (e.g. GitLab group/project ids),
// Service for its own config blob, SubmissionArtifact/Result for
// provider-specific metadata the core never interprets.
type Properties map[string]any

// Scan implements sql.Scanner so Properties can be read back from a JSON
// or text column transparently.
func (p *Properties) Scan(value any) error {
	if value == nil {
		*p = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		if len(v) == 0 {
			*p = nil
			return nil
		}
		return json.Unmarshal(v, p)
	case string:
		if v == "" {
			*p = nil
			return nil
		}
		return json.Unmarshal([]byte(v), p)
	default:
		return errors.New("database: unsupported type for Properties scan")
	}
}

// Value implements driver.Valuer so Properties serializes as JSON on write.
func (p Properties) Value() (driver.Value, error) {
	if len(p) == 0 {
		return nil, nil
	}
	return json.Marshal(p)
}
