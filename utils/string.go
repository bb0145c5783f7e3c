package utils

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid"
)

var envVarRegex = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)

// ConvertSimpleTypeToString converts simple types (string, int, float64, bool) to their string representation
func ConvertSimpleTypeToString(a any) (string, error) {
	switch v := a.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported type %T for conversion to string", a)
	}
}

// ConvertStringToSimpleType converts a string to a simple type (string, int, float64, bool)
func ConvertStringToSimpleType(s string) (any, error) {
	if s == "" {
		return s, nil
	}

	var value any

	// Check for leading zeros - if present, keep as string to preserve format
	// e.g., "023" should remain "023", not be converted to 23
	// Also handle negative numbers with leading zeros after the minus sign, e.g., "-023"
	if len(s) > 1 && s[0] == '0' && s[1] >= '0' && s[1] <= '9' {
		// Has leading zero (not "0" alone, not "0.xxx"), keep as string
		return s, nil
	}
	if len(s) > 2 && s[0] == '-' && s[1] == '0' && s[2] >= '0' && s[2] <= '9' {
		// Negative number with leading zero, e.g., "-023", keep as string
		return s, nil
	}

	if convertedValueI, err := strconv.Atoi(s); err == nil {
		value = convertedValueI
		return value, nil
	}

	if convertedValueF, err := strconv.ParseFloat(s, 64); err == nil {
		value = convertedValueF
		return value, nil
	}

	if convertedValueB, err := strconv.ParseBool(s); err == nil {
		value = convertedValueB
		return value, nil
	}

	value = s
	return value, nil
}

// GenerateULID generates a ULID string based on the provided time.
func GenerateULID(t *time.Time) string {
	if t == nil {
		now := time.Now()
		t = &now
	}

	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	id := ulid.MustNew(ulid.Timestamp(*t), entropy)
	return id.String()
}

// IsValidEnvVar checks if the provided string is a valid environment variable name
func IsValidEnvVar(envVar string) error {
	if envVar == "" {
		return fmt.Errorf("environment variable cannot be empty")
	}
	if len(envVar) > 128 {
		return fmt.Errorf("environment variable name too long (max 128 characters)")
	}
	if ok := envVarRegex.MatchString(envVar); !ok {
		return fmt.Errorf("environment variable contains invalid characters")
	}
	return nil
}

func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func ToSnakeCase(s string) string {
	var matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
	var matchAllCap = regexp.MustCompile("([a-z0-9])([A-Z])")
	snake := matchFirstCap.ReplaceAllString(s, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(snake)
}

func ToSingular(plural string) string {
	if len(plural) < 1 {
		return plural
	}

	irregular := map[string]string{
		"people": "person",
		"men":    "man",
		"women":  "woman",
		"data":   "datum",
		"feet":   "foot",
	}
	if s, ok := irregular[plural]; ok {
		return s
	}

	if strings.HasSuffix(plural, "s") && len(plural) > 1 {
		if strings.HasSuffix(plural, "ss") {
			return plural
		}

		if strings.HasSuffix(plural, "ies") && len(plural) > 3 {
			return plural[:len(plural)-3] + "y"
		}

		if !strings.HasSuffix(plural, "es") {
			return plural[:len(plural)-1] // 移除末尾的 's'
		}
	}

	if strings.HasSuffix(plural, "es") && len(plural) > 2 {
		return plural[:len(plural)-2]
	}

	return plural
}
