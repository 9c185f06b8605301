package sheets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoCredentials is returned when neither a key file nor inline key JSON is configured
var ErrNoCredentials = errors.New("no service account credentials configured")

// LoadCredentials returns the service-account key JSON, preferring inline JSON over
// the key file, with its private key normalized.
func LoadCredentials(file, inline string) ([]byte, error) {
	var raw []byte
	switch {
	case strings.TrimSpace(inline) != "":
		raw = []byte(inline)
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		raw = data
	default:
		return nil, ErrNoCredentials
	}
	return NormalizeCredentials(raw)
}

// NormalizeCredentials turns literal "\n" sequences in private_key into newlines.
// Keys pasted into environment variables or secret stores often arrive double-escaped,
// and the PEM decoder rejects them in that form.
func NormalizeCredentials(raw []byte) ([]byte, error) {
	var key map[string]any
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, fmt.Errorf("parse credentials JSON: %w", err)
	}

	pk, ok := key["private_key"].(string)
	if !ok || !strings.Contains(pk, `\n`) {
		return raw, nil
	}
	key["private_key"] = strings.ReplaceAll(pk, `\n`, "\n")

	normalized, err := json.Marshal(key)
	if err != nil {
		return nil, fmt.Errorf("encode credentials JSON: %w", err)
	}
	return normalized, nil
}
