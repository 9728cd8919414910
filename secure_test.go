package honeybadger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

const testSecret = "hbp_live_badger123456789"

func TestSecretString_String(t *testing.T) {
	s := SecretString(testSecret)

	if s.String() != redacted {
		t.Errorf("String() = %q, want %q", s.String(), redacted)
	}
}

func TestSecretString_Sprintf(t *testing.T) {
	s := SecretString(testSecret)

	// %s, %v, and %+v go through fmt.Stringer; %#v goes through fmt.GoStringer.
	for _, verb := range []string{"%s", "%v", "%+v", "%#v"} {
		result := fmt.Sprintf("key="+verb, s)
		if strings.Contains(result, testSecret) {
			t.Errorf("fmt.Sprintf(%q) leaked the raw secret: %s", verb, result)
		}
		if !strings.Contains(result, redacted) {
			t.Errorf("fmt.Sprintf(%q) should render the placeholder, got %s", verb, result)
		}
	}
}

func TestSecretString_MarshalJSON(t *testing.T) {
	s := SecretString(testSecret)

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("MarshalJSON returned error: %v", err)
	}
	expected := `"` + redacted + `"`
	if string(data) != expected {
		t.Errorf("MarshalJSON = %q, want %q", string(data), expected)
	}
}

func TestSecretString_LogValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger.Info("client configured", "api_key", SecretString(testSecret))

	if strings.Contains(buf.String(), testSecret) {
		t.Errorf("slog record leaked the raw secret: %s", buf.String())
	}
	if !strings.Contains(buf.String(), redacted) {
		t.Errorf("slog record should carry the placeholder, got %s", buf.String())
	}
}

func TestSecretString_ConfigNeverLeaks(t *testing.T) {
	cfg, err := NewConfig(testSecret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("json.Marshal returned error: %v", err)
	}
	if strings.Contains(string(data), testSecret) {
		t.Errorf("marshaled config leaked the raw API key: %s", data)
	}
	for _, verb := range []string{"%+v", "%#v"} {
		if dump := fmt.Sprintf(verb, cfg); strings.Contains(dump, testSecret) {
			t.Errorf("config dump via %s leaked the raw API key: %s", verb, dump)
		}
	}
}

func TestSecretString_Unmask(t *testing.T) {
	s := SecretString(testSecret)

	if s.Unmask() != testSecret {
		t.Errorf("Unmask() = %q, want %q", s.Unmask(), testSecret)
	}
}

func TestSecretString_EmptyValue(t *testing.T) {
	s := SecretString("")

	if s.String() != redacted {
		t.Errorf("String() on empty SecretString = %q, want %q", s.String(), redacted)
	}
	if s.Unmask() != "" {
		t.Errorf("Unmask() on empty SecretString = %q, want empty string", s.Unmask())
	}
}
