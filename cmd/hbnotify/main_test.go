package main

import (
	"strings"
	"testing"
)

func TestKVFlag_Set(t *testing.T) {
	f := kvFlag{}
	if err := f.Set("release=v1.42.0"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.Set("region=eu-west-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f["release"] != "v1.42.0" {
		t.Errorf("expected release=v1.42.0, got %q", f["release"])
	}
	if f["region"] != "eu-west-1" {
		t.Errorf("expected region=eu-west-1, got %q", f["region"])
	}
}

func TestKVFlag_SetEmptyValue(t *testing.T) {
	f := kvFlag{}
	if err := f.Set("key="); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := f["key"]; !ok || v != "" {
		t.Errorf("expected empty value for key, got %q (present=%v)", v, ok)
	}
}

func TestKVFlag_SetInvalid(t *testing.T) {
	f := kvFlag{}
	if err := f.Set("no-separator"); err == nil {
		t.Error("expected error for missing '='")
	}
	if err := f.Set("=value"); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestKVFlag_SetValueContainsEquals(t *testing.T) {
	f := kvFlag{}
	if err := f.Set("query=a=b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Only the first '=' separates key from value.
	if f["query"] != "a=b" {
		t.Errorf("expected query=a=b, got %q", f["query"])
	}
}

func TestListFlag_Set(t *testing.T) {
	var f listFlag
	for _, v := range []string{"cron", "backups", "urgent"} {
		if err := f.Set(v); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(f) != 3 {
		t.Fatalf("expected 3 values, got %d", len(f))
	}
	// Order is preserved.
	if f[0] != "cron" || f[1] != "backups" || f[2] != "urgent" {
		t.Errorf("unexpected order: %v", f)
	}
	if got := f.String(); got != "cron,backups,urgent" {
		t.Errorf("expected joined string, got %q", got)
	}
}

func TestKVFlag_String(t *testing.T) {
	f := kvFlag{"a": "1"}
	if got := f.String(); !strings.Contains(got, "a=1") {
		t.Errorf("expected a=1 in %q", got)
	}
}
