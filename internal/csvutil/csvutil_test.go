package csvutil

import (
	"reflect"
	"testing"
)

func TestSplitFields(t *testing.T) {
	fields, err := SplitFields(`type=local, dest=out ,"attr=a,b",`)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	want := []string{"type=local", "dest=out", "attr=a,b"}
	if !reflect.DeepEqual(fields, want) {
		t.Fatalf("fields %q want %q", fields, want)
	}
	if fields, err := SplitFields("  "); err != nil || fields != nil {
		t.Fatalf("expected nil fields for blank input, got %q (%v)", fields, err)
	}
}

func TestKeyValues(t *testing.T) {
	attrs, err := KeyValues("Type=registry,ref=ghcr.io/acme/cache , push")
	if err != nil {
		t.Fatalf("key values: %v", err)
	}
	want := map[string]string{"type": "registry", "ref": "ghcr.io/acme/cache", "push": ""}
	if !reflect.DeepEqual(attrs, want) {
		t.Fatalf("attrs %v want %v", attrs, want)
	}
}
