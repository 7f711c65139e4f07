package buildkit

import (
	"reflect"
	"testing"

	"github.com/moby/buildkit/session/sshforward/sshprovider"
)

func TestParseCacheEntry(t *testing.T) {
	cases := []struct {
		raw     string
		typ     string
		attrs   map[string]string
		wantErr bool
	}{
		{raw: "user/app:cache", typ: "registry", attrs: map[string]string{"ref": "user/app:cache"}},
		{raw: "type=registry,ref=user/app:buildcache,mode=max", typ: "registry", attrs: map[string]string{"ref": "user/app:buildcache", "mode": "max"}},
		{raw: "type=gha,scope=build", typ: "gha", attrs: map[string]string{"scope": "build"}},
		{raw: "ref=user/app", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := parseCacheEntry(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got.Type != tc.typ || !reflect.DeepEqual(got.Attrs, tc.attrs) {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestParseSSH(t *testing.T) {
	cases := map[string]sshprovider.AgentConfig{
		"default":                {ID: "default"},
		"github=/keys/a,/keys/b": {ID: "github", Paths: []string{"/keys/a", "/keys/b"}},
		"gitlab=":                {ID: "gitlab"},
	}
	for spec, want := range cases {
		if got := parseSSH(spec); !reflect.DeepEqual(got, want) {
			t.Fatalf("parseSSH(%q)=%+v want %+v", spec, got, want)
		}
	}
}

func TestImageDigest(t *testing.T) {
	if got := ImageDigest(map[string]string{"containerimage.digest": "sha256:a", "oci.digest": "sha256:b"}); got != "sha256:a" {
		t.Fatalf("unexpected digest %q", got)
	}
	if got := ImageDigest(map[string]string{"oci.digest": "sha256:b"}); got != "sha256:b" {
		t.Fatalf("unexpected digest %q", got)
	}
	if got := ImageDigest(nil); got != "" {
		t.Fatalf("expected empty digest, got %q", got)
	}
}

func TestResolveExporterDestRejectsUnsupportedDest(t *testing.T) {
	if _, _, err := resolveExporterDest("image", "/tmp/out", map[string]string{}); err == nil {
		t.Fatalf("expected dest on image exporter to fail")
	}
	if _, dir, err := resolveExporterDest("oci", t.TempDir(), map[string]string{"tar": "false"}); err != nil || dir == "" {
		t.Fatalf("expected oci directory export, got dir=%q err=%v", dir, err)
	}
}
