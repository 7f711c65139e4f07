package buildx

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	digest "github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

const (
	imageIDFileName  = "iidfile"
	metadataFileName = "metadata-file"
)

// TempDir is a private scratch directory created on first use.
type TempDir struct {
	parent string

	once sync.Once
	path string
	err  error
}

// NewTempDir returns a TempDir created under parent, or under the OS temp dir when parent is empty.
func NewTempDir(parent string) *TempDir {
	return &TempDir{parent: parent}
}

// Path creates the directory if needed and returns it.
func (t *TempDir) Path() (string, error) {
	t.once.Do(func() {
		t.path, t.err = os.MkdirTemp(t.parent, "buildaction-")
	})
	if t.err != nil {
		return "", errors.Wrap(t.err, "create temp dir")
	}
	return t.path, nil
}

// Cleanup removes the directory and everything written into it.
func (t *TempDir) Cleanup() error {
	if t == nil || t.path == "" {
		return nil
	}
	return os.RemoveAll(t.path)
}

// ImageIDFile returns the --iidfile path.
func (t *TempDir) ImageIDFile() (string, error) {
	return t.file(imageIDFileName)
}

// MetadataFile returns the --metadata-file path.
func (t *TempDir) MetadataFile() (string, error) {
	return t.file(metadataFileName)
}

func (t *TempDir) file(name string) (string, error) {
	dir, err := t.Path()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// SecretString materializes a KEY=VALUE secret into a file and returns the
// matching --secret flag value. With fromFile the value names a file whose
// content becomes the secret.
func (t *TempDir) SecretString(kvp string, fromFile bool) (string, error) {
	id, path, err := t.WriteSecret(kvp, fromFile)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("id=%s,src=%s", id, path), nil
}

// ErrInvalidSecret never carries the entry itself, which may hold the secret.
var ErrInvalidSecret = errors.New("secret is not KEY=VALUE")

// WriteSecret writes the value of a KEY=VALUE secret to a new file and
// returns the secret id and the file path.
func (t *TempDir) WriteSecret(kvp string, fromFile bool) (string, string, error) {
	key, value, _ := strings.Cut(kvp, "=")
	if key == "" || value == "" {
		return "", "", ErrInvalidSecret
	}
	if fromFile {
		data, err := os.ReadFile(value)
		if err != nil {
			if os.IsNotExist(err) {
				return "", "", errors.Errorf("secret file %s not found", value)
			}
			return "", "", errors.Wrapf(err, "read secret file %s", value)
		}
		value = string(data)
	}
	dir, err := t.Path()
	if err != nil {
		return "", "", err
	}
	f, err := os.CreateTemp(dir, "secret-")
	if err != nil {
		return "", "", errors.Wrap(err, "create secret file")
	}
	defer f.Close()
	if _, err := f.WriteString(value); err != nil {
		return "", "", errors.Wrapf(err, "write secret %s", key)
	}
	return key, f.Name(), nil
}

// ImageID returns the image id written by buildx, or "" when none was written.
func (t *TempDir) ImageID() (string, error) {
	path, err := t.ImageIDFile()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(err, "read image id")
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", nil
	}
	if _, err := digest.Parse(id); err != nil {
		return "", errors.Wrapf(err, "invalid image id %q", id)
	}
	return id, nil
}

// Metadata returns the raw JSON metadata written by buildx, or "" when none was written.
func (t *TempDir) Metadata() (string, error) {
	path, err := t.MetadataFile()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(err, "read metadata")
	}
	content := strings.TrimSpace(string(data))
	if content == "null" {
		return "", nil
	}
	return content, nil
}

// Digest extracts the image digest from buildx metadata JSON.
func Digest(metadata string) (string, error) {
	if strings.TrimSpace(metadata) == "" {
		return "", nil
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(metadata), &fields); err != nil {
		return "", errors.Wrap(err, "decode metadata")
	}
	value, _ := fields["containerimage.digest"].(string)
	return value, nil
}
