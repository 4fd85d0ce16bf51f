package template

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/iotline/monitoring-config/internal/pkg/encoding/json"
	"github.com/iotline/monitoring-config/internal/pkg/utils/errors"
)

// DefaultDirName is resolved relative to the running executable.
const DefaultDirName = "data"

// NotFoundError is returned when the named template resource does not exist.
type NotFoundError struct {
	Name string
	Path string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf(`template "%s" not found, missing file "%s"`, e.Name, e.Path)
}

// InvalidError is returned when the template content cannot be parsed.
type InvalidError struct {
	Name string
	err  error
}

func (e InvalidError) Error() string {
	return errors.PrefixErrorf(e.err, `template "%s" is invalid`, e.Name).Error()
}

func (e InvalidError) Unwrap() error {
	return e.err
}

// DirLoader loads templates from "<name>.json" files in a local directory.
type DirLoader struct {
	dir string
}

func NewDirLoader(dir string) *DirLoader {
	return &DirLoader{dir: dir}
}

// NewDefaultDirLoader resolves the data directory relative to the running executable.
func NewDefaultDirLoader() (*DirLoader, error) {
	executable, err := os.Executable()
	if err != nil {
		return nil, errors.Errorf("cannot resolve data directory: %w", err)
	}
	return NewDirLoader(filepath.Join(filepath.Dir(executable), DefaultDirName)), nil
}

// Load reads and parses the named template.
// A malformed template is never partially applied, parsing happens before any use.
func (l *DirLoader) Load(name string) (*Template, error) {
	// Extension point, only local files are supported now
	if strings.Contains(name, "://") {
		return nil, errors.Errorf(`remote template "%s" is not supported`, name)
	}

	path := filepath.Join(l.dir, name+".json")
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, NotFoundError{Name: name, Path: path}
	} else if err != nil {
		return nil, errors.Errorf(`cannot read template "%s": %w`, name, err)
	}

	out := &Template{}
	if err := json.Decode(content, out); err != nil {
		return nil, InvalidError{Name: name, err: err}
	}
	return out, nil
}
