package migrate

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var (
	fileNameRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
	slugRe     = regexp.MustCompile(`[^a-z0-9]+`)
)

// Scaffold writes an empty goose SQL migration named <version>_<slug>.sql
// into dir and returns its path.
func Scaffold(dir, name string, now time.Time) (string, error) {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	path := filepath.Join(dir, now.UTC().Format(versionLayout)+"_"+slug+".sql")
	var body bytes.Buffer
	fmt.Fprintf(&body, "-- +goose Up\n-- +goose StatementBegin\n-- %s\n-- +goose StatementEnd\n\n", slug)
	fmt.Fprintf(&body, "-- +goose Down\n-- +goose StatementBegin\n-- undo %s\n-- +goose StatementEnd\n", slug)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(body.Bytes()); err != nil {
		return "", fmt.Errorf("write migration: %w", err)
	}
	return path, nil
}

// Validate checks that every .sql file in fsys has a unique timestamped name
// and both goose directions.
func Validate(fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return err
	}
	versions := make(map[string]string, len(names))
	for _, name := range names {
		match := fileNameRe.FindStringSubmatch(name)
		if match == nil {
			return fmt.Errorf("%s: expected YYYYMMDDHHMMSS_name.sql", name)
		}
		if prev, dup := versions[match[1]]; dup {
			return fmt.Errorf("%s: version %s already used by %s", name, match[1], prev)
		}
		versions[match[1]] = name

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !bytes.Contains(content, []byte(marker)) {
				return fmt.Errorf("%s: missing %q", name, marker)
			}
		}
	}
	return nil
}

func ValidateDir(dir string) error {
	return Validate(os.DirFS(dir))
}
