package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

	// Both the postgres and sqlite backends run the same files.
	nonPortableRe = regexp.MustCompile(`(?i)\b(JSONB|SERIAL|BIGSERIAL|TIMESTAMPTZ|UUID)\b`)
)

// ValidateDir checks migration file names, versions, goose headers and that
// statements avoid postgres-only column types.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name

		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read file %q: %w", name, err)
		}
		if err := validateBody(name, string(b)); err != nil {
			return err
		}
	}
	return nil
}

func validateBody(name, body string) error {
	for _, header := range []string{"-- +goose Up", "-- +goose Down"} {
		if !strings.Contains(body, header) {
			return fmt.Errorf("migration %q missing %q", name, header)
		}
	}
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		if kw := nonPortableRe.FindString(line); kw != "" {
			return fmt.Errorf("migration %q uses %s, which sqlite does not support", name, strings.ToUpper(kw))
		}
	}
	return nil
}
