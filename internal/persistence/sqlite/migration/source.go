package migration

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var embedded embed.FS

var fileNamePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// FSSource reads migrations from a directory of an fs.FS.
type FSSource struct {
	fsys fs.FS
	dir  string
}

// NewFSSource returns a source reading *.sql files from dir in fsys.
func NewFSSource(fsys fs.FS, dir string) *FSSource {
	return &FSSource{fsys: fsys, dir: dir}
}

// Embedded returns the migrations compiled into the binary.
func Embedded() *FSSource {
	return NewFSSource(embedded, "sql")
}

// Migrations reads, validates, and orders the migrations in the source.
func (s *FSSource) Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(s.fsys, s.dir)
	if err != nil {
		return nil, NewMigrationError("", s.dir, "read directory", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		m, err := s.parse(entry.Name())
		if err != nil {
			return nil, err
		}
		version, _ := strconv.Atoi(m.Version)
		if existing, ok := seen[version]; ok {
			return nil, NewMigrationError(m.Version, entry.Name(), "check duplicates",
				fmt.Errorf("%w: also defined by %s", ErrDuplicateVersion, existing))
		}
		seen[version] = entry.Name()
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		vi, _ := strconv.Atoi(migrations[i].Version)
		vj, _ := strconv.Atoi(migrations[j].Version)
		return vi < vj
	})
	return migrations, nil
}

func (s *FSSource) parse(name string) (Migration, error) {
	matches := fileNamePattern.FindStringSubmatch(name)
	if matches == nil {
		return Migration{}, NewMigrationError("", name, "validate filename",
			fmt.Errorf("%w: %q does not match {version}_{description}.sql", ErrInvalidMigrationFile, name))
	}

	content, err := fs.ReadFile(s.fsys, path.Join(s.dir, name))
	if err != nil {
		return Migration{}, NewMigrationError(matches[1], name, "read file", err)
	}
	body := strings.TrimSpace(string(content))
	if body == "" {
		return Migration{}, NewMigrationError(matches[1], name, "read file",
			fmt.Errorf("%w: file is empty", ErrInvalidMigrationFile))
	}

	sum := sha256.Sum256([]byte(body))
	return Migration{
		Version:     matches[1],
		Description: strings.ReplaceAll(matches[2], "_", " "),
		Name:        name,
		SQL:         body,
		Checksum:    hex.EncodeToString(sum[:]),
	}, nil
}
