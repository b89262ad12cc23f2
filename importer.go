package yangbind

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// FSImporter returns an import callback that looks modules and submodules
// up in dir of fsys, e.g. an embed.FS. Files are named name.yang,
// name@revision.yang or the .yin equivalents. Without a requested revision
// the newest revisioned file wins over an unrevisioned one.
func FSImporter(fsys fs.FS, dir string) ImportCallback {
	if dir == "" {
		dir = "."
	}
	return func(module, revision, submodule, subRevision string) ([]byte, SchemaFormat, error) {
		name, rev := module, revision
		if submodule != "" {
			name, rev = submodule, subRevision
		}
		file, format, err := findSchemaFile(fsys, dir, name, rev)
		if err != nil {
			return nil, SchemaUnknown, err
		}
		src, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, SchemaUnknown, fmt.Errorf("read %s: %w", file, err)
		}
		return src, format, nil
	}
}

func findSchemaFile(fsys fs.FS, dir, name, revision string) (string, SchemaFormat, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", SchemaUnknown, fmt.Errorf("read %s: %w", dir, err)
	}

	var (
		best       string
		bestRev    string
		bestFormat SchemaFormat
		found      bool
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base, format := splitSchemaFile(e.Name())
		if format == SchemaUnknown {
			continue
		}
		n, rev, _ := strings.Cut(base, "@")
		if n != name {
			continue
		}
		if revision != "" {
			if rev == revision {
				return path.Join(dir, e.Name()), format, nil
			}
			continue
		}
		// Revisions are dates, so the lexical order is the age order.
		if !found || rev > bestRev {
			best, bestRev, bestFormat, found = e.Name(), rev, format, true
		}
	}
	if !found {
		if revision != "" {
			name += "@" + revision
		}
		return "", SchemaUnknown, fmt.Errorf("module %s in %s: %w", name, dir, fs.ErrNotExist)
	}
	return path.Join(dir, best), bestFormat, nil
}

func splitSchemaFile(file string) (string, SchemaFormat) {
	switch {
	case strings.HasSuffix(file, ".yang"):
		return strings.TrimSuffix(file, ".yang"), SchemaYANG
	case strings.HasSuffix(file, ".yin"):
		return strings.TrimSuffix(file, ".yin"), SchemaYIN
	}
	return file, SchemaUnknown
}

// MapImporter returns an import callback serving module sources from
// memory. Keys are "name" or "name@revision"; a revisioned key is preferred
// when the revision is requested.
func MapImporter(sources map[string]string) ImportCallback {
	return func(module, revision, submodule, subRevision string) ([]byte, SchemaFormat, error) {
		name, rev := module, revision
		if submodule != "" {
			name, rev = submodule, subRevision
		}
		src, ok := sources[name+"@"+rev]
		if !ok || rev == "" {
			src, ok = sources[name]
		}
		if ok {
			return []byte(src), sourceFormat(src), nil
		}
		return nil, SchemaUnknown, fmt.Errorf("module %s: %w", name, fs.ErrNotExist)
	}
}

func sourceFormat(src string) SchemaFormat {
	if strings.HasPrefix(strings.TrimSpace(src), "<") {
		return SchemaYIN
	}
	return SchemaYANG
}
