// Package prompt loads prompt templates from disk with an mtime-checked
// cache and falls back to templates embedded in the binary.
package prompt

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

//go:embed templates/*.txt
var builtin embed.FS

// Template kinds.
const (
	KindBrainstorm = "brainstorm"
	KindRepair     = "repair"
	KindJudge      = "judge"
)

// Template is a loaded template and where it came from.
type Template struct {
	Name   string
	Source string
	Text   string
}

type entry struct {
	modTime time.Time
	size    int64
	text    string
}

// Store is safe for concurrent use. Entries are replaced whole, so readers
// never need a lock; concurrent reloads of one path are collapsed.
type Store struct {
	dirs    []string
	entries sync.Map // path -> entry
	group   singleflight.Group
	log     *zap.Logger
}

// NewStore searches dirs in order before the embedded templates.
func NewStore(dirs []string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{dirs: dirs, log: log.Named("prompt")}
}

var categoryRe = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Names lists candidate file names for kind and category, most specific first.
func Names(kind, category string) []string {
	category = strings.ToLower(strings.TrimSpace(category))
	var names []string
	if category != "" && categoryRe.MatchString(category) {
		names = append(names, fmt.Sprintf("%s.%s.txt", kind, category))
	}
	return append(names, kind+".base.txt")
}

// Load returns the most specific template available for kind and category.
func (s *Store) Load(kind, category string) (Template, error) {
	names := Names(kind, category)

	for _, dir := range s.dirs {
		for _, name := range names {
			path := filepath.Join(dir, name)
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}
			text, err := s.read(path, info)
			if err != nil {
				s.log.Warn("template unreadable", zap.String("path", path), zap.Error(err))
				continue
			}
			return Template{Name: name, Source: path, Text: text}, nil
		}
	}

	for _, name := range names {
		data, err := fs.ReadFile(builtin, "templates/"+name)
		if err == nil {
			return Template{Name: name, Source: "builtin", Text: string(data)}, nil
		}
	}
	return Template{}, fmt.Errorf("no %s template found", kind)
}

func (s *Store) read(path string, info os.FileInfo) (string, error) {
	if v, ok := s.entries.Load(path); ok {
		e := v.(entry)
		if e.modTime.Equal(info.ModTime()) && e.size == info.Size() {
			return e.text, nil
		}
	}

	v, err, _ := s.group.Do(path, func() (any, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		s.entries.Store(path, entry{modTime: info.ModTime(), size: info.Size(), text: string(data)})
		s.log.Debug("template loaded", zap.String("path", path), zap.Int("bytes", len(data)))
		return string(data), nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
