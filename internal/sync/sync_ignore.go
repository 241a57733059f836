package sync

import (
	"bufio"
	"log/slog"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

// IgnoreFile holds extra gitignore-style rules, read from the local root.
const IgnoreFile = ".astraignore"

var defaultIgnoreLines = []string{
	// astra
	".astra-settings/",
	"astra.json",
	IgnoreFile,
	// editors
	".vscode/",
	".idea/",
	"*.swp",
	"*.swo",
	"*~",
	// vcs
	".git/",
	".svn/",
	".hg/",
	// general
	"*.tmp",
	// os
	".DS_Store",
	"Thumbs.db",
}

// IgnoreList decides which relative paths never take part in a sync.
type IgnoreList struct {
	fs      afero.Fs
	baseDir string
	ignore  *gitignore.GitIgnore
}

func NewIgnoreList(afs afero.Fs, baseDir string) *IgnoreList {
	return &IgnoreList{fs: afs, baseDir: baseDir}
}

// Load compiles the default rules plus any rules in the ignore file.
func (s *IgnoreList) Load() {
	ignorePath := filepath.Join(s.baseDir, IgnoreFile)
	lines := append([]string(nil), defaultIgnoreLines...)

	if file, err := s.fs.Open(ignorePath); err == nil {
		rules := 0
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" && !strings.HasPrefix(line, "#") {
				lines = append(lines, line)
				rules++
			}
		}
		file.Close()

		if err := scanner.Err(); err != nil {
			slog.Warn("read ignore file", "path", ignorePath, "error", err)
		} else {
			slog.Debug("loaded ignore file", "path", ignorePath, "rules", rules)
		}
	}

	s.ignore = gitignore.CompileIgnoreLines(lines...)
}

// ShouldIgnore reports whether the slash-separated relative path is excluded.
func (s *IgnoreList) ShouldIgnore(rel string) bool {
	if s == nil || s.ignore == nil {
		return false
	}
	return s.ignore.MatchesPath(rel)
}

// ShouldIgnoreDir is ShouldIgnore for directories, so "dir/" rules match the directory itself.
func (s *IgnoreList) ShouldIgnoreDir(rel string) bool {
	return s.ShouldIgnore(rel) || s.ShouldIgnore(rel+"/")
}
