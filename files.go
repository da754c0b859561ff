package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

type targetKind int

const (
	kindFile targetKind = iota
	// Watched non-recursively, for entry creation only.
	kindDirectory
)

func (k targetKind) String() string {
	if k == kindDirectory {
		return "directory"
	}
	return "file"
}

type watchTarget struct {
	Path string
	Kind targetKind
}

// readWatchList reads one candidate path per non-blank line.
func readWatchList(r io.Reader) ([]string, error) {
	var paths []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		paths = append(paths, line)
	}
	if e := scanner.Err(); e != nil {
		return paths, fmt.Errorf("reading file list: %w", e)
	}
	return paths, nil
}

// gitWatchList is the default file set: tracked files plus untracked files
// that are not ignored. Any git failure yields an empty list.
func gitWatchList(ctx context.Context) []string {
	var paths []string
	seen := make(map[string]bool)
	for _, args := range [][]string{
		{"ls-files"},
		{"ls-files", "-o", "--exclude-standard"},
	} {
		out, e := exec.CommandContext(ctx, "git", args...).Output()
		if e != nil {
			return nil
		}
		listed, _ := readWatchList(strings.NewReader(string(out)))
		for _, p := range listed {
			if seen[p] {
				continue
			}
			seen[p] = true
			paths = append(paths, p)
		}
	}
	return paths
}

// classify stats each candidate and turns it into a watch target. Missing
// paths, and directories outside directory mode, are warned about and
// skipped. In directory mode the parent of each file is watched too. No path
// is ever both a file and a directory target.
func classify(candidates []string, dirMode bool, log *logger) []watchTarget {
	var targets []watchTarget
	kinds := make(map[string]targetKind)
	var parents []string

	for _, c := range candidates {
		abs, e := filepath.Abs(c)
		if e != nil {
			log.warnf("%s: %v", c, e)
			continue
		}
		info, e := os.Stat(abs)
		if e != nil {
			log.warnf("%s does not exist", c)
			continue
		}
		if _, dup := kinds[abs]; dup {
			continue
		}

		if info.IsDir() {
			if !dirMode {
				log.warnf("%s is a directory; use -d to watch it", c)
				continue
			}
			kinds[abs] = kindDirectory
			targets = append(targets, watchTarget{Path: abs, Kind: kindDirectory})
			continue
		}
		kinds[abs] = kindFile
		targets = append(targets, watchTarget{Path: abs, Kind: kindFile})
		if dirMode {
			parents = append(parents, filepath.Dir(abs))
		}
	}

	for _, dir := range parents {
		if _, dup := kinds[dir]; dup {
			continue
		}
		kinds[dir] = kindDirectory
		targets = append(targets, watchTarget{Path: dir, Kind: kindDirectory})
	}
	return targets
}
