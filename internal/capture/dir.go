package capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
}

// DirSource reads screenshots dropped into <root>/<account>/ by some other
// tool, oldest first.
type DirSource struct {
	root string
}

func NewDirSource(root string) *DirSource {
	return &DirSource{root: root}
}

func (d *DirSource) Name() string {
	return "dir"
}

func (d *DirSource) Available() bool {
	info, err := os.Stat(d.root)
	return err == nil && info.IsDir()
}

type shot struct {
	path    string
	modTime time.Time
}

func (d *DirSource) Capture(ctx context.Context, req Request) ([]string, error) {
	dir := d.root
	if req.Account != "" {
		dir = filepath.Join(d.root, req.Account)
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read capture dir: %w", err)
	}

	var shots []shot
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !req.Force && !req.LastSyncAt.IsZero() && !info.ModTime().After(req.LastSyncAt) {
			continue
		}
		shots = append(shots, shot{path: filepath.Join(dir, e.Name()), modTime: info.ModTime()})
	}

	sort.Slice(shots, func(i, j int) bool {
		if shots[i].modTime.Equal(shots[j].modTime) {
			return shots[i].path < shots[j].path
		}
		return shots[i].modTime.Before(shots[j].modTime)
	})

	// Keep the newest Count, still oldest first.
	if req.Count > 0 && len(shots) > req.Count {
		shots = shots[len(shots)-req.Count:]
	}

	paths := make([]string, len(shots))
	for i, s := range shots {
		paths[i] = s.path
	}
	return paths, nil
}
