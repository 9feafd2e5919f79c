// Package sync reconciles registered import sources with the database: every
// card file found in a source is merge-imported into the set named after the
// file.
package sync

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lukas-hzb/verve/internal/gitsource"
	"github.com/lukas-hzb/verve/internal/parser"
	"github.com/lukas-hzb/verve/internal/storage"
	"github.com/lukas-hzb/verve/internal/validate"
)

// Result summarizes one sync run.
type Result struct {
	SourcesScanned int      `json:"sources_scanned"`
	FilesParsed    int      `json:"files_parsed"`
	CardsAdded     int      `json:"cards_added"`
	Errors         []string `json:"errors,omitempty"`
}

// RunSync iterates over all registered sources and reconciles each of them.
// Git sources are cloned or pulled into reposDir first. Per-file problems are
// collected into the result rather than aborting the run.
func RunSync(ctx context.Context, db *storage.DB, reposDir string) (*Result, error) {
	slog.Info("starting sync process for all sources")
	sources, err := db.GetAllSources()
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}

	res := &Result{}
	if len(sources) == 0 {
		slog.Info("no sources configured")
		return res, nil
	}

	if err := os.MkdirAll(reposDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create repos directory: %w", err)
	}

	for _, source := range sources {
		slog.Info("syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

		dir := source.Path
		if source.Type == "git" {
			localRepoPath, err := gitsource.LocalPath(reposDir, source.Path)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("source %s: %v", source.Path, err))
				continue
			}
			if err := gitsource.Sync(ctx, source.Path, localRepoPath); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("source %s: %v", source.Path, err))
				continue
			}
			dir = localRepoPath
		}

		reconcileDir(db, dir, res)
		res.SourcesScanned++

		if err := db.UpdateSourceLastScanned(source.ID, time.Now()); err != nil {
			slog.Warn("failed to update last scanned for source", "source_id", source.ID, "error", err)
		}
	}

	slog.Info("sync process complete",
		"sources", res.SourcesScanned,
		"files", res.FilesParsed,
		"cards_added", res.CardsAdded,
		"errors", len(res.Errors),
	)
	return res, nil
}

// reconcileDir imports every card file under dir into its set.
func reconcileDir(db *storage.DB, dir string, res *Result) {
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Clones carry their git metadata; nothing to import there.
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !isCardFile(d.Name()) {
			return nil
		}

		res.FilesParsed++
		if err := importFile(db, path, res); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", path, err))
		}
		return nil
	})
	if walkErr != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("walking %s: %v", dir, walkErr))
	}
}

// importFile parses one card file and merges its entries into the set named
// after the file. The set is created on first sight; cards already present
// keep their scheduling state.
func importFile(db *storage.DB, path string, res *Result) error {
	entries, err := parser.ParseFile(path, "", "")
	if err != nil {
		return err
	}

	setName, err := setNameFromPath(path)
	if err != nil {
		return err
	}

	set, err := db.FindSetByName(setName)
	if err != nil {
		return err
	}
	now := time.Now()
	if set == nil {
		set, err = db.CreateSet(setName, now)
		if err != nil {
			return err
		}
		slog.Info("new set created from source file", "set", setName, "file", path)
	}

	added := set.Merge(entries, now)
	for _, card := range added {
		if err := db.InsertCard(set.ID, card); err != nil {
			return err
		}
	}
	if len(added) > 0 {
		if err := db.TouchSet(set.ID, now); err != nil {
			return err
		}
		slog.Info("cards imported", "set", setName, "added", len(added))
	}
	res.CardsAdded += len(added)
	return nil
}

func setNameFromPath(path string) (string, error) {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return validate.SetName(name)
}

func isCardFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv", ".txt":
		return true
	}
	return false
}
