package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ibeckermayer/xmedia/internal/config"
	"github.com/ibeckermayer/xmedia/internal/types"
)

// DumpKind identifies a dump directory under the cache dir
type DumpKind string

const (
	DumpOutcomes  DumpKind = "outcomes"
	DumpSnapshots DumpKind = "snapshots"
)

// cacheDir is replaced in tests
var cacheDir = config.CacheDir

// dumpDir returns the directory for a given dump kind.
func dumpDir(kind DumpKind) (string, error) {
	base, err := cacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, string(kind)), nil
}

// generateFilename creates a timestamped filename. Names sort chronologically.
func generateFilename(suffix, ext string) string {
	name := time.Now().Format("2006-01-02T15-04-05.000")
	if suffix != "" {
		name += "_" + suffix
	}
	return name + ext
}

func writeDump(kind DumpKind, name string, data []byte) (string, error) {
	dir, err := dumpDir(kind)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create dump dir: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write dump: %w", err)
	}
	return path, nil
}

// SaveOutcome writes an outcome as indented JSON for post-hoc debugging.
// Returns the path to the saved file.
func SaveOutcome(out types.ExtractionOutcome) (string, error) {
	jsonData, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal outcome: %w", err)
	}
	return writeDump(DumpOutcomes, generateFilename(out.ExtractionID, ".json"), jsonData)
}

// SaveSnapshot writes captured page HTML next to the outcomes.
// Returns the path to the saved file.
func SaveSnapshot(extractionID, html string) (string, error) {
	return writeDump(DumpSnapshots, generateFilename(extractionID, ".html"), []byte(html))
}

// LoadLatestOutcome loads the most recent saved outcome.
// Returns the outcome, the filepath it was loaded from, and any error.
func LoadLatestOutcome() (types.ExtractionOutcome, string, error) {
	var out types.ExtractionOutcome

	latestPath, err := LatestDump(DumpOutcomes)
	if err != nil {
		return out, "", err
	}

	out, err = LoadOutcome(latestPath)
	if err != nil {
		return out, "", err
	}
	return out, latestPath, nil
}

// LoadOutcome loads an outcome from a specific file path.
func LoadOutcome(path string) (types.ExtractionOutcome, error) {
	var out types.ExtractionOutcome

	jsonData, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("failed to read outcome: %w", err)
	}

	if err := json.Unmarshal(jsonData, &out); err != nil {
		return out, fmt.Errorf("failed to unmarshal outcome: %w", err)
	}
	return out, nil
}

// LatestDump returns the path to the most recent file of a dump kind.
func LatestDump(kind DumpKind) (string, error) {
	dir, err := dumpDir(kind)
	if err != nil {
		return "", err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no saved %s", kind)
		}
		return "", err
	}

	// os.ReadDir sorts by name, which is chronological for our timestamps
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}

	if len(files) == 0 {
		return "", fmt.Errorf("no saved %s", kind)
	}

	return filepath.Join(dir, files[len(files)-1]), nil
}
