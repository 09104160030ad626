package assemble

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"

	"github.com/happycreater/binance-historical-data/internal/errors"
	"github.com/happycreater/binance-historical-data/internal/monitoring"
	"github.com/happycreater/binance-historical-data/pkg/types"
)

// ManifestName lists the archives already folded into a pattern's datasets
const ManifestName = "processed.txt"

// DatasetFileName is the merged per-symbol output file
const DatasetFileName = "data.csv"

// Assembler folds accepted archives into persistent per-(pattern, symbol)
// datasets. Merges for the same dataset key are serialized; distinct keys
// proceed independently. Because every merge deduplicates by open time and
// re-sorts, jobs may be handed over in any completion order and the dataset
// still ends up date-ascending.
type Assembler struct {
	datasetRoot string

	mu        sync.Mutex
	keyLocks  map[types.DatasetKey]*sync.Mutex
	manifests map[string]map[string]struct{}
}

// NewAssembler creates an assembler rooted at datasetRoot
func NewAssembler(datasetRoot string) *Assembler {
	return &Assembler{
		datasetRoot: datasetRoot,
		keyLocks:    make(map[types.DatasetKey]*sync.Mutex),
		manifests:   make(map[string]map[string]struct{}),
	}
}

// DatasetPath returns the merged output file for a dataset key
func (a *Assembler) DatasetPath(key types.DatasetKey) string {
	return filepath.Join(a.datasetRoot, filepath.FromSlash(key.Pattern), "symbol="+key.Symbol, DatasetFileName)
}

// manifestPath returns the processed-archives manifest for a pattern
func (a *Assembler) manifestPath(pattern string) string {
	return filepath.Join(a.datasetRoot, filepath.FromSlash(pattern), ManifestName)
}

// Merge decodes one accepted archive and appends its rows to the dataset
// for key. Archives recorded in the pattern manifest are skipped, so
// re-running a completed fetch leaves every dataset untouched.
func (a *Assembler) Merge(key types.DatasetKey, archivePath string) types.MergeResult {
	result := types.MergeResult{Key: key, ArchivePath: archivePath}

	if a.alreadyProcessed(key.Pattern, archivePath) {
		return result
	}

	rows, err := DecodeArchive(archivePath, isSpotPattern(key.Pattern))
	if err != nil {
		result.Err = err
		monitoring.RecordMerge(err, 0)
		return result
	}
	result.RowsDecoded = len(rows)

	lock := a.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	appended, err := mergeRows(a.DatasetPath(key), rows)
	if err != nil {
		result.Err = err
		monitoring.RecordMerge(err, 0)
		return result
	}
	result.RowsAppended = appended

	if err := a.recordProcessed(key.Pattern, archivePath); err != nil {
		result.Err = err
	}
	monitoring.RecordMerge(result.Err, appended)
	return result
}

// lockFor returns the serialization point for one dataset key
func (a *Assembler) lockFor(key types.DatasetKey) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	lock, ok := a.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		a.keyLocks[key] = lock
	}
	return lock
}

// alreadyProcessed consults the pattern manifest, loading it on first use
func (a *Assembler) alreadyProcessed(pattern, archivePath string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	manifest, ok := a.manifests[pattern]
	if !ok {
		manifest = a.loadManifest(pattern)
		a.manifests[pattern] = manifest
	}
	_, processed := manifest[archivePath]
	return processed
}

// loadManifest reads the manifest file; a missing file is an empty manifest
func (a *Assembler) loadManifest(pattern string) map[string]struct{} {
	manifest := make(map[string]struct{})
	file, err := os.Open(a.manifestPath(pattern))
	if err != nil {
		return manifest
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			manifest[line] = struct{}{}
		}
	}
	return manifest
}

// recordProcessed appends the archive to the pattern manifest
func (a *Assembler) recordProcessed(pattern, archivePath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	path := a.manifestPath(pattern)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewMergeError("assembler", "prepare_manifest_dir", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errors.NewMergeError("assembler", "open_manifest", err)
	}
	defer file.Close()

	if _, err := file.WriteString(archivePath + "\n"); err != nil {
		return errors.NewMergeError("assembler", "append_manifest", err)
	}
	if manifest, ok := a.manifests[pattern]; ok {
		manifest[archivePath] = struct{}{}
	}
	return nil
}
