// Package stats writes per-run artifact directories: the frozen config, a
// per-episode CSV, and the final report, plus a cross-run index file.
package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"pacbench/internal/model"
)

const runIndexFile = "run_index.json"

var episodeCSVHeader = []string{"index", "seed", "reward", "steps", "terminal_reason", "failed"}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Env          string  `json:"env"`
	Policy       string  `json:"policy"`
	Episodes     int     `json:"episodes"`
	Seed         int64   `json:"seed"`
	SuccessRate  float64 `json:"success_rate"`
	RewardMean   float64 `json:"reward_mean"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

// WriteRunArtifacts lays down baseDir/<run-id>/{config.json,episodes.csv,
// report.json} and returns the run directory.
func WriteRunArtifacts(baseDir string, report model.RunReport) (string, error) {
	if report.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, report.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), report.Config); err != nil {
		return "", err
	}
	if err := writeEpisodeCSV(filepath.Join(runDir, "episodes.csv"), report.Results); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "report.json"), report); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest-first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func ReadRunReport(baseDir, runID string) (model.RunReport, bool, error) {
	path := filepath.Join(baseDir, runID, "report.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.RunReport{}, false, nil
		}
		return model.RunReport{}, false, err
	}

	var report model.RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return model.RunReport{}, false, err
	}
	return report, true, nil
}

func ReadRunConfig(baseDir, runID string) (model.RunConfig, bool, error) {
	path := filepath.Join(baseDir, runID, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.RunConfig{}, false, nil
		}
		return model.RunConfig{}, false, err
	}

	var cfg model.RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return model.RunConfig{}, false, err
	}
	return cfg, true, nil
}

// ReadEpisodeCSV parses baseDir/<run-id>/episodes.csv back into result rows.
// Only the columns the CSV carries are populated.
func ReadEpisodeCSV(baseDir, runID string) ([]model.EpisodeResult, bool, error) {
	path := filepath.Join(baseDir, runID, "episodes.csv")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.EpisodeResult{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < len(episodeCSVHeader) {
		return nil, false, fmt.Errorf("episode csv header must have %d columns", len(episodeCSVHeader))
	}

	var results []model.EpisodeResult
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		row, err := parseEpisodeRow(record)
		if err != nil {
			return nil, false, err
		}
		row.RunID = runID
		results = append(results, row)
	}
	return results, true, nil
}

// ExportRunArtifacts copies a run's artifact directory to outDir/<run-id>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{"config.json", "episodes.csv", "report.json"} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func writeEpisodeCSV(path string, results []model.EpisodeResult) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(episodeCSVHeader); err != nil {
		return err
	}
	for _, result := range results {
		if err := writer.Write([]string{
			strconv.Itoa(result.Index),
			strconv.FormatInt(result.Seed, 10),
			strconv.FormatFloat(result.Reward, 'f', -1, 64),
			strconv.Itoa(result.Steps),
			string(result.TerminalReason),
			strconv.FormatBool(result.Failed),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func parseEpisodeRow(record []string) (model.EpisodeResult, error) {
	if len(record) < len(episodeCSVHeader) {
		return model.EpisodeResult{}, fmt.Errorf("episode csv row must have %d columns", len(episodeCSVHeader))
	}

	index, err := strconv.Atoi(record[0])
	if err != nil {
		return model.EpisodeResult{}, err
	}
	seed, err := strconv.ParseInt(record[1], 10, 64)
	if err != nil {
		return model.EpisodeResult{}, err
	}
	reward, err := strconv.ParseFloat(record[2], 64)
	if err != nil {
		return model.EpisodeResult{}, err
	}
	steps, err := strconv.Atoi(record[3])
	if err != nil {
		return model.EpisodeResult{}, err
	}
	failed, err := strconv.ParseBool(record[5])
	if err != nil {
		return model.EpisodeResult{}, err
	}

	return model.EpisodeResult{
		Index:          index,
		Seed:           seed,
		Reward:         reward,
		Steps:          steps,
		TerminalReason: model.TerminalReason(record[4]),
		Failed:         failed,
	}, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
