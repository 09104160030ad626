package assemble

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/happycreater/binance-historical-data/internal/errors"
	"github.com/happycreater/binance-historical-data/pkg/types"
)

// klineColumns names the twelve raw columns of a published kline CSV
var klineColumns = []string{
	"open_time",
	"open",
	"high",
	"low",
	"close",
	"volume",
	"close_time",
	"quote_asset_volume",
	"number_of_trades",
	"taker_buy_base_asset_volume",
	"taker_buy_quote_asset_volume",
	"ignore",
}

const (
	openTimeCol  = 0
	closeTimeCol = 6
)

// Spot kline timestamps from this instant on arrive in microseconds
// instead of milliseconds (2025-01-01 UTC in milliseconds).
const spotMicrosCutoverMs = int64(1735689600000)

// DecodeArchive reads the first CSV member of an accepted zip archive into
// keyed rows. A header line is detected by a non-numeric first cell and
// dropped. For spot data the microsecond-era timestamps are normalized back
// to milliseconds so one dataset never mixes units.
func DecodeArchive(archivePath string, spot bool) ([]types.KlineRow, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, errors.NewMergeError("assembler", "open_archive", err)
	}
	defer reader.Close()

	if len(reader.File) == 0 {
		return nil, errors.New(errors.ErrorCategoryMerge, "assembler", "open_archive", "archive has no members")
	}

	member, err := reader.File[0].Open()
	if err != nil {
		return nil, errors.NewMergeError("assembler", "open_member", err)
	}
	defer member.Close()

	rows, err := decodeCSV(member)
	if err != nil {
		return nil, err
	}
	if spot {
		normalizeSpotTimestamps(rows)
	}
	return rows, nil
}

func decodeCSV(r io.Reader) ([]types.KlineRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var rows []types.KlineRow
	first := true
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewMergeError("assembler", "read_csv", err)
		}
		if len(record) == 0 {
			continue
		}
		openTime, parseErr := parseTimeCell(record[openTimeCol])
		if parseErr != nil {
			if first {
				// header line
				first = false
				continue
			}
			// bad line, skip it the way the upstream files require
			continue
		}
		first = false
		rows = append(rows, types.KlineRow{OpenTime: openTime, Fields: record})
	}
	return rows, nil
}

// parseTimeCell accepts both integer and scientific-notation timestamps
func parseTimeCell(cell string) (int64, error) {
	if v, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

// normalizeSpotTimestamps rescales microsecond open/close times to
// milliseconds. The whole archive is either one unit or the other, so the
// minimum open time decides.
func normalizeSpotTimestamps(rows []types.KlineRow) {
	if len(rows) == 0 {
		return
	}
	min := rows[0].OpenTime
	for _, row := range rows {
		if row.OpenTime < min {
			min = row.OpenTime
		}
	}
	if min < spotMicrosCutoverMs*1000 {
		return
	}
	for i := range rows {
		rows[i].OpenTime /= 1000
		rows[i].Fields[openTimeCol] = strconv.FormatInt(rows[i].OpenTime, 10)
		if len(rows[i].Fields) > closeTimeCol {
			if closeTime, err := parseTimeCell(rows[i].Fields[closeTimeCol]); err == nil {
				rows[i].Fields[closeTimeCol] = strconv.FormatInt(closeTime/1000, 10)
			}
		}
	}
}

// datasetHeader returns the column names for a dataset of the given width
func datasetHeader(width int) []string {
	if width == len(klineColumns) {
		return klineColumns
	}
	header := make([]string, width)
	for i := range header {
		header[i] = fmt.Sprintf("col_%d", i)
	}
	return header
}

// readDataset loads an existing dataset file. A missing file is an empty
// dataset, not an error.
func readDataset(path string) ([]types.KlineRow, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewMergeError("assembler", "open_dataset", err)
	}
	defer file.Close()

	cr := csv.NewReader(file)
	cr.FieldsPerRecord = -1

	var rows []types.KlineRow
	header := true
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewMergeError("assembler", "read_dataset", err)
		}
		if header {
			header = false
			continue
		}
		openTime, parseErr := parseTimeCell(record[openTimeCol])
		if parseErr != nil {
			continue
		}
		rows = append(rows, types.KlineRow{OpenTime: openTime, Fields: record})
	}
	return rows, nil
}

// writeDataset writes the full row set sorted by open time, through a
// temporary file so a crash mid-write never corrupts the dataset.
func writeDataset(path string, rows []types.KlineRow) error {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].OpenTime < rows[j].OpenTime })

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewMergeError("assembler", "prepare_dataset_dir", err)
	}

	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return errors.NewMergeError("assembler", "create_dataset", err)
	}

	writer := csv.NewWriter(file)
	width := 0
	if len(rows) > 0 {
		width = len(rows[0].Fields)
	}
	writeErr := writer.Write(datasetHeader(width))
	for _, row := range rows {
		if writeErr != nil {
			break
		}
		writeErr = writer.Write(row.Fields)
	}
	writer.Flush()
	if writeErr == nil {
		writeErr = writer.Error()
	}
	if closeErr := file.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(tempPath)
		return errors.NewMergeError("assembler", "write_dataset", writeErr)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.NewMergeError("assembler", "promote_dataset", err)
	}
	return nil
}

// mergeRows folds new rows into the dataset at path, deduplicating by open
// time with existing rows winning, and returns how many rows were appended.
func mergeRows(path string, rows []types.KlineRow) (int, error) {
	existing, err := readDataset(path)
	if err != nil {
		return 0, err
	}

	seen := make(map[int64]struct{}, len(existing))
	for _, row := range existing {
		seen[row.OpenTime] = struct{}{}
	}

	appended := 0
	merged := existing
	for _, row := range rows {
		if _, dup := seen[row.OpenTime]; dup {
			continue
		}
		seen[row.OpenTime] = struct{}{}
		merged = append(merged, row)
		appended++
	}

	if appended == 0 && len(existing) > 0 {
		return 0, nil
	}
	if err := writeDataset(path, merged); err != nil {
		return 0, err
	}
	return appended, nil
}

// isSpotPattern reports whether a dataset pattern belongs to the spot tree
func isSpotPattern(pattern string) bool {
	return strings.Contains(pattern, "spot/")
}
