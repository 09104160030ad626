package vision

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/happycreater/binance-historical-data/internal/errors"
	"github.com/happycreater/binance-historical-data/pkg/types"
)

// BaseURL is the root of the Binance public data file tree.
const BaseURL = "https://data.binance.vision"

// Products supported by the data tree
var Products = []string{"spot", "usd-m", "coin-m", "option"}

// Data types available per product and granularity
var (
	SpotDataTypes = []string{"klines", "aggTrades", "trades"}

	FuturesDailyDataTypes = []string{
		"aggTrades",
		"bookDepth",
		"bookTicker",
		"indexPriceKlines",
		"klines",
		"liquidationSnapshot",
		"markPriceKlines",
		"metrics",
		"premiumIndexKlines",
		"trades",
	}

	FuturesMonthlyDataTypes = []string{
		"aggTrades",
		"bookTicker",
		"fundingRate",
		"indexPriceKlines",
		"klines",
		"markPriceKlines",
		"premiumIndexKlines",
		"trades",
	}

	OptionDataTypes = []string{"BVOLIndex", "EOHSummary"}
)

// DataTypesWithInterval lists the data types whose paths carry an interval
// segment. liquidationSnapshot and metrics do not, same as the other
// non-kline types.
var DataTypesWithInterval = []string{
	"klines",
	"indexPriceKlines",
	"markPriceKlines",
	"premiumIndexKlines",
}

// IntervalList holds every interval the data tree publishes
var IntervalList = []string{
	"1s", "1m", "3m", "5m", "15m", "30m",
	"1h", "2h", "4h", "6h", "8h", "12h",
	"1d", "3d", "1w", "1mo",
}

var (
	monthRegex = regexp.MustCompile(`^20\d{2}-(?:0[1-9]|1[0-2])$`)
	dayRegex   = regexp.MustCompile(`^20\d{2}-(?:0[1-9]|1[0-2])-(?:0[1-9]|[12]\d|3[01])$`)
)

const component = "vision"

// HasInterval reports whether dataType paths carry an interval segment
func HasInterval(dataType string) bool {
	return contains(DataTypesWithInterval, dataType)
}

// dateLayout returns the time layout for the granularity
func dateLayout(byDay bool) string {
	if byDay {
		return "2006-01-02"
	}
	return "2006-01"
}

// parseDate parses a date string strictly: the parse must succeed and the
// round trip must reproduce the input, so impossible calendar dates like a
// February 30th are rejected even though they match the format regex.
func parseDate(byDay bool, value string) (time.Time, error) {
	layout := dateLayout(byDay)
	t, err := time.Parse(layout, value)
	if err != nil || t.Format(layout) != value {
		return time.Time{}, errors.Newf(errors.ErrorCategoryInput, component, "validate_dates",
			"impossible calendar date %q", value)
	}
	return t, nil
}

// ValidateDates validates one or two date strings and returns the
// granularity plus the normalized range. Daily dates use YYYY-MM-DD,
// monthly use YYYY-MM; the two must not be mixed.
func ValidateDates(dates []string) (byDay bool, start, end string, err error) {
	if len(dates) == 0 || len(dates) > 2 {
		return false, "", "", errors.Newf(errors.ErrorCategoryInput, component, "validate_dates",
			"expected one or two date strings, got %d", len(dates))
	}

	start = dates[0]
	switch {
	case dayRegex.MatchString(start):
		byDay = true
	case monthRegex.MatchString(start):
		byDay = false
	default:
		return false, "", "", errors.Newf(errors.ErrorCategoryInput, component, "validate_dates",
			"incorrect start date %q, use YYYY-MM or YYYY-MM-DD", start)
	}
	if _, err := parseDate(byDay, start); err != nil {
		return false, "", "", err
	}

	if len(dates) == 2 {
		end = dates[1]
		if byDay && !dayRegex.MatchString(end) {
			return false, "", "", errors.NewInputError(component, "validate_dates", "end date format must be YYYY-MM-DD")
		}
		if !byDay && !monthRegex.MatchString(end) {
			return false, "", "", errors.NewInputError(component, "validate_dates", "end date format must be YYYY-MM")
		}
		if _, err := parseDate(byDay, end); err != nil {
			return false, "", "", err
		}
		if start >= end {
			return false, "", "", errors.NewInputError(component, "validate_dates", "end date must be greater than start date")
		}
	}
	return byDay, start, end, nil
}

// GenerateDates expands a validated range into the full list of date
// strings, inclusive on both ends. An unparseable endpoint is an error, not
// a silent expansion from the zero time.
func GenerateDates(byDay bool, start, end string) ([]string, error) {
	current, err := parseDate(byDay, start)
	if err != nil {
		return nil, err
	}
	dates := []string{start}
	if end == "" {
		return dates, nil
	}
	last, err := parseDate(byDay, end)
	if err != nil {
		return nil, err
	}

	layout := dateLayout(byDay)
	for current.Before(last) {
		if byDay {
			current = current.AddDate(0, 0, 1)
		} else {
			current = current.AddDate(0, 1, 0)
		}
		dates = append(dates, current.Format(layout))
	}
	return dates, nil
}

// ValidateParams checks the product/data-type/interval combination against
// the published tree layout.
func ValidateParams(product, dataType string, byDay bool, intervals []string) error {
	if !contains(Products, product) {
		return errors.Newf(errors.ErrorCategoryInput, component, "validate_params",
			"product must be one of [%s], got %q", strings.Join(Products, ", "), product)
	}

	switch product {
	case "spot":
		if !contains(SpotDataTypes, dataType) {
			return errors.Newf(errors.ErrorCategoryInput, component, "validate_params",
				"data type for spot must be one of [%s], got %q", strings.Join(SpotDataTypes, ", "), dataType)
		}
	case "option":
		if !contains(OptionDataTypes, dataType) {
			return errors.Newf(errors.ErrorCategoryInput, component, "validate_params",
				"data type for option must be one of [%s], got %q", strings.Join(OptionDataTypes, ", "), dataType)
		}
		if !byDay {
			return errors.NewInputError(component, "validate_params", "only daily data is available for option")
		}
	default:
		if byDay && !contains(FuturesDailyDataTypes, dataType) {
			return errors.Newf(errors.ErrorCategoryInput, component, "validate_params",
				"data type for daily futures must be one of [%s], got %q", strings.Join(FuturesDailyDataTypes, ", "), dataType)
		}
		if !byDay && !contains(FuturesMonthlyDataTypes, dataType) {
			return errors.Newf(errors.ErrorCategoryInput, component, "validate_params",
				"data type for monthly futures must be one of [%s], got %q", strings.Join(FuturesMonthlyDataTypes, ", "), dataType)
		}
	}

	if HasInterval(dataType) {
		if len(intervals) == 0 {
			return errors.Newf(errors.ErrorCategoryInput, component, "validate_params",
				"at least one interval is required for %q", dataType)
		}
		for _, interval := range intervals {
			if !contains(IntervalList, interval) {
				return errors.Newf(errors.ErrorCategoryInput, component, "validate_params",
					"incorrect interval %q, accepted: [%s]", interval, strings.Join(IntervalList, ", "))
			}
		}
	}
	return nil
}

// productSegments returns the path segments a product occupies in the tree
func productSegments(product string) []string {
	switch product {
	case "usd-m":
		return []string{"futures", "um"}
	case "coin-m":
		return []string{"futures", "cm"}
	default:
		return []string{product}
	}
}

// BuildPrefix builds the remote directory prefix for one
// (symbol, interval) leaf, with a trailing slash.
func BuildPrefix(product, dataType, symbol, interval string, byDay bool) string {
	parts := append([]string{"data"}, productSegments(product)...)
	if byDay {
		parts = append(parts, "daily")
	} else {
		parts = append(parts, "monthly")
	}
	parts = append(parts, dataType, symbol)
	if interval != "" {
		parts = append(parts, interval)
	}
	return strings.Join(parts, "/") + "/"
}

// SymbolParentPrefix builds the prefix whose children are the symbol
// directories for the given product/data-type/granularity.
func SymbolParentPrefix(product, dataType string, byDay bool) string {
	parts := append([]string{"data"}, productSegments(product)...)
	if byDay {
		parts = append(parts, "daily")
	} else {
		parts = append(parts, "monthly")
	}
	parts = append(parts, dataType)
	return strings.Join(parts, "/") + "/"
}

// Pattern returns the path template with the SYMBOL placeholder, used as the
// dataset key by the assembler.
func Pattern(product, dataType, interval string, byDay bool) string {
	return BuildPrefix(product, dataType, "SYMBOL", interval, byDay)
}

// ArchiveName returns the file name of one archive
func ArchiveName(dataType, symbol, interval, date string) string {
	if interval != "" {
		return fmt.Sprintf("%s-%s-%s.zip", symbol, interval, date)
	}
	return fmt.Sprintf("%s-%s-%s.zip", symbol, dataType, date)
}

// Resolver expands validated request parameters into the ordered job set.
// It performs no I/O; availability filtering is injected as a key set.
type Resolver struct {
	Product    string
	DataType   string
	ByDay      bool
	OutputRoot string
}

// Jobs builds one job per (date x symbol x interval) combination, in
// canonical order: date ascending, then symbol, then interval. When
// available is non-nil, combinations whose remote key is absent are dropped,
// which is what keeps repeat runs free of 404 probing.
func (r *Resolver) Jobs(dates, symbols, intervals []string, available map[string]struct{}) []types.Job {
	symbols = append([]string(nil), symbols...)
	sort.Strings(symbols)

	expandIntervals := intervals
	if !HasInterval(r.DataType) {
		expandIntervals = []string{""}
	}

	var jobs []types.Job
	for _, date := range dates {
		for _, symbol := range symbols {
			for _, interval := range expandIntervals {
				prefix := BuildPrefix(r.Product, r.DataType, symbol, interval, r.ByDay)
				name := ArchiveName(r.DataType, symbol, interval, date)
				remotePath := prefix + name
				if available != nil {
					if _, ok := available[remotePath]; !ok {
						continue
					}
				}
				jobs = append(jobs, types.Job{
					RemotePath: remotePath,
					LocalPath:  filepath.Join(r.OutputRoot, filepath.FromSlash(remotePath)),
					Symbol:     symbol,
					Date:       date,
					Interval:   interval,
				})
			}
		}
	}
	return jobs
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
