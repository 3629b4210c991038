package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"macdlab/model"
)

var dateLayouts = []string{"2006-01-02", "2006/01/02", "20060102", time.RFC3339}

// CSVProvider reads <Dir>/<SYMBOL>.csv. With a header row the "date" and
// "close" columns are located by name; without one, two-column rows are
// date,close and wider rows follow the kline layout
// date,open,close,high,low,volume.
type CSVProvider struct {
	Dir string
	// Encoding is "" (utf-8) or "gbk".
	Encoding string
	Logger   *zap.Logger
}

func NewCSVProvider(dir string, logger *zap.Logger) *CSVProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVProvider{Dir: dir, Logger: logger}
}

func (p *CSVProvider) Load(ctx context.Context, symbol string, start, end time.Time) (model.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return model.PriceSeries{}, err
	}
	path := filepath.Join(p.Dir, symbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.PriceSeries{}, fmt.Errorf("%s: %w", symbol, ErrNoData)
		}
		return model.PriceSeries{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.EqualFold(p.Encoding, "gbk") {
		r = transform.NewReader(f, simplifiedchinese.GBK.NewDecoder())
	}

	pts, skipped, err := ParseCSV(r)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if skipped > 0 && p.Logger != nil {
		p.Logger.Debug("skipped unparseable rows", zap.String("symbol", symbol), zap.Int("rows", skipped))
	}
	return window(model.PriceSeries{Symbol: symbol, Points: pts}, start, end)
}

// IsPattern reports whether symbol is a glob rather than a literal name.
func IsPattern(symbol string) bool {
	return strings.ContainsAny(symbol, "*?[{")
}

// Match lists the symbols under Dir whose file names match pattern, for
// example "XL*" or "sectors/**". The result is sorted.
func (p *CSVProvider) Match(pattern string) ([]string, error) {
	files, err := doublestar.Glob(os.DirFS(p.Dir), pattern+".csv")
	if err != nil {
		return nil, fmt.Errorf("symbol pattern %q: %w", pattern, err)
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, strings.TrimSuffix(f, ".csv"))
	}
	sort.Strings(out)
	return out, nil
}

// ParseCSV decodes close observations sorted by time. Rows whose date or
// close cannot be parsed are skipped and counted.
func ParseCSV(r io.Reader) (pts []model.PricePoint, skipped int, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	dateCol, closeCol := -1, -1
	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, skipped, err
		}
		if first {
			first = false
			if d, c, ok := headerColumns(rec); ok {
				dateCol, closeCol = d, c
				continue
			}
		}
		dc, cc := dateCol, closeCol
		if dc < 0 {
			dc, cc = 0, 1
			if len(rec) >= 6 {
				cc = 2
			}
		}
		if len(rec) <= dc || len(rec) <= cc {
			skipped++
			continue
		}
		t, ok := parseDate(rec[dc])
		if !ok {
			skipped++
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[cc]), 64)
		if err != nil {
			skipped++
			continue
		}
		pts = append(pts, model.PricePoint{Time: t, Close: v})
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Time.Before(pts[j].Time) })
	return pts, skipped, nil
}

func headerColumns(rec []string) (dateCol, closeCol int, ok bool) {
	dateCol, closeCol = -1, -1
	for i, h := range rec {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date", "time", "timestamp":
			dateCol = i
		case "close", "adj close", "adj_close":
			if closeCol < 0 || strings.HasPrefix(strings.ToLower(h), "adj") {
				closeCol = i
			}
		}
	}
	return dateCol, closeCol, dateCol >= 0 && closeCol >= 0
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
