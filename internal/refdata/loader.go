package refdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/pinger/rstrength/internal/contracts"
	"github.com/pinger/rstrength/pkg/config"
	"github.com/pinger/rstrength/pkg/httputil"
	"github.com/pinger/rstrength/pkg/logger"
)

// Loader reads symbol classifications from the reference CSV. A local
// file takes priority over the remote URL so a pinned snapshot can
// override the published one.
type Loader struct {
	httpClient *httputil.Client
	cfg        config.RefDataConfig
	logger     *logger.Logger
}

// NewLoader creates a classification loader.
func NewLoader(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Loader {
	return &Loader{
		httpClient: httpClient,
		cfg:        cfg.RefData,
		logger:     log,
	}
}

// Load reads classifications from the configured source.
func (l *Loader) Load(ctx context.Context) ([]*contracts.Classification, error) {
	if l.cfg.CSVPath != "" {
		return l.loadFile(l.cfg.CSVPath)
	}
	if l.cfg.CSVURL != "" {
		return l.loadURL(ctx, l.cfg.CSVURL)
	}
	return nil, fmt.Errorf("no classification source configured")
}

func (l *Loader) loadFile(path string) ([]*contracts.Classification, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open classification file: %w", err)
	}
	defer f.Close()

	cs, err := parseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	l.logger.WithFields(map[string]interface{}{
		"path":  path,
		"count": len(cs),
	}).Info("Loaded classifications from file")
	return cs, nil
}

func (l *Loader) loadURL(ctx context.Context, url string) ([]*contracts.Classification, error) {
	resp, err := l.httpClient.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("download classification CSV: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	cs, err := parseCSV(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}

	l.logger.WithFields(map[string]interface{}{
		"url":   url,
		"count": len(cs),
	}).Info("Loaded classifications from URL")
	return cs, nil
}

// parseCSV reads a header-keyed classification CSV. Required columns:
// Symbol, Sector, Industry; Name is optional. Rows with an empty symbol
// are skipped.
func parseCSV(r io.Reader) ([]*contracts.Classification, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"symbol", "sector", "industry"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var cs []*contracts.Classification
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}

		symbol := field(record, "symbol")
		if symbol == "" {
			continue
		}

		cs = append(cs, &contracts.Classification{
			Symbol:   symbol,
			Name:     field(record, "name"),
			Sector:   field(record, "sector"),
			Industry: field(record, "industry"),
		})
	}

	return cs, nil
}
