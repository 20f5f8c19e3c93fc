package refdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinger/rstrength/pkg/config"
	"github.com/pinger/rstrength/pkg/httputil"
	"github.com/pinger/rstrength/pkg/logger"
)

func testLoader(refData config.RefDataConfig) *Loader {
	cfg := &config.Config{LogLevel: "error", LogFormat: "console", RefData: refData}
	log := logger.New(cfg)
	return NewLoader(cfg, httputil.New(log), log)
}

const classificationCSV = `Symbol,Name,Sector,Industry
AAPL,Apple Inc.,Technology,Consumer Electronics
XOM,Exxon Mobil,Energy,Oil & Gas Integrated
,Ghost Row,Technology,Software
MSFT,Microsoft,Technology,Software - Infrastructure
`

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sector_detail.csv")
	require.NoError(t, os.WriteFile(path, []byte(classificationCSV), 0o644))

	loader := testLoader(config.RefDataConfig{CSVPath: path})

	cs, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, cs, 3, "the empty-symbol row is skipped")

	assert.Equal(t, "AAPL", cs[0].Symbol)
	assert.Equal(t, "Apple Inc.", cs[0].Name)
	assert.Equal(t, "Technology", cs[0].Sector)
	assert.Equal(t, "Consumer Electronics", cs[0].Industry)
	assert.Equal(t, "MSFT", cs[2].Symbol)
}

func TestLoadFromURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(classificationCSV))
	}))
	defer server.Close()

	loader := testLoader(config.RefDataConfig{CSVURL: server.URL + "/sector_detail.csv"})

	cs, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, cs, 3)
}

func TestLocalFileTakesPriority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pinned.csv")
	require.NoError(t, os.WriteFile(path, []byte("Symbol,Sector,Industry\nONLY,Energy,Solar\n"), 0o644))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("remote source must not be consulted when a local file is set")
	}))
	defer server.Close()

	loader := testLoader(config.RefDataConfig{CSVPath: path, CSVURL: server.URL})

	cs, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, "ONLY", cs[0].Symbol)
	assert.Empty(t, cs[0].Name, "name column is optional")
}

func TestLoadNoSourceConfigured(t *testing.T) {
	loader := testLoader(config.RefDataConfig{})

	_, err := loader.Load(context.Background())
	assert.Error(t, err)
}

func TestParseCSVMissingColumn(t *testing.T) {
	_, err := parseCSV(strings.NewReader("Symbol,Sector\nAAPL,Technology\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "industry")
}

func TestParseCSVHeaderCaseInsensitive(t *testing.T) {
	cs, err := parseCSV(strings.NewReader("symbol,SECTOR,Industry\naapl,Technology,Hardware\n"))
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, "Technology", cs[0].Sector)
}
