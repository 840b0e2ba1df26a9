package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/openngo/sitecms/pkg/utils/logging"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input   string
		want    slog.Level
		isError bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"ERROR", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			level, err := logging.ParseLevel(tc.input)
			if tc.isError {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)
			gt.Equal(t, level, tc.want)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := logging.ParseFormat("JSON")
	gt.NoError(t, err)
	gt.Equal(t, f, logging.FormatJSON)

	f, err = logging.ParseFormat("")
	gt.NoError(t, err)
	gt.Equal(t, f, logging.FormatConsole)

	_, err = logging.ParseFormat("xml")
	gt.Error(t, err)
}

func TestConsoleLevelFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New(buf, logging.WithLevel(slog.LevelWarn))

	logger.Info("info message")
	logger.Warn("warn message")

	gt.S(t, buf.String()).NotContains("info message")
	gt.S(t, buf.String()).Contains("warn message")
}

func TestJSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New(buf, logging.WithFormat(logging.FormatJSON))

	logger.Info("saved record", "collection", "pages", logging.ErrAttr(goerr.New("boom")))

	var record map[string]any
	gt.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	gt.Equal(t, record["msg"], any("saved record"))
	gt.Equal(t, record["collection"], any("pages"))
	gt.S(t, buf.String()).Contains("boom")
}

func TestWithAndFrom(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New(buf).With("request_id", "r-1")

	ctx := logging.With(context.Background(), logger)
	retrieved := logging.From(ctx)
	gt.Equal(t, retrieved, logger)

	retrieved.Info("context message")
	gt.S(t, buf.String()).Contains("context message")
	gt.S(t, buf.String()).Contains("r-1")
}

func TestFromUsesDefault(t *testing.T) {
	original := logging.Default()
	defer logging.SetDefault(original)

	buf := &bytes.Buffer{}
	custom := logging.New(buf)
	logging.SetDefault(custom)

	retrieved := logging.From(context.Background())
	gt.Equal(t, retrieved, custom)

	retrieved.Warn("warning from default")
	gt.S(t, buf.String()).Contains("warning from default")
}
