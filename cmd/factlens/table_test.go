package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintTableAlignsWideRunes(t *testing.T) {
	var buf bytes.Buffer
	printTable(&buf, []string{"A", "TITLE"}, [][]string{
		{"新闻", "x"},
		{"ab", "y"},
	})

	assert.Equal(t, "A     TITLE\n----  -----\n新闻  x\nab    y\n", buf.String())
}

func TestPrintTableTruncatesLongCells(t *testing.T) {
	var buf bytes.Buffer
	long := strings.Repeat("claim ", 20)
	printTable(&buf, []string{"SCORE", "CLAIM"}, [][]string{{"32", long + "\nnext line"}})

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	row := lines[2]
	assert.True(t, strings.HasSuffix(row, "…"))
	assert.LessOrEqual(t, runewidth.StringWidth(row), len("SCORE  ")+maxColumnWidth)
}

func TestParseMode(t *testing.T) {
	tests := map[string]string{
		"prod":        "production",
		"Production":  "production",
		"dev":         "development",
		"development": "development",
		"":            "development",
		"staging":     "development",
	}
	for in, want := range tests {
		assert.Equal(t, want, parseMode(in), in)
	}
}
