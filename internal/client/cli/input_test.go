package cli

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(reader("  North Block  \n"), "Property name", &out)
	require.NoError(t, err)
	assert.Equal(t, "North Block", got)
	assert.Contains(t, out.String(), "Property name")
}

func TestGetSimpleText_EOFWithPartialLine(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(reader("no newline"), "Prompt", &out)
	require.NoError(t, err)
	assert.Equal(t, "no newline", got)
}

func TestGetSimpleText_EOFEmpty(t *testing.T) {
	var out bytes.Buffer
	_, err := GetSimpleText(reader(""), "Prompt", &out)
	require.Error(t, err)
}

func TestGetMultiline(t *testing.T) {
	var out bytes.Buffer
	got, err := GetMultiline(reader("line one\nline two\n\nignored\n"), "Notes", &out)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", got)
}

func TestGetLines_StopsAtEmptyLine(t *testing.T) {
	var out bytes.Buffer
	got, err := GetLines(reader("a.jpg\nb.jpg\n\nc.jpg\n"), "Photo paths", 5, &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, got)
}

func TestGetLines_CapsAtMax(t *testing.T) {
	var out bytes.Buffer
	got, err := GetLines(reader("a.jpg\nb.jpg\nc.jpg\n"), "Photo paths", 2, &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, got)
}
