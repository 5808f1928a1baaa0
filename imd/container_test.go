package imd

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadHeaderLineWellFormed(t *testing.T) {
	br := bufio.NewReader(strReader("IMD 1.19: 05/06/2020 01:02:03\r\n"))
	info, err := readHeaderLine(br)
	require.NoError(t, err)
	require.Equal(t, "1.19", info.Version)
	require.Equal(t, 5, info.Day)
	require.Equal(t, 6, info.Month)
	require.Equal(t, 2020, info.Year)
	require.Equal(t, 1, info.Hour)
	require.Equal(t, 2, info.Minute)
	require.Equal(t, 3, info.Second)
}

func TestReadHeaderLineMissingPrefix(t *testing.T) {
	br := bufio.NewReader(strReader("NOPE 1.19: 05/06/2020 01:02:03\r\n"))
	_, err := readHeaderLine(br)
	require.Error(t, err)
}

func TestReadHeaderLineDegradesOnBadTimestamp(t *testing.T) {
	br := bufio.NewReader(strReader("IMD 1.19: garbage\r\n"))
	info, err := readHeaderLine(br)
	require.NoError(t, err)
	require.Equal(t, "1.19", info.Version)
	require.Zero(t, info.Day)
	require.True(t, info.Time().IsZero())
}

func TestReadHeaderLineDegradesOnMissingColon(t *testing.T) {
	br := bufio.NewReader(strReader("IMD no colon here\r\n"))
	info, err := readHeaderLine(br)
	require.NoError(t, err)
	require.Equal(t, "Unknown", info.Version)
}

func TestReadCommentStopsAtTerminator(t *testing.T) {
	br := bufio.NewReader(strReader("hello\x1Atrailing"))
	comment, err := readComment(br)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), comment)
	require.Len(t, comment, 5)

	rest, _ := br.Peek(8)
	require.Equal(t, []byte("trailing"), rest)
}

func TestReadCommentUnterminatedIsError(t *testing.T) {
	br := bufio.NewReader(strReader("no terminator here"))
	_, err := readComment(br)
	require.Error(t, err)
}

func TestWriteHeaderLineSubstitutesDefaultVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHeaderLine(&buf, ""))
	require.Contains(t, buf.String(), "IMD "+defaultVersion+": ")
	require.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\r\n")))

	buf.Reset()
	require.NoError(t, writeHeaderLine(&buf, "Unknown"))
	require.Contains(t, buf.String(), "IMD "+defaultVersion+": ")
}

func TestWriteHeaderLineKeepsExplicitVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHeaderLine(&buf, "1.18"))
	require.Contains(t, buf.String(), "IMD 1.18: ")
}

func TestWriteCommentRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeComment(&buf, []byte("hello")))
	require.Equal(t, append([]byte("hello"), commentTerminator), buf.Bytes())

	br := bufio.NewReader(&buf)
	comment, err := readComment(br)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), comment)
}

func strReader(s string) *bytes.Reader {
	return bytes.NewReader([]byte(s))
}
