package imd

import (
	"bufio"
	"io"
	"time"

	"github.com/pkg/errors"
)

// headerMagic is the mandatory 4-byte prefix of the ASCII header line.
const headerMagic = "IMD "

// commentTerminator marks the end of the comment block (spec.md §4.1).
const commentTerminator = 0x1A

// readHeaderLine reads the ASCII header line (terminated by CR/LF, either
// order tolerated), validates the "IMD " prefix, and attempts to extract a
// version and timestamp. Any read error or a missing prefix is fatal.
func readHeaderLine(r *bufio.Reader) (HeaderInfo, error) {
	line, err := readLine(r)
	if err != nil {
		return HeaderInfo{}, newErr(KindIO, "read header line", err)
	}

	if len(line) < len(headerMagic) || line[:len(headerMagic)] != headerMagic {
		return HeaderInfo{}, newErr(KindInvalidFormat, "header line", errorf("missing %q prefix", headerMagic))
	}

	return parseHeaderLine(line), nil
}

// readLine consumes bytes until CR, LF, or CRLF and returns the line with
// the terminator stripped. EOF with no terminator seen before it is an
// error; EOF exactly at the terminator is not.
func readLine(r *bufio.Reader) (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return "", io.ErrUnexpectedEOF
			}
			return "", err
		}
		if b == '\r' {
			next, err := r.Peek(1)
			if err == nil && len(next) == 1 && next[0] == '\n' {
				_, _ = r.ReadByte()
			}
			return string(buf), nil
		}
		if b == '\n' {
			next, err := r.Peek(1)
			if err == nil && len(next) == 1 && next[0] == '\r' {
				_, _ = r.ReadByte()
			}
			return string(buf), nil
		}
		buf = append(buf, b)
	}
}

// parseHeaderLine attempts "IMD <version>: <DD>/<MM>/<YYYY> <hh>:<mm>:<ss>"
// and degrades partial matches per spec.md §3: the version string is
// "Unknown" when it cannot be extracted, and the timestamp fields are all
// zero when strict parsing fails or a field is out of calendar range.
func parseHeaderLine(line string) HeaderInfo {
	info := HeaderInfo{Version: "Unknown"}

	rest := line[len(headerMagic):]
	colon := indexByte(rest, ':')
	if colon < 0 {
		return info
	}
	version := rest[:colon]
	if version != "" {
		info.Version = version
	}

	var day, month, year, hour, minute, second int
	n, err := sscanTimestamp(rest[colon+1:], &day, &month, &year, &hour, &minute, &second)
	if err != nil || n != 6 {
		return info
	}
	if !validCalendar(day, month, year, hour, minute, second) {
		return info
	}

	info.Day, info.Month, info.Year = day, month, year
	info.Hour, info.Minute, info.Second = hour, minute, second
	return info
}

func validCalendar(day, month, year, hour, minute, second int) bool {
	if month < 1 || month > 12 {
		return false
	}
	if day < 1 || day > 31 {
		return false
	}
	if year < 1 {
		return false
	}
	if hour < 0 || hour > 23 {
		return false
	}
	if minute < 0 || minute > 59 {
		return false
	}
	if second < 0 || second > 59 {
		return false
	}
	return true
}

// readComment consumes bytes up to (not including) the first 0x1A
// terminator byte. Reaching EOF first is a fatal read failure.
func readComment(r *bufio.Reader) ([]byte, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil, newErr(KindIO, "read comment", io.ErrUnexpectedEOF)
			}
			return nil, newErr(KindIO, "read comment", err)
		}
		if b == commentTerminator {
			return buf, nil
		}
		buf = append(buf, b)
	}
}

// skipComment performs the same scan as readComment without allocating a
// result, for callers (the consistency checker) that only need to
// position the stream past the comment block.
func skipComment(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return newErr(KindIO, "skip comment", io.ErrUnexpectedEOF)
			}
			return newErr(KindIO, "skip comment", err)
		}
		if b == commentTerminator {
			return nil
		}
	}
}

// writeHeaderLine emits "IMD <version>: DD/MM/YYYY hh:mm:ss\r\n" using the
// current local time. A missing or placeholder version is replaced by
// defaultVersion at emit time.
func writeHeaderLine(w io.Writer, version string) error {
	if version == "" || version == "Unknown" {
		version = defaultVersion
	}
	now := time.Now()
	line := headerMagic + version + ": " +
		pad2(now.Day()) + "/" + pad2(int(now.Month())) + "/" + itoa4(now.Year()) + " " +
		pad2(now.Hour()) + ":" + pad2(now.Minute()) + ":" + pad2(now.Second()) + "\r\n"
	_, err := io.WriteString(w, line)
	if err != nil {
		return newErr(KindIO, "write header line", err)
	}
	return nil
}

// writeComment emits the comment bytes followed by the single 0x1A
// terminator.
func writeComment(w io.Writer, comment []byte) error {
	if _, err := w.Write(comment); err != nil {
		return newErr(KindIO, "write comment", err)
	}
	if _, err := w.Write([]byte{commentTerminator}); err != nil {
		return newErr(KindIO, "write comment terminator", err)
	}
	return nil
}

// --- small formatting/parsing helpers kept local to avoid fmt.Sscanf's
// looser error semantics around partial field matches. ---

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func pad2(n int) string {
	if n < 0 || n > 99 {
		return "00"
	}
	digits := "0123456789"
	return string([]byte{digits[n/10], digits[n%10]})
}

func itoa4(n int) string {
	digits := "0123456789"
	if n < 0 {
		n = 0
	}
	b := [4]byte{}
	for i := 3; i >= 0; i-- {
		b[i] = digits[n%10]
		n /= 10
	}
	return string(b[:])
}

// sscanTimestamp parses " <DD>/<MM>/<YYYY> <hh>:<mm>:<ss>" strictly: every
// separator must match exactly and every field must be all-digit.
func sscanTimestamp(s string, day, month, year, hour, minute, second *int) (int, error) {
	s = trimLeadingSpace(s)
	fields := []struct {
		dst *int
		sep byte
	}{
		{day, '/'}, {month, '/'}, {year, ' '},
		{hour, ':'}, {minute, ':'}, {second, 0},
	}

	count := 0
	for i, f := range fields {
		end := len(s)
		if f.sep != 0 {
			end = indexByte(s, f.sep)
			if end < 0 {
				return count, errors.New("separator not found")
			}
		}
		digits := s[:end]
		if digits == "" {
			return count, errors.New("empty field")
		}
		v, err := parseDigits(digits)
		if err != nil {
			return count, err
		}
		*f.dst = v
		count++
		if i < len(fields)-1 {
			s = s[end+1:]
		}
	}
	return count, nil
}

func trimLeadingSpace(s string) string {
	i := 0
	for i < len(s) && s[i] == ' ' {
		i++
	}
	return s[i:]
}

func parseDigits(s string) (int, error) {
	if len(s) == 0 {
		return 0, errors.New("empty digits")
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, errors.Errorf("non-digit byte %q", c)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
