package engine

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"time"
)

var (
	durationPattern = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
	timePattern     = regexp.MustCompile(`time=(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
)

// progressParser turns ffmpeg stderr lines into completion fractions.
type progressParser struct {
	duration time.Duration
}

// parse returns the fraction and media time for a stats line. The first
// Duration line seen is taken as the input length.
func (p *progressParser) parse(line string) (float64, time.Duration, bool) {
	if p.duration == 0 {
		if m := durationPattern.FindStringSubmatch(line); m != nil {
			p.duration = clockToDuration(m[1], m[2], m[3])
			return 0, 0, false
		}
	}

	m := timePattern.FindStringSubmatch(line)
	if m == nil || p.duration <= 0 {
		return 0, 0, false
	}

	elapsed := clockToDuration(m[1], m[2], m[3])
	return float64(elapsed) / float64(p.duration), elapsed, true
}

func clockToDuration(hours, minutes, seconds string) time.Duration {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.ParseFloat(seconds, 64)
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s*float64(time.Second))
}

// scanStatsLines splits on both \n and \r; ffmpeg rewrites its stats line in
// place with carriage returns.
func scanStatsLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = scanStatsLines
