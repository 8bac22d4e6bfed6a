package logger

import (
	"strconv"
	"strings"
	"sync"
)

const (
	defaultSampleNum = 1
	defaultSampleDen = 50
)

// ratioSampler lets num out of every den events through, in a fixed cycle.
// A 0/0 ratio lets everything through.
type ratioSampler struct {
	mu       sync.Mutex
	num, den int
	pos      int
}

func newRatioSampler(num, den int) *ratioSampler {
	s := new(ratioSampler)
	s.Set(num, den)
	return s
}

func (s *ratioSampler) Set(num, den int) {
	if num <= 0 || den <= 0 {
		num, den = 0, 0
	}
	s.mu.Lock()
	s.num, s.den, s.pos = min(num, den), den, 0
	s.mu.Unlock()
}

func (s *ratioSampler) Allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.den == 0 {
		return true
	}
	s.pos = s.pos%s.den + 1
	return s.pos <= s.num
}

// parseRatioSpec reads "n/d" or a bare "d" meaning 1/d. Anything else yields 0/0.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	a, b, ok := strings.Cut(spec, "/")
	if !ok {
		if d, err := strconv.Atoi(spec); err == nil && d > 0 {
			return 1, d
		}
		return 0, 0
	}
	num, errA := strconv.Atoi(strings.TrimSpace(a))
	den, errB := strconv.Atoi(strings.TrimSpace(b))
	if errA != nil || errB != nil {
		return 0, 0
	}
	return num, den
}

// sampleRatio resolves logging.debug_sample. Empty or invalid values keep the
// default; "0/0" disables sampling.
func sampleRatio(spec string) (int, int) {
	if strings.TrimSpace(spec) == "" {
		return defaultSampleNum, defaultSampleDen
	}
	num, den := parseRatioSpec(spec)
	switch {
	case num == 0 && den == 0:
		return 0, 0
	case num <= 0 || den <= 0:
		return defaultSampleNum, defaultSampleDen
	}
	return num, den
}
