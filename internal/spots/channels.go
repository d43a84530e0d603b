package spots

import (
	"errors"
	"fmt"
	"strconv"

	"spot-batch/internal/pyramid"
)

// ErrChannelNotFound is returned when a channel selector does not match the
// image's channel metadata.
var ErrChannelNotFound = errors.New("channel not found")

// ChannelBinding maps a requested channel to the image's internal index.
// Bindings are resolved once per run and stay fixed across all regions.
type ChannelBinding struct {
	Name  string
	Index int
}

// ResolveChannels binds channel selectors against the server's channel
// metadata. If every selector parses as an integer, the selectors are
// channel indices; otherwise each must match a channel name exactly.
func ResolveChannels(selectors []string, s pyramid.ImageServer) ([]ChannelBinding, error) {
	if len(selectors) == 0 {
		return nil, ErrNoChannels
	}

	if indices, ok := parseAllInts(selectors); ok {
		bindings := make([]ChannelBinding, 0, len(indices))
		for _, idx := range indices {
			if idx < 0 || idx >= s.NumChannels() {
				return nil, fmt.Errorf("%w: index %d out of range (image has %d channels)",
					ErrChannelNotFound, idx, s.NumChannels())
			}
			bindings = append(bindings, ChannelBinding{Name: s.ChannelName(idx), Index: idx})
		}
		return bindings, nil
	}

	bindings := make([]ChannelBinding, 0, len(selectors))
	for _, name := range selectors {
		idx := -1
		for i := 0; i < s.NumChannels(); i++ {
			if s.ChannelName(i) == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q not in image %s", ErrChannelNotFound, name, s.Name())
		}
		bindings = append(bindings, ChannelBinding{Name: name, Index: idx})
	}
	return bindings, nil
}

func parseAllInts(selectors []string) ([]int, bool) {
	indices := make([]int, 0, len(selectors))
	for _, sel := range selectors {
		n, err := strconv.Atoi(sel)
		if err != nil {
			return nil, false
		}
		indices = append(indices, n)
	}
	return indices, true
}
