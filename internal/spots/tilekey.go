package spots

import (
	"fmt"
	"strconv"
	"strings"

	"spot-batch/pkg/geometry"
)

// Tile key layout: <channel>_<x>_<y>_<w>_<h>_z<descriptor>, where the
// descriptor is a single plane index or an inclusive <start>-<end> range.
const (
	nameSeparator = "_"
	zSeparator    = "-"
)

// ZDescriptor returns the Z part of a tile key.
func ZDescriptor(zStart, zEnd int) string {
	if zStart == zEnd {
		return strconv.Itoa(zStart)
	}
	return strconv.Itoa(zStart) + zSeparator + strconv.Itoa(zEnd)
}

// Key fingerprints a (channel, region, Z-descriptor) tuple. Identical
// inputs always produce identical keys; any differing field changes the
// key.
func Key(channel string, r geometry.Rect, zDesc string) string {
	return fmt.Sprintf("%s%s%d%s%d%s%d%s%d%sz%s",
		channel, nameSeparator,
		r.X, nameSeparator, r.Y, nameSeparator,
		r.Width, nameSeparator, r.Height, nameSeparator,
		zDesc)
}

// KeyInfo is a tile key parsed back into its parts.
type KeyInfo struct {
	Channel string
	Region  geometry.Rect
	ZStart  int
	ZEnd    int
}

// ParseKey recovers the channel, region origin and Z range from a tile
// key. Channels may themselves contain the separator, so the fixed fields
// are taken from the end.
func ParseKey(key string) (KeyInfo, error) {
	fields := strings.Split(key, nameSeparator)
	if len(fields) < 6 {
		return KeyInfo{}, fmt.Errorf("malformed tile key %q", key)
	}

	zField := fields[len(fields)-1]
	if !strings.HasPrefix(zField, "z") {
		return KeyInfo{}, fmt.Errorf("malformed z descriptor in tile key %q", key)
	}
	zStart, zEnd, err := parseZDescriptor(zField[1:])
	if err != nil {
		return KeyInfo{}, fmt.Errorf("malformed z descriptor in tile key %q: %w", key, err)
	}

	nums := make([]int, 4)
	for i, f := range fields[len(fields)-5 : len(fields)-1] {
		n, err := strconv.Atoi(f)
		if err != nil {
			return KeyInfo{}, fmt.Errorf("malformed tile key %q: %w", key, err)
		}
		nums[i] = n
	}

	return KeyInfo{
		Channel: strings.Join(fields[:len(fields)-5], nameSeparator),
		Region:  geometry.Rect{X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3]},
		ZStart:  zStart,
		ZEnd:    zEnd,
	}, nil
}

func parseZDescriptor(desc string) (int, int, error) {
	if start, end, ok := strings.Cut(desc, zSeparator); ok {
		s, err := strconv.Atoi(start)
		if err != nil {
			return 0, 0, err
		}
		e, err := strconv.Atoi(end)
		if err != nil {
			return 0, 0, err
		}
		return s, e, nil
	}
	z, err := strconv.Atoi(desc)
	if err != nil {
		return 0, 0, err
	}
	return z, z, nil
}

// SanitizeImageName strips characters that would break the cache layout or
// downstream result filenames.
func SanitizeImageName(name string) string {
	return strings.ReplaceAll(name, ",", "")
}
