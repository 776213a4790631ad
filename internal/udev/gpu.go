package udev

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var cardNamePattern = regexp.MustCompile(`^card([0-9]+)$`)

// Card is a DRM primary node found in sysfs.
type Card struct {
	Name    string
	Index   int
	BootVGA bool
}

// ListCards returns the DRM primary nodes under sysfsRoot/class/drm, ordered
// by card number.
func ListCards(sysfsRoot string) ([]Card, error) {
	dir := filepath.Join(sysfsRoot, "class", "drm")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var cards []Card
	for _, e := range entries {
		m := cardNamePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		cards = append(cards, Card{
			Name:    e.Name(),
			Index:   idx,
			BootVGA: readTrimmed(filepath.Join(dir, e.Name(), "device", "boot_vga")) == "1",
		})
	}

	sort.Slice(cards, func(i, j int) bool {
		return cards[i].Index < cards[j].Index
	})
	return cards, nil
}

// SelectGPU prefers the card the firmware booted on, then the lowest numbered
// card.
func SelectGPU(cards []Card) (Card, error) {
	if len(cards) == 0 {
		return Card{}, fmt.Errorf("no DRM devices found")
	}
	for _, c := range cards {
		if c.BootVGA {
			return c, nil
		}
	}
	return cards[0], nil
}

func readTrimmed(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
