package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"

	"github.com/1broseidon/scanout/internal/backend"
)

// Output is a RandR output with the modes it advertises, preferred first.
type Output struct {
	ID        uint32
	Name      string
	Connected bool
	Modes     []backend.Mode
}

// Outputs lists every RandR output of the root window.
func (c *Connection) Outputs() ([]Output, error) {
	resources, err := randr.GetScreenResources(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	modes := make(map[uint32]randr.ModeInfo, len(resources.Modes))
	for _, m := range resources.Modes {
		modes[m.Id] = m
	}

	outputs := make([]Output, 0, len(resources.Outputs))
	for _, id := range resources.Outputs {
		info, err := randr.GetOutputInfo(c.XUtil.Conn(), id, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}
		out := Output{
			ID:        uint32(id),
			Name:      string(info.Name),
			Connected: info.Connection == randr.ConnectionConnected,
		}
		for _, mid := range info.Modes {
			if mi, ok := modes[uint32(mid)]; ok {
				out.Modes = append(out.Modes, modeFromInfo(mi))
			}
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

// modeFromInfo converts a RandR mode line, deriving the vertical refresh
// from the dot clock and totals.
func modeFromInfo(mi randr.ModeInfo) backend.Mode {
	m := backend.Mode{Width: int(mi.Width), Height: int(mi.Height)}

	vtotal := uint64(mi.Vtotal)
	if mi.ModeFlags&randr.ModeFlagDoubleScan != 0 {
		vtotal *= 2
	}
	if mi.ModeFlags&randr.ModeFlagInterlace != 0 {
		vtotal /= 2
	}
	if mi.Htotal == 0 || vtotal == 0 {
		return m
	}
	m.RefreshMHz = int(uint64(mi.DotClock) * 1000 / (uint64(mi.Htotal) * vtotal))
	return m
}
