// Package modes holds the catalogue of simulated microgrid operating modes
// and the dashboard's current selection.
//
// Each mode names the folder of recorded simulation data that backs it. The
// folder path is what consumers pass on to the backend; the package attaches
// no other meaning to a mode.
package modes

import (
	"errors"
	"fmt"
)

// ErrUnknownMode is returned when a mode id is not in the registry.
var ErrUnknownMode = errors.New("modes: unknown mode")

// DataRoot is the prefix of every mode data folder.
const DataRoot = "/data"

// Mode describes one operating scenario.
type Mode struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	FolderName  string `json:"folderName"`
	Description string `json:"description"`
}

// FolderPath returns the static data folder for the mode, with a trailing
// slash.
func (m Mode) FolderPath() string {
	return fmt.Sprintf("%s/%s/", DataRoot, m.FolderName)
}

// Defaults returns the five scenarios shipped with the dashboard, in display
// order.
func Defaults() []Mode {
	return []Mode{
		{
			ID:          "island_running",
			Label:       "Islanded operation",
			FolderName:  "MG_Islanded_Mode_json",
			Description: "PV irradiance drops by 400W/m² at 0.7s and wind speed drops by 3m/s at 0.5s. The microgrid runs detached from the main grid, testing self-supply and stability when the utility is faulted or unavailable.",
		},
		{
			ID:          "island_to_grid",
			Label:       "Island to grid",
			FolderName:  "MG_IslandToGrid_Switch_json",
			Description: "The grid connection closes at 1s of a 2s run. Models the transition from islanded operation to running in parallel with the main grid, exercising synchronisation and power control.",
		},
		{
			ID:          "grid_running",
			Label:       "Grid-connected operation",
			FolderName:  "MG_GridConnected_Mode_json",
			Description: "PV irradiance drops by 400W/m² at 0.7s and wind speed drops by 3m/s at 0.5s. The microgrid runs in parallel with the main grid and exchanges power while absorbing internal renewable fluctuations.",
		},
		{
			ID:          "planned_islanding",
			Label:       "Planned islanding",
			FolderName:  "MG_GridToIsland_Mode_json",
			Description: "2s run switching from grid-connected to islanded at 1s. Models a scheduled disconnection from the main grid, for maintenance or ahead of an expected disturbance.",
		},
		{
			ID:          "unplanned_islanding",
			Label:       "Unplanned islanding",
			FolderName:  "MG_GridToIsland_withoutplan_Mode_json",
			Description: "2s run where grid frequency collapses at 1s. Models an emergency separation caused by a severe upstream fault, with a fast switch to islanded operation to keep local loads supplied.",
		},
	}
}

// Registry is an ordered, read-only set of modes. The first mode is the
// default.
type Registry struct {
	modes []Mode
	byID  map[string]int
}

// NewRegistry builds a registry from modes. Ids must be unique and non-empty.
func NewRegistry(modes ...Mode) (*Registry, error) {
	if len(modes) == 0 {
		return nil, errors.New("modes: registry needs at least one mode")
	}
	r := &Registry{
		modes: append([]Mode(nil), modes...),
		byID:  make(map[string]int, len(modes)),
	}
	for i, m := range r.modes {
		if m.ID == "" {
			return nil, fmt.Errorf("modes: mode %d has no id", i)
		}
		if _, dup := r.byID[m.ID]; dup {
			return nil, fmt.Errorf("modes: duplicate mode id %q", m.ID)
		}
		r.byID[m.ID] = i
	}
	return r, nil
}

// DefaultRegistry returns a registry of Defaults.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Defaults()...)
	if err != nil {
		panic(err)
	}
	return r
}

// All returns the modes in order.
func (r *Registry) All() []Mode {
	return append([]Mode(nil), r.modes...)
}

// Lookup returns the mode with the given id.
func (r *Registry) Lookup(id string) (Mode, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Mode{}, false
	}
	return r.modes[i], true
}

// Next returns the mode after id, wrapping around. An unknown id yields the
// default mode.
func (r *Registry) Next(id string) Mode {
	i, ok := r.byID[id]
	if !ok {
		return r.Default()
	}
	return r.modes[(i+1)%len(r.modes)]
}

// Default returns the first mode.
func (r *Registry) Default() Mode {
	return r.modes[0]
}
