package modes

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	modes := Defaults()
	require.Len(t, modes, 5)

	ids := make([]string, 0, len(modes))
	for _, m := range modes {
		ids = append(ids, m.ID)
		assert.NotEmpty(t, m.Label)
		assert.NotEmpty(t, m.FolderName)
		assert.NotEmpty(t, m.Description)
	}
	assert.Equal(t, []string{
		"island_running",
		"island_to_grid",
		"grid_running",
		"planned_islanding",
		"unplanned_islanding",
	}, ids)
}

func TestMode_FolderPath(t *testing.T) {
	m := Mode{ID: "island_running", FolderName: "MG_Islanded_Mode_json"}
	assert.Equal(t, "/data/MG_Islanded_Mode_json/", m.FolderPath())
}

func TestNewRegistry_Validation(t *testing.T) {
	_, err := NewRegistry()
	assert.Error(t, err)

	_, err = NewRegistry(Mode{FolderName: "x"})
	assert.Error(t, err)

	_, err = NewRegistry(Mode{ID: "a"}, Mode{ID: "a"})
	assert.ErrorContains(t, err, "duplicate")
}

func TestRegistry_Lookup(t *testing.T) {
	r := DefaultRegistry()

	m, ok := r.Lookup("grid_running")
	require.True(t, ok)
	assert.Equal(t, "MG_GridConnected_Mode_json", m.FolderName)

	_, ok = r.Lookup("nope")
	assert.False(t, ok)

	assert.Equal(t, "island_running", r.Default().ID)
}

func TestRegistry_AllIsCopy(t *testing.T) {
	r := DefaultRegistry()
	all := r.All()
	all[0].ID = "changed"

	assert.Equal(t, "island_running", r.All()[0].ID)
}

func TestRegistry_Next(t *testing.T) {
	r := DefaultRegistry()

	assert.Equal(t, "island_to_grid", r.Next("island_running").ID)
	assert.Equal(t, "island_running", r.Next("unplanned_islanding").ID)
	assert.Equal(t, "island_running", r.Next("bogus").ID)
}

func TestSelector_DefaultSelection(t *testing.T) {
	s := NewSelector(DefaultRegistry(), nil)

	assert.Equal(t, "island_running", s.Selected().ID)
	assert.Equal(t, "/data/MG_Islanded_Mode_json/", s.FolderPath())
}

func TestSelector_Select(t *testing.T) {
	s := NewSelector(DefaultRegistry(), nil)

	m, err := s.Select("unplanned_islanding")
	require.NoError(t, err)
	assert.Equal(t, "unplanned_islanding", m.ID)
	assert.Equal(t, "/data/MG_GridToIsland_withoutplan_Mode_json/", s.FolderPath())
}

func TestSelector_SelectUnknownFallsBack(t *testing.T) {
	s := NewSelector(DefaultRegistry(), nil)
	_, err := s.Select("grid_running")
	require.NoError(t, err)

	m, err := s.Select("does_not_exist")
	assert.True(t, errors.Is(err, ErrUnknownMode))
	assert.Equal(t, "island_running", m.ID)
	assert.Equal(t, "island_running", s.Selected().ID)
}

func TestSelector_OnChange(t *testing.T) {
	s := NewSelector(DefaultRegistry(), nil)

	var (
		mu   sync.Mutex
		seen []string
	)
	require.NoError(t, s.OnChange(func(m Mode) {
		mu.Lock()
		seen = append(seen, m.ID)
		mu.Unlock()
	}))

	_, _ = s.Select("island_to_grid")
	_, _ = s.Select("island_to_grid") // unchanged, no notification
	_, _ = s.Select("bogus")          // falls back to island_running

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"island_to_grid", "island_running"}, seen)
}

func TestSelector_OnChangeHandsOffReselect(t *testing.T) {
	r := DefaultRegistry()
	s := NewSelector(r, nil)

	changes := make(chan Mode, 4)
	require.NoError(t, s.OnChange(func(m Mode) { changes <- m }))

	// A change that leads to another selection is applied outside the
	// callback.
	go func() {
		for m := range changes {
			if m.ID == "island_to_grid" {
				_, _ = s.Select(r.Next(m.ID).ID)
				return
			}
		}
	}()

	_, err := s.Select("island_to_grid")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return s.Selected().ID == "grid_running"
	}, time.Second, time.Millisecond)
}
