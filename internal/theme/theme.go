package theme

import "sync"

// Flag is the theme selection. The zero value is light.
type Flag bool

const (
	Light Flag = false
	Dark  Flag = true
)

func (f Flag) String() string {
	if f == Dark {
		return "dark"
	}
	return "light"
}

// ChartMode is the colour mode handed to the chart renderer
func (f Flag) ChartMode() string {
	return f.String()
}

// Palette is the set of colours a page is rendered with
type Palette struct {
	Text     string
	Bg       string
	Accent   string
	CoinText string
}

var (
	lightPalette = Palette{Text: "#2c3e50", Bg: "#d2dae2", Accent: "#FC427B", CoinText: "#2c3e50"}
	darkPalette  = Palette{Text: "#d2dae2", Bg: "#2d3436", Accent: "#0be881", CoinText: "black"}
)

// Palette returns the colours for f
func (f Flag) Palette() Palette {
	if f == Dark {
		return darkPalette
	}
	return lightPalette
}

// State is the application-scoped theme container. Toggle and Set are the
// only mutators; everything else reads through Get.
type State struct {
	mu   sync.RWMutex
	flag Flag
}

// NewState creates a state starting at initial
func NewState(initial Flag) *State {
	return &State{flag: initial}
}

// Get returns the current flag
func (s *State) Get() Flag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flag
}

// Toggle flips the flag and returns the new value
func (s *State) Toggle() Flag {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flag = !s.flag
	return s.flag
}

// Set replaces the flag
func (s *State) Set(f Flag) {
	s.mu.Lock()
	s.flag = f
	s.mu.Unlock()
}
