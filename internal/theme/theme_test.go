package theme

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewState_DefaultsToLight(t *testing.T) {
	var s State
	assert.Equal(t, Light, s.Get())
	assert.Equal(t, Dark, NewState(Dark).Get())
}

func TestToggle_IsInvolution(t *testing.T) {
	for _, start := range []Flag{Light, Dark} {
		s := NewState(start)

		assert.Equal(t, !start, s.Toggle())
		assert.Equal(t, start, s.Toggle())
		assert.Equal(t, start, s.Get())
	}
}

func TestSet(t *testing.T) {
	s := NewState(Light)
	s.Set(Dark)
	assert.Equal(t, Dark, s.Get())
}

func TestFlag_StringAndChartMode(t *testing.T) {
	assert.Equal(t, "light", Light.String())
	assert.Equal(t, "dark", Dark.String())
	assert.Equal(t, "dark", Dark.ChartMode())
	assert.Equal(t, "light", Light.ChartMode())
}

func TestFlag_Palette(t *testing.T) {
	assert.Equal(t, "#FC427B", Light.Palette().Accent)
	assert.Equal(t, "#0be881", Dark.Palette().Accent)
	assert.Equal(t, "#2d3436", Dark.Palette().Bg)
	assert.NotEqual(t, Light.Palette(), Dark.Palette())
}

func TestToggle_ConcurrentEvenCountRestoresFlag(t *testing.T) {
	s := NewState(Light)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Toggle()
			_ = s.Get()
		}()
	}
	wg.Wait()

	assert.Equal(t, Light, s.Get())
}
