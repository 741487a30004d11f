package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screener_bot/internal/models"
)

func sig(dir models.Direction, kind models.SignalKind, htfBullish bool) models.Signal {
	return models.Signal{
		Symbol:    "BTC-USDT-SWAP",
		Timeframe: "15m",
		Direction: dir,
		Kind:      kind,
		Setup:     models.Setup{HigherTFBullish: htfBullish},
	}
}

func TestNew(t *testing.T) {
	for _, name := range []string{"trend", "fade", "htf_align"} {
		p, err := New(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}

	_, err := New("martingale")
	assert.Error(t, err)
}

func TestTrend(t *testing.T) {
	dir, ok := Trend{}.Decide(sig(models.DirLong, models.SignalTriggered, false))
	require.True(t, ok)
	assert.Equal(t, models.DirLong, dir)

	dir, ok = Trend{}.Decide(sig(models.DirShort, models.SignalDeepExtreme, true))
	require.True(t, ok)
	assert.Equal(t, models.DirShort, dir)
}

func TestFade(t *testing.T) {
	dir, ok := Fade{}.Decide(sig(models.DirLong, models.SignalTriggered, false))
	require.True(t, ok)
	assert.Equal(t, models.DirShort, dir)

	dir, ok = Fade{}.Decide(sig(models.DirShort, models.SignalTriggered, false))
	require.True(t, ok)
	assert.Equal(t, models.DirLong, dir)
}

func TestHTFAlign(t *testing.T) {
	p := HTFAlign{}

	// совпадение с биасом — берём как есть
	dir, ok := p.Decide(sig(models.DirLong, models.SignalTriggered, true))
	require.True(t, ok)
	assert.Equal(t, models.DirLong, dir)

	dir, ok = p.Decide(sig(models.DirShort, models.SignalTriggered, false))
	require.True(t, ok)
	assert.Equal(t, models.DirShort, dir)

	// конфликт на обычном сигнале — скип
	_, ok = p.Decide(sig(models.DirShort, models.SignalTriggered, true))
	assert.False(t, ok)
	_, ok = p.Decide(sig(models.DirLong, models.SignalTriggered, false))
	assert.False(t, ok)

	// конфликт на deep_extreme — переворот в сторону биаса
	dir, ok = p.Decide(sig(models.DirShort, models.SignalDeepExtreme, true))
	require.True(t, ok)
	assert.Equal(t, models.DirLong, dir)

	dir, ok = p.Decide(sig(models.DirLong, models.SignalDeepExtreme, false))
	require.True(t, ok)
	assert.Equal(t, models.DirShort, dir)
}
