package traceplot

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/clockdrive/internal/road"
)

func circle(n int, centre road.Position, r float64) road.Trace {
	t := make(road.Trace, n)
	for i := range t {
		a := GuideAngle(float64(i) / float64(n))
		t[i] = road.Position{X: centre.X + r*math.Cos(a), Y: centre.Y + r*math.Sin(a)}
	}
	return t
}

func TestGuideRays(t *testing.T) {
	centre := road.Position{X: 100, Y: 100}
	ends := GuideRays(centre, 10)
	require.Len(t, ends, GuideCount)

	// 0h points up (smaller y on screen), 3h right, 6h down, 9h left.
	want := map[int]road.Position{0: {X: 100, Y: 90}, 3: {X: 110, Y: 100}, 6: {X: 100, Y: 110}, 9: {X: 90, Y: 100}}
	for h, w := range want {
		assert.InDelta(t, w.X, ends[h].X, 1e-9, "hour %d", h)
		assert.InDelta(t, w.Y, ends[h].Y, 1e-9, "hour %d", h)
	}
}

func TestToXYs(t *testing.T) {
	tr := road.Trace{{X: 1, Y: 2}, {X: 3, Y: 4}}

	open := toXYs(tr, false)
	assert.Len(t, open, 2)

	closed := toXYs(tr, true)
	require.Len(t, closed, 3)
	assert.Equal(t, closed[0], closed[2])
}

func TestSavePNG(t *testing.T) {
	centre := road.Position{X: 320, Y: 240}
	raw := circle(48, centre, 200)
	filtered, err := road.SmoothWindowMean(raw, 2)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "RoadData.png")
	require.NoError(t, SavePNG(path, raw, filtered, centre))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")), "not a PNG")
}

func TestSavePNG_Empty(t *testing.T) {
	err := SavePNG(filepath.Join(t.TempDir(), "empty.png"), nil, nil, road.Position{})
	assert.True(t, errors.Is(err, ErrEmptyTrace))
}

func TestSavePNG_BadDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "plot.png")
	err := SavePNG(path, road.Trace{{X: 1, Y: 1}}, nil, road.Position{})
	assert.Error(t, err)
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	raw := road.Trace{{X: 1, Y: 2}, {X: 3, Y: 4}}
	require.NoError(t, RenderHTML(&buf, raw, raw[:1]))

	html := buf.String()
	assert.True(t, strings.Contains(html, "<html"), "missing html document")
	assert.Contains(t, html, "<title>Road trace</title>")
}
