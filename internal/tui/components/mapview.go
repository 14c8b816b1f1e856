package components

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/paulmach/orb"

	"github.com/rendis/catalogtap/internal/tui/styles"
)

// MapView renders producers, region capitals and the consumer as a
// Braille scatter plot. Points are orb.Points in [lon, lat] order.
type MapView struct {
	width, height int

	points    []orb.Point
	landmarks []orb.Point // region capitals, drawn faintly
	consumer  *orb.Point
	selected  int // index into points, -1 if none

	fitted orb.Bound // frame of the current points, padded
	view   orb.Bound // fitted after zoom
	zoom   float64   // 1 shows the whole frame
}

func NewMapView(width, height int) MapView {
	return MapView{width: width, height: height, selected: -1, zoom: 1}
}

func (m *MapView) SetSize(width, height int) {
	m.width, m.height = width, height
}

func (m *MapView) SetLandmarks(points []orb.Point) {
	m.landmarks = points
}

// SetConsumer marks the consumer position; nil hides it.
func (m *MapView) SetConsumer(p *orb.Point) {
	m.consumer = p
	m.refit()
}

func (m *MapView) SetPoints(points []orb.Point) {
	m.points = points
	m.refit()
}

// SetSelected highlights points[idx]; a negative index clears it.
func (m *MapView) SetSelected(idx int) {
	m.selected = idx
}

func (m *MapView) ZoomIn() {
	m.zoom = math.Min(m.zoom*1.5, 20)
	m.reframe()
}

func (m *MapView) ZoomOut() {
	m.zoom = math.Max(m.zoom/1.5, 0.5)
	m.reframe()
}

func (m *MapView) ZoomReset() {
	m.zoom = 1
	m.reframe()
}

// refit frames the producers and the consumer; with neither it frames
// the landmarks.
func (m *MapView) refit() {
	var mp orb.MultiPoint
	mp = append(mp, m.points...)
	if m.consumer != nil {
		mp = append(mp, *m.consumer)
	}
	if len(mp) == 0 {
		mp = append(mp, m.landmarks...)
	}
	if len(mp) == 0 {
		return
	}
	b := mp.Bound()
	padLat := math.Max(latSpan(b)*0.05, 0.01)
	padLon := math.Max(lonSpan(b)*0.05, 0.01)
	m.fitted = orb.Bound{
		Min: orb.Point{b.Min.Lon() - padLon, b.Min.Lat() - padLat},
		Max: orb.Point{b.Max.Lon() + padLon, b.Max.Lat() + padLat},
	}
	m.reframe()
}

func (m *MapView) reframe() {
	c := m.fitted.Center()
	halfLat := latSpan(m.fitted) / 2 / m.zoom
	halfLon := lonSpan(m.fitted) / 2 / m.zoom
	m.view = orb.Bound{
		Min: orb.Point{c.Lon() - halfLon, c.Lat() - halfLat},
		Max: orb.Point{c.Lon() + halfLon, c.Lat() + halfLat},
	}
}

func latSpan(b orb.Bound) float64 { return b.Max.Lat() - b.Min.Lat() }
func lonSpan(b orb.Bound) float64 { return b.Max.Lon() - b.Min.Lon() }

// projection maps coordinates onto a dot canvas keeping the view's
// ground proportions, letterboxed along the short axis.
type projection struct {
	view             orb.Bound
	w, h             int // dots in use
	offX, offY       int
	canvasW, canvasH int
}

func newProjection(view orb.Bound, canvasW, canvasH int) projection {
	p := projection{view: view, w: canvasW, h: canvasH, canvasW: canvasW, canvasH: canvasH}

	// A degree of longitude shrinks with cos(lat). Braille dots are about
	// square on a terminal, so the canvas ratio is in ground units too.
	midLat := view.Center().Lat() * math.Pi / 180
	ground := lonSpan(view) * math.Cos(midLat) / latSpan(view)
	canvas := float64(canvasW) / float64(canvasH)

	if ground < canvas {
		p.w = max(int(float64(canvasH)*ground), 4)
		p.offX = (canvasW - p.w) / 2
	} else {
		p.h = max(int(float64(canvasW)/ground), 4)
		p.offY = (canvasH - p.h) / 2
	}
	return p
}

func (p projection) dot(pt orb.Point) (x, y int, ok bool) {
	x = p.offX + int((pt.Lon()-p.view.Min.Lon())/lonSpan(p.view)*float64(p.w-1))
	y = p.offY + int((p.view.Max.Lat()-pt.Lat())/latSpan(p.view)*float64(p.h-1))
	return x, y, x >= 0 && x < p.canvasW && y >= 0 && y < p.canvasH
}

// brailleBit is the bit of the dot at (row, col) inside one cell; rows
// 0..3, cols 0..1. The cell rune is 0x2800 plus the raised bits.
var brailleBit = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// layer holds the raised bits of every terminal cell.
type layer [][]rune

func newLayer(cols, rows int) layer {
	l := make(layer, rows)
	for i := range l {
		l[i] = make([]rune, cols)
	}
	return l
}

func (l layer) raise(x, y int) {
	l[y/4][x/2] |= brailleBit[y%4][x%2]
}

func (m MapView) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}
	cols, rows := m.width, m.height
	if latSpan(m.view) == 0 || lonSpan(m.view) == 0 {
		return strings.TrimSuffix(strings.Repeat(strings.Repeat(" ", cols)+"\n", rows), "\n")
	}

	proj := newProjection(m.view, cols*2, rows*4)
	landmarks, points, marks := newLayer(cols, rows), newLayer(cols, rows), newLayer(cols, rows)
	plot := func(l layer, pt orb.Point) {
		if x, y, ok := proj.dot(pt); ok {
			l.raise(x, y)
		}
	}

	for _, pt := range m.landmarks {
		plot(landmarks, pt)
	}
	for i, pt := range m.points {
		if i == m.selected {
			plot(marks, pt)
		} else {
			plot(points, pt)
		}
	}
	if m.consumer != nil {
		plot(marks, *m.consumer)
	}

	// Topmost layer first.
	styled := []struct {
		layer layer
		style lipgloss.Style
	}{
		{marks, lipgloss.NewStyle().Foreground(styles.Consumer).Bold(true)},
		{points, lipgloss.NewStyle().Foreground(styles.Success)},
		{landmarks, lipgloss.NewStyle().Foreground(styles.Muted)},
	}

	var sb strings.Builder
	for r := range rows {
		if r > 0 {
			sb.WriteByte('\n')
		}
	cell:
		for c := range cols {
			for _, s := range styled {
				if bits := s.layer[r][c]; bits != 0 {
					sb.WriteString(s.style.Render(string(0x2800 + bits)))
					continue cell
				}
			}
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}
