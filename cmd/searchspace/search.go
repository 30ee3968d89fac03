package main

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/Carmen-Shannon/oxy-compute/engine/profiler"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/result"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/pkg/errors"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed searchspace.wgsl
var searchFragment string

// size is an image or search space size in pixels.
type size struct {
	W, H int
}

func (s size) pixels() int64 {
	return int64(s.W) * int64(s.H)
}

// searchSpace returns the offsets the moving image is tried at inside the fixed image.
func searchSpace(fixed, moving size) (size, error) {
	sp := size{W: fixed.W - moving.W, H: fixed.H - moving.H}
	if sp.W <= 0 || sp.H <= 0 {
		return size{}, errors.Errorf("moving image %dx%d must be smaller than fixed image %dx%d in both dimensions",
			moving.W, moving.H, fixed.W, fixed.H)
	}
	return sp, nil
}

// searchProgram scores every offset of the search space by the joint grey-level entropy of the
// overlapping pixels. Lower is a better match.
func searchProgram(sp, moving size, fixedImg, movingImg bind_group_provider.ImageSource) (*pipeline.ProgramDescriptor, error) {
	return pipeline.NewProgram("searchspace",
		pipeline.WithFragmentShader(searchFragment),
		pipeline.WithOutput(result.Float32, sp.W, sp.H),
		pipeline.WithInputs(
			bind_group_provider.Scalar{Name: "sp_width", Value: float32(sp.W)},
			bind_group_provider.Scalar{Name: "sp_height", Value: float32(sp.H)},
			bind_group_provider.Scalar{Name: "m_width", Value: float32(moving.W)},
			bind_group_provider.Scalar{Name: "m_height", Value: float32(moving.H)},
			bind_group_provider.ImageRef{Name: "fixed_tex", Image: fixedImg},
			bind_group_provider.ImageRef{Name: "moving_tex", Image: movingImg},
		),
	)
}

// metrics summarizes one search.
type metrics struct {
	Fixed, Moving, Space size

	// Time is the execution wall time, Upload the share spent binding inputs, Read the readback.
	Time, Upload, Read time.Duration
}

func newMetrics(fixed, moving, sp size, run profiler.RunStats, read time.Duration) metrics {
	return metrics{Fixed: fixed, Moving: moving, Space: sp, Time: run.Total, Upload: run.Upload, Read: read}
}

func (m metrics) iterations() int64 {
	return m.Space.pixels()
}

// pixelsCompared counts the pixel pairs fed into the histograms of all offsets.
func (m metrics) pixelsCompared() int64 {
	return m.iterations() * m.Moving.pixels()
}

func perSecond(n int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
	headerStyle = lipgloss.NewStyle().Reverse(true).Padding(0, 2, 0, 2).Align(lipgloss.Center)
	cellStyle   = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
)

func newTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if withHeader && row == lgtable.HeaderRow {
				return headerStyle
			}
			if col == 0 {
				return cellStyle.Align(lipgloss.Right)
			}
			return cellStyle.Align(lipgloss.Left)
		})
}

// report renders the metrics and the best n offsets.
func report(p *message.Printer, m metrics, best []common.Cell[float32], n int) string {
	dims := func(s size) string { return p.Sprintf("%d x %d", s.W, s.H) }

	stats := newTable(false)
	stats.Row("fixed", dims(m.Fixed))
	stats.Row("moving", dims(m.Moving))
	stats.Row("search space", dims(m.Space))
	stats.Row("time", m.Time.String())
	stats.Row("upload time", m.Upload.String())
	stats.Row("read time", m.Read.String())
	stats.Row("iterations", p.Sprintf("%d", m.iterations()))
	stats.Row("pixels compared", p.Sprintf("%d", m.pixelsCompared()))
	stats.Row("iterations/s", p.Sprintf("%.0f", perSecond(m.iterations(), m.Time)))
	stats.Row("pixels/s", p.Sprintf("%.0f", perSecond(m.pixelsCompared(), m.Time)))

	top := newTable(true).Headers("rank", "x", "y", "value")
	for i, c := range best[:min(n, len(best))] {
		top.Row(fmt.Sprint(i+1), fmt.Sprint(c.X), fmt.Sprint(c.Y), p.Sprintf("%.5f", c.Value))
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Search space"))
	sb.WriteString("\n")
	sb.WriteString(stats.Render())
	sb.WriteString("\n")
	sb.WriteString(titleStyle.Render(fmt.Sprintf("Top %d (lower is better)", min(n, len(best)))))
	sb.WriteString("\n")
	sb.WriteString(top.Render())
	sb.WriteString("\n")
	return sb.String()
}

func newPrinter() *message.Printer {
	return message.NewPrinter(language.English)
}
