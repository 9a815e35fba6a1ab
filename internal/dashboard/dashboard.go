// Package dashboard renders a live terminal view of the collector's
// snapshot stream: a bounded scrolling history plus instantaneous derived
// metrics.
package dashboard

import (
	"context"
	"fmt"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/queryfire/queryfire/internal/stream"
)

// historySize bounds the scrolling snapshot history.
const historySize = 10

const reconnectDelay = 2 * time.Second

// Source is a subscriber connection to the snapshot stream.
type Source interface {
	Connect(ctx context.Context) error
	Next(ctx context.Context) (stream.SnapshotView, error)
	Close() error
}

// Dashboard is the live terminal UI.
type Dashboard struct {
	source Source
	cancel context.CancelFunc
	frames chan stream.SnapshotView

	grid          *ui.Grid
	summaryPara   *widgets.Paragraph
	ratesPara     *widgets.Paragraph
	progressGauge *widgets.Gauge
	throughput    *widgets.SparklineGroup
	workerList    *widgets.List
	statusPara    *widgets.Paragraph

	history    []stream.SnapshotView
	rpsHistory []float64
}

// New initializes the terminal UI. Call Run afterwards and Close when done.
func New(source Source) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	d := &Dashboard{
		source: source,
		frames: make(chan stream.SnapshotView, 8),
	}
	d.initWidgets()
	d.setupGrid()
	return d, nil
}

func (d *Dashboard) initWidgets() {
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run"
	d.summaryPara.Text = "Waiting for snapshots..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.ratesPara = widgets.NewParagraph()
	d.ratesPara.Title = "Derived Metrics"
	d.ratesPara.Text = "Throughput: -\nError Rate: -\nCache Hit Rate: -"
	d.ratesPara.BorderStyle.Fg = ui.ColorCyan

	d.progressGauge = widgets.NewGauge()
	d.progressGauge.Title = "Completed"
	d.progressGauge.Percent = 0
	d.progressGauge.BarColor = ui.ColorBlue
	d.progressGauge.BorderStyle.Fg = ui.ColorCyan

	spark := widgets.NewSparkline()
	spark.Title = "req/s"
	spark.LineColor = ui.ColorGreen
	spark.Data = []float64{0}
	d.throughput = widgets.NewSparklineGroup(spark)
	d.throughput.Title = "Throughput (last 10 snapshots)"
	d.throughput.BorderStyle.Fg = ui.ColorCyan

	d.workerList = widgets.NewList()
	d.workerList.Title = "Workers"
	d.workerList.Rows = []string{"Awaiting data"}
	d.workerList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.workerList.BorderStyle.Fg = ui.ColorCyan

	d.statusPara = widgets.NewParagraph()
	d.statusPara.Title = "Stream"
	d.statusPara.Text = "Connecting..."
	d.statusPara.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)
	d.grid.Set(
		ui.NewRow(0.2,
			ui.NewCol(0.6, d.summaryPara),
			ui.NewCol(0.4, d.statusPara),
		),
		ui.NewRow(0.15,
			ui.NewCol(1.0, d.progressGauge),
		),
		ui.NewRow(0.3,
			ui.NewCol(0.6, d.throughput),
			ui.NewCol(0.4, d.ratesPara),
		),
		ui.NewRow(0.35,
			ui.NewCol(1.0, d.workerList),
		),
	)
}

// Run subscribes to the stream and drives the UI until ctx is cancelled or
// the user quits. Dropped connections are re-established automatically.
func (d *Dashboard) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	defer cancel()

	go d.consume(ctx)

	uiEvents := ui.PollEvents()
	ui.Render(d.grid)

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-uiEvents:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				ui.Render(d.grid)
			}
		case view := <-d.frames:
			d.update(view)
			ui.Render(d.grid)
		}
	}
}

// Close restores the terminal.
func (d *Dashboard) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	ui.Close()
}

// consume pumps snapshot frames from the source, reconnecting on drop.
func (d *Dashboard) consume(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := d.source.Connect(ctx); err != nil {
			d.setStatus(fmt.Sprintf("Disconnected: %v\nRetrying in %s", err, reconnectDelay))
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}
		d.setStatus("Connected")

		for {
			view, err := d.source.Next(ctx)
			if err != nil {
				_ = d.source.Close()
				if ctx.Err() != nil {
					return
				}
				d.setStatus(fmt.Sprintf("Stream lost: %v\nReconnecting", err))
				break
			}
			select {
			case d.frames <- view:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (d *Dashboard) setStatus(text string) {
	d.statusPara.Text = text
}

func (d *Dashboard) update(view stream.SnapshotView) {
	d.history = append(d.history, view)
	if len(d.history) > historySize {
		d.history = d.history[1:]
	}
	d.rpsHistory = append(d.rpsHistory, view.Throughput())
	if len(d.rpsHistory) > historySize {
		d.rpsHistory = d.rpsHistory[1:]
	}

	d.summaryPara.Text = fmt.Sprintf(
		"Run: %s\nCompleted: %d / %d\nErrors: %d\nBytes: %d",
		view.RunID, view.Completed, view.Total, view.Errors, view.BytesProcessed,
	)

	if view.Total > 0 {
		d.progressGauge.Percent = int(view.Completed * 100 / view.Total)
		d.progressGauge.Label = fmt.Sprintf("%d / %d", view.Completed, view.Total)
	}

	d.throughput.Sparklines[0].Data = append([]float64(nil), d.rpsHistory...)
	d.throughput.Title = fmt.Sprintf("Throughput | %.1f req/s", view.Throughput())

	d.ratesPara.Text = fmt.Sprintf(
		"Throughput: %.1f req/s\nError Rate: %.2f%%\nCache Hit Rate: %.2f%%",
		view.Throughput(), view.ErrorRate()*100, view.CacheHitRate()*100,
	)

	rows := make([]string, 0, len(view.WorkerProgress))
	for id, done := range view.WorkerProgress {
		rows = append(rows, fmt.Sprintf("worker %3d: %d", id, done))
	}
	if len(rows) == 0 {
		rows = []string{"Awaiting data"}
	}
	d.workerList.Rows = rows

	stats := statsLine(d.history)
	d.statusPara.Text = "Connected\n" + stats
}

func statsLine(history []stream.SnapshotView) string {
	if len(history) == 0 {
		return ""
	}
	newest := history[len(history)-1]
	return fmt.Sprintf("Snapshots: %d retained\nLast: %s",
		len(history), newest.Timestamp.Format(time.TimeOnly))
}
