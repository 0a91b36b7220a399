package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/unklstewy/flightpath/internal/db"
)

// App is the stored-run browser
type App struct {
	repo  *db.RunRepository
	limit int

	// UI components
	tviewApp *tview.Application
	runs     *tview.Table
	details  *tview.TextView
	controls *tview.TextView
	logs     *tview.TextView
	root     *tview.Flex

	// State
	rows []db.Run
}

// NewApp creates the browser and its widgets without loading any data
func NewApp(repo *db.RunRepository, limit int) *App {
	a := &App{repo: repo, limit: limit}
	a.setupUI()
	return a
}

// setupUI initializes the user interface
func (a *App) setupUI() {
	a.tviewApp = tview.NewApplication()

	a.runs = tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false).
		SetFixed(1, 0)
	a.runs.SetBorder(true).SetTitle(" Runs ")
	a.runs.SetSelectionChangedFunc(func(row, column int) {
		a.showDetails(row)
	})

	a.details = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	a.details.SetBorder(true).SetTitle(" Comparisons ")

	a.controls = tview.NewTextView().
		SetDynamicColors(true).
		SetText(`[yellow]NAVIGATION[-]
  [white]↑/↓, j/k[-]  Select run

[yellow]ACTIONS[-]
  [white]r[-]         Refresh
  [white]d[-]         Delete run

[yellow]CONTROL[-]
  [white]q, Esc[-]    Quit`)
	a.controls.SetBorder(true).SetTitle(" Controls ")

	a.logs = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetMaxLines(100)
	a.logs.SetBorder(true).SetTitle(" Logs ")

	sidebar := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.details, 0, 6, false).
		AddItem(a.controls, 9, 0, false).
		AddItem(a.logs, 0, 2, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.runs, 0, 5, true).
		AddItem(sidebar, 0, 5, false)

	a.tviewApp.SetRoot(a.root, true)
	a.tviewApp.SetInputCapture(a.handleKeyboard)
}

// Run loads the run list and blocks until the user quits
func (a *App) Run() error {
	if err := a.Refresh(context.Background()); err != nil {
		a.addLog("ERROR", err.Error())
	}
	return a.tviewApp.Run()
}

// handleKeyboard processes application-wide keys; navigation is left to
// the table.
func (a *App) handleKeyboard(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyEscape:
		a.tviewApp.Stop()
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q':
			a.tviewApp.Stop()
			return nil
		case 'r':
			if err := a.Refresh(context.Background()); err != nil {
				a.addLog("ERROR", err.Error())
			}
			return nil
		case 'd':
			if err := a.DeleteSelected(context.Background()); err != nil {
				a.addLog("ERROR", err.Error())
			}
			return nil
		}
	}
	return event
}

// Refresh reloads the run list from the database
func (a *App) Refresh(ctx context.Context) error {
	runs, err := a.repo.ListRuns(ctx, a.limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	a.rows = runs

	a.runs.Clear()
	for col, h := range []string{"ID", "CREATED", "GROUND TRUTH", "METRIC", "CMP"} {
		a.runs.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false))
	}
	for i, r := range runs {
		row := i + 1
		a.runs.SetCell(row, 0, tview.NewTableCell(shortID(r.ID)))
		a.runs.SetCell(row, 1, tview.NewTableCell(r.CreatedAt.Local().Format("2006-01-02 15:04:05")))
		a.runs.SetCell(row, 2, tview.NewTableCell(r.GroundTruth))
		a.runs.SetCell(row, 3, tview.NewTableCell(r.Metric))
		a.runs.SetCell(row, 4, tview.NewTableCell(fmt.Sprintf("%d", r.ComparisonCount)).SetAlign(tview.AlignRight))
	}

	if len(runs) == 0 {
		a.details.SetText("[gray]No stored runs[-]")
	} else {
		a.runs.Select(1, 0)
		a.showDetails(1)
	}
	a.addLog("INFO", fmt.Sprintf("Loaded %d runs", len(runs)))
	return nil
}

// selected returns the run under the cursor
func (a *App) selected() (db.Run, bool) {
	row, _ := a.runs.GetSelection()
	if row < 1 || row > len(a.rows) {
		return db.Run{}, false
	}
	return a.rows[row-1], true
}

// DeleteSelected removes the run under the cursor and reloads the list
func (a *App) DeleteSelected(ctx context.Context) error {
	run, ok := a.selected()
	if !ok {
		return nil
	}
	if err := a.repo.DeleteRun(ctx, run.ID); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", shortID(run.ID), err)
	}
	a.addLog("INFO", fmt.Sprintf("Deleted run %s", shortID(run.ID)))
	return a.Refresh(ctx)
}

func (a *App) showDetails(row int) {
	if row < 1 || row > len(a.rows) {
		return
	}
	text, err := a.detailText(context.Background(), a.rows[row-1])
	if err != nil {
		a.addLog("ERROR", err.Error())
		return
	}
	a.details.SetText(text)
	a.details.ScrollToBeginning()
}

// detailText describes the sources and comparisons of one run
func (a *App) detailText(ctx context.Context, run db.Run) (string, error) {
	sources, err := a.repo.GetSources(ctx, run.ID)
	if err != nil {
		return "", err
	}
	comparisons, err := a.repo.GetComparisons(ctx, run.ID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[yellow]RUN:[-] [white]%s[-]\n", run.ID)
	fmt.Fprintf(&b, "[gray]Ground truth:[-] [white]%s[-]  [gray]Metric:[-] [white]%s[-]\n", run.GroundTruth, run.Metric)
	fmt.Fprintf(&b, "[gray]Duration:[-] [white]%s[-]\n\n", run.Duration.Round(time.Millisecond))

	b.WriteString("[yellow]SOURCES[-]\n")
	for _, s := range sources {
		if s.Error != "" {
			fmt.Fprintf(&b, "  [red]%s[-] %s\n", s.Name, tview.Escape(s.Error))
			continue
		}
		fmt.Fprintf(&b, "  [white]%s[-] %d samples", s.Name, s.Samples)
		if s.Malformed > 0 {
			fmt.Fprintf(&b, " [orange](%d malformed)[-]", s.Malformed)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n[yellow]COMPARISONS[-]\n")
	for _, c := range comparisons {
		if c.Error != "" {
			fmt.Fprintf(&b, "  [red]%s[-]\n", tview.Escape(c.Sentence()))
			continue
		}
		fmt.Fprintf(&b, "  %s\n", tview.Escape(c.Sentence()))
	}
	return b.String(), nil
}

// addLog adds a message to the logs panel
func (a *App) addLog(level, message string) {
	color := "white"
	switch level {
	case "ERROR":
		color = "red"
	case "WARN":
		color = "orange"
	}
	fmt.Fprintf(a.logs, "[gray]%s[-] [%s]%s[-] %s\n",
		time.Now().Format("15:04:05"), color, level, tview.Escape(message))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
