// Package transcript keeps an append-only log of a play session and
// exports it as plain text or PDF.
package transcript

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/nathoo/fablecore/types"
)

// Entry is one recorded exchange: what the player typed (empty for intro
// and tick output) and everything the engine said back.
type Entry struct {
	Input         string
	Output        []types.Message
	Notifications []types.Notification
}

// Transcript is safe for concurrent use.
type Transcript struct {
	mu      sync.Mutex
	game    string
	started time.Time
	entries []Entry
	ending  *types.FinalStats
}

// New starts an empty transcript for the named game.
func New(game string) *Transcript {
	return &Transcript{game: game, started: time.Now()}
}

// Record appends the output of one step or tick. Empty tick results add
// no entry.
func (t *Transcript) Record(input string, res types.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if input != "" || len(res.Output) > 0 || len(res.Notifications) > 0 {
		t.entries = append(t.entries, Entry{
			Input:         input,
			Output:        append([]types.Message(nil), res.Output...),
			Notifications: append([]types.Notification(nil), res.Notifications...),
		})
	}
	if res.Ending != nil {
		stats := *res.Ending
		t.ending = &stats
	}
}

// Append records loose messages such as the intro or host replies.
func (t *Transcript) Append(msgs ...types.Message) {
	t.Record("", types.Result{Output: msgs})
}

// Entries returns a copy of the log.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry(nil), t.entries...)
}

// Ending returns the final statistics once the game has ended.
func (t *Transcript) Ending() *types.FinalStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ending
}

// Reset clears the log, as after a restart.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
	t.ending = nil
	t.started = time.Now()
}

// Text renders the transcript as plain text.
func (t *Transcript) Text() string {
	var b strings.Builder
	for _, e := range t.Entries() {
		if e.Input != "" {
			fmt.Fprintf(&b, "> %s\n", e.Input)
		}
		for _, m := range e.Output {
			b.WriteString(m.Text)
			b.WriteByte('\n')
		}
		for _, n := range e.Notifications {
			fmt.Fprintf(&b, "* %s\n", n.Message)
		}
		b.WriteByte('\n')
	}
	if stats := t.Ending(); stats != nil {
		b.WriteString(strings.Join(StatsLines(*stats), "\n"))
		b.WriteByte('\n')
	}
	return b.String()
}

// StatsLines formats final statistics for display.
func StatsLines(s types.FinalStats) []string {
	score := fmt.Sprintf("Score: %d", s.Score)
	if s.MaxScore > 0 {
		score += fmt.Sprintf(" / %d", s.MaxScore)
	}
	lines := []string{
		fmt.Sprintf("*** %s ***", s.Title),
		score,
		fmt.Sprintf("Moves: %d", s.Moves),
		fmt.Sprintf("Time: %s", time.Duration(s.ElapsedMS)*time.Millisecond),
		fmt.Sprintf("Rooms visited: %d", s.RoomsVisited),
		fmt.Sprintf("Items found: %d", s.ItemsFound),
		fmt.Sprintf("Puzzles solved: %d", s.PuzzlesSolved),
		fmt.Sprintf("Characters met: %d", s.NPCsMet),
	}
	if len(s.Achievements) > 0 {
		lines = append(lines, "Achievements: "+strings.Join(s.Achievements, ", "))
	}
	return lines
}

// WritePDF renders the transcript, followed by the final statistics when
// the game has ended, as a PDF document.
func (t *Transcript) WritePDF(w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(t.game), false)
	pdf.SetCreator("fablecore", false)
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	t.mu.Lock()
	started := t.started
	t.mu.Unlock()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, tr(t.game), "", "L", false)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.MultiCell(0, 5, "Transcript started "+started.Format("2006-01-02 15:04"), "", "L", false)
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	for _, e := range t.Entries() {
		if e.Input != "" {
			pdf.SetFont("Courier", "B", 10)
			pdf.MultiCell(0, 5, tr("> "+e.Input), "", "L", false)
		}
		for _, m := range e.Output {
			switch m.Kind {
			case types.MsgError:
				pdf.SetFont("Helvetica", "I", 10)
				pdf.SetTextColor(160, 30, 30)
			case types.MsgSystem:
				pdf.SetFont("Helvetica", "B", 10)
			default:
				pdf.SetFont("Helvetica", "", 10)
			}
			pdf.MultiCell(0, 5, tr(m.Text), "", "L", false)
			pdf.SetTextColor(0, 0, 0)
		}
		for _, n := range e.Notifications {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.SetTextColor(30, 90, 160)
			pdf.MultiCell(0, 5, tr("* "+n.Message), "", "L", false)
			pdf.SetTextColor(0, 0, 0)
		}
		pdf.Ln(3)
	}

	if stats := t.Ending(); stats != nil {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 12)
		for i, line := range StatsLines(*stats) {
			if i == 1 {
				pdf.SetFont("Helvetica", "", 10)
			}
			pdf.MultiCell(0, 6, tr(line), "", "L", false)
		}
	}

	return pdf.Output(w)
}

// ExportPDF writes the PDF transcript to path.
func (t *Transcript) ExportPDF(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := t.WritePDF(f); err != nil {
		f.Close()
		return fmt.Errorf("writing PDF: %w", err)
	}
	return f.Close()
}
