package ui

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"turbodelete/internal/cleanup"
	"turbodelete/internal/engine"
)

// Console reports targets on a terminal. It implements cleanup.Reporter.
type Console struct {
	out    io.Writer
	errOut io.Writer
	so, se styles

	bar     bool
	program *tea.Program
	exited  chan struct{}
}

// NewConsole writes status lines to out and errors to errOut. The progress
// bar is drawn only when showProgress is set and out is a terminal.
func NewConsole(out, errOut io.Writer, showProgress bool) *Console {
	return &Console{
		out:    out,
		errOut: errOut,
		so:     newStyles(out),
		se:     newStyles(errOut),
		bar:    showProgress && IsTerminal(out),
	}
}

// IsTerminal reports whether w is a terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Start prints the target line and, on a terminal, starts the progress bar
func (c *Console) Start(path string) *engine.Progress {
	fmt.Fprintf(c.out, "Deleting: %s\n", c.so.path.Render(path))

	counter := engine.NewProgress(nil)
	if !c.bar {
		return counter
	}

	c.program = tea.NewProgram(newProgressModel(counter),
		tea.WithOutput(c.out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	c.exited = make(chan struct{})
	go func(p *tea.Program, exited chan struct{}) {
		defer close(exited)
		// A failing renderer only costs the bar
		_, _ = p.Run()
	}(c.program, c.exited)
	return counter
}

// Finish stops the progress bar and prints errors for failed targets
func (c *Console) Finish(res cleanup.Result) {
	if c.program != nil {
		c.program.Send(finishMsg{})
		<-c.exited
		c.program = nil
	}

	out := res.Outcome
	switch {
	case res.Refused:
		fmt.Fprintf(c.errOut, "%s %s %s (%v)\n",
			c.se.errorBadge(), c.se.warn.Render("Refusing to delete:"), res.Arg, out.Err)
	case out.Status == engine.StatusNotFound:
		fmt.Fprintf(c.errOut, "%s %s %s\n",
			c.se.errorBadge(), c.se.warn.Render("Path does not exist:"), res.Arg)
	case out.Status == engine.StatusPartialFailure:
		fmt.Fprintf(c.errOut, "%s %v %s\n", c.se.errorBadge(), out.Err, res.Arg)
	case out.DryRun:
		fmt.Fprintf(c.out, "  %s %d entries, %s\n",
			c.so.dim.Render("would remove"), out.Entries+1, humanize.IBytes(uint64(res.EstimatedBytes)))
	case res.BytesReclaimed > 0:
		fmt.Fprintf(c.out, "  %s %s\n", c.so.dim.Render("freed"), humanize.IBytes(uint64(res.BytesReclaimed)))
	}
}

// Summary prints the final line of a run
func (c *Console) Summary(sum cleanup.Summary) {
	secs := c.so.warn.Render(FormatDuration(sum.Elapsed))
	if sum.Successes > 0 && sum.Errors == 0 {
		fmt.Fprintf(c.out, "Deletion completed successfully for %s items in %s seconds\n",
			c.so.good.Render(strconv.Itoa(sum.Successes)), secs)
	} else {
		fmt.Fprintf(c.out, "Deletion completed with %s successes and %s errors in %s seconds\n",
			c.so.good.Render(strconv.Itoa(sum.Successes)),
			c.so.bad.Render(strconv.Itoa(sum.Errors)),
			secs)
	}
	if sum.Interrupted {
		fmt.Fprintf(c.errOut, "%s %s\n",
			c.se.warn.Render("Interrupted:"),
			fmt.Sprintf("%d target(s) not started", sum.Skipped))
	}
}

// NoPathsMessage is the Usage headline when the command line names no target
const NoPathsMessage = "Please provide at least one path."

// Usage prints the colored help after an ERROR badge carrying headline
func Usage(w io.Writer, headline, name, flags string) {
	s := newStyles(w)
	fmt.Fprintf(w, "%s %s\n\n", s.errorBadge(), s.warn.Render(headline))
	fmt.Fprintf(w, "Usage: %s [options] PATH...\n\n", name)
	fmt.Fprintf(w, "%s:\n", s.heading.Render("Examples"))
	for _, ex := range [][2]string{
		{"", "./node_modules/"},
		{"", "./file1.txt ./file2.txt"},
		{"", `"path with spaces" another_path`},
		{"--dry-run ", "./target"},
		{"-w 16 ", "/mnt/scratch/build"},
	} {
		fmt.Fprintf(w, "  %s %s%s\n", s.command.Render(name), ex[0], s.dim.Render(ex[1]))
	}
	if flags != "" {
		fmt.Fprintf(w, "\nOptions:\n%s", flags)
	}
}

// FormatDuration renders an elapsed time the way the summary line does
func FormatDuration(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
