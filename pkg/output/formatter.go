package output

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
)

// Warn prints a diagnostic warning to stderr.
func Warn(format string, args ...interface{}) {
	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Fprint(os.Stderr, "warning")
	fmt.Fprintf(os.Stderr, ": "+format+"\n", args...)
}

// Error prints a diagnostic error to stderr.
func Error(format string, args ...interface{}) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprint(os.Stderr, "error")
	fmt.Fprintf(os.Stderr, ": "+format+"\n", args...)
}

// Summary describes one finished configure run.
type Summary struct {
	Profile     string
	OutDir      string
	Targets     int
	TestTargets int
	Elapsed     time.Duration
	Regenerated bool
}

// PrintSummary prints a short configure report with colors.
func PrintSummary(s Summary) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	if !s.Regenerated {
		green.Printf("Up to date")
		fmt.Printf(" [%s] %s\n", s.Profile, s.OutDir)
		return
	}

	bold.Printf("Configured")
	fmt.Printf(" [%s] ", s.Profile)
	cyan.Printf("%d targets", s.Targets)
	if s.TestTargets > 0 {
		fmt.Printf(", ")
		cyan.Printf("%d test binaries", s.TestTargets)
	}
	fmt.Printf(" in %s (%s)\n", s.Elapsed.Round(time.Millisecond), s.OutDir)
}
