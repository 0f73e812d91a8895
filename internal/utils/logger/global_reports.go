package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StringListReport is a titled list of lines appended to a report file.
type StringListReport struct {
	Title string
	Items []string
}

// SyncReport collects what a synchronization run did, one list per outcome.
type SyncReport struct {
	RunID     string
	Fetched   StringListReport
	Installed StringListReport
	Failed    StringListReport
}

// NewSyncReport returns an empty report for the given run.
func NewSyncReport(runID string) *SyncReport {
	return &SyncReport{
		RunID:     runID,
		Fetched:   StringListReport{Title: "Fetched", Items: []string{}},
		Installed: StringListReport{Title: "Installed", Items: []string{}},
		Failed:    StringListReport{Title: "Failed", Items: []string{}},
	}
}

// WriteSyncReport appends every list of report to its own file under reportDir.
func WriteSyncReport(reportDir string, report *SyncReport) error {
	for _, list := range []StringListReport{report.Fetched, report.Installed, report.Failed} {
		if err := WriteListToFile(reportDir, report.RunID, list); err != nil {
			return err
		}
	}
	return nil
}

// WriteListToFile appends list to a text file named after its title, e.g.
// sync-Installed.txt, preceded by a header line naming the run.
func WriteListToFile(reportDir, runID string, list StringListReport) error {
	if err := os.MkdirAll(reportDir, 0755); err != nil {
		return fmt.Errorf("creating base path: %w", err)
	}

	reportFullPath := filepath.Join(reportDir, fmt.Sprintf("sync-%s.txt", SafeTitle(list.Title)))

	f, err := os.OpenFile(reportFullPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "# run %s %s\n", runID, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("writing to file: %w", err)
	}
	for _, item := range list.Items {
		if _, err := fmt.Fprintln(f, item); err != nil {
			return fmt.Errorf("writing to file: %w", err)
		}
	}
	if _, err := fmt.Fprintln(f); err != nil {
		return fmt.Errorf("writing new line to file: %w", err)
	}
	return nil
}

// SafeTitle replaces everything but ASCII letters and digits with underscores.
func SafeTitle(title string) string {
	if title == "" {
		title = "untitled"
	}
	safeTitle := ""
	for _, r := range title {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			safeTitle += string(r)
		} else {
			safeTitle += "_"
		}
	}
	return safeTitle
}
