package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"AssessmentPipeline/internal/domain"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(14)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginTop(1)

	statusStyles = map[domain.RunStatus]lipgloss.Style{
		domain.StatusComplete: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		domain.StatusPartial:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		domain.StatusFailed:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

var runJSON bool

var runCmd = &cobra.Command{
	Use:   "run <submission files...>",
	Short: "Run submissions (JSON or XLSX) through the pipeline",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSubmissions,
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print full run snapshots as JSON")
}

func runSubmissions(cmd *cobra.Command, args []string) error {
	application, _, err := newApplication()
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	runs, err := application.RunFiles(ctx, args...)
	out := cmd.OutOrStdout()
	for _, run := range runs {
		if runJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(run); encErr != nil {
				return encErr
			}
			continue
		}
		fmt.Fprintln(out, renderRun(run))
	}
	if err != nil {
		return err
	}

	failed := 0
	for _, run := range runs {
		if run.OverallStatus == domain.StatusFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(runs))
	}
	return nil
}

func renderRun(run *domain.PipelineRun) string {
	var b strings.Builder
	title := run.SubmissionID
	if run.Company != "" {
		title = run.Company + " (" + run.SubmissionID + ")"
	}
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}
	row("Run", run.RunID)
	row("Status", statusStyles[run.OverallStatus].Render(string(run.OverallStatus)))
	if run.Scores != nil {
		row("Overall", fmt.Sprintf("%d/100", run.Scores.Overall))
	}
	row("Tokens", fmt.Sprint(run.Metrics.TokensTotal))
	row("Duration", run.Metrics.Duration.Round(time.Millisecond).String())

	if run.Scores != nil && len(run.Scores.Chapters) > 0 {
		b.WriteString(sectionStyle.Render("Chapters"))
		b.WriteString("\n")
		codes := make([]string, 0, len(run.Scores.Chapters))
		for code := range run.Scores.Chapters {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			ch := run.Scores.Chapters[code]
			value := fmt.Sprintf("%3d", ch.Rounded())
			if len(ch.Excluded) > 0 {
				value += "  (no data: " + strings.Join(ch.Excluded, ", ") + ")"
			}
			row(code, value)
		}
	}

	b.WriteString(sectionStyle.Render("Phases"))
	b.WriteString("\n")
	for _, p := range run.Phases {
		value := fmt.Sprintf("%s  %d ok, %d failed, %d cached", statusStyles[p.Status].Render(string(p.Status)), p.Succeeded, p.Failed, p.CacheHits)
		if p.Attempts > 1 {
			value += fmt.Sprintf(", %d attempts", p.Attempts)
		}
		row(string(p.Name), value)
	}

	if failed := run.FailedTasks(); len(failed) > 0 {
		b.WriteString(sectionStyle.Render("Failed tasks"))
		b.WriteString("\n")
		for _, t := range failed {
			row(t.Topic, string(t.ErrorKind))
		}
	}

	if run.Summary != "" {
		b.WriteString(sectionStyle.Render("Summary"))
		b.WriteString("\n")
		b.WriteString(run.Summary)
		b.WriteString("\n")
	}
	return b.String()
}
