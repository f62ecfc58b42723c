package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pavelanni/examprep/internal/bank"
	appI18n "github.com/pavelanni/examprep/internal/i18n"
	"github.com/pavelanni/examprep/internal/llm"
	"github.com/pavelanni/examprep/internal/report"
	"github.com/pavelanni/examprep/internal/store"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import question banks (JSON or YAML)",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	commonFlags(cmd)
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the PDF report of an attempt",
		RunE:  runReport,
	}
	commonFlags(cmd)
	fontFlags(cmd)
	f := cmd.Flags()
	f.Int64("attempt-id", 0, "Attempt to render (required)")
	f.StringP("output", "o", "", "Output file path (default: report-<exam>-<date>.pdf)")
	_ = cmd.MarkFlagRequired("attempt-id")
	return cmd
}

func explainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Generate explanations for questions that have none",
		RunE:  runExplain,
	}
	commonFlags(cmd)
	f := cmd.Flags()
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.StringP("lang", "l", "ar", "Language of the explanations")
	f.Int("limit", 0, "Maximum number of questions to explain (0 = all)")
	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	results, err := bank.ImportFiles(cmd.Context(), db, args)
	if err != nil {
		return err
	}
	for _, r := range results {
		status := "imported"
		if r.Skipped {
			status = "skipped"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\texam=%d\tquestions=%d\n", status, r.Path, r.ExamID, r.Questions)
	}
	return nil
}

func runReport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := appI18n.Init("ar"); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	engine, err := report.New(ctx, reportConfig(v))
	if err != nil {
		return fmt.Errorf("init reports: %w", err)
	}

	rep, err := db.GetAttemptReport(ctx, v.GetInt64("attempt-id"))
	if err != nil {
		return fmt.Errorf("load attempt: %w", err)
	}
	pdf, err := engine.Render(ctx, report.Input{
		Attempt:   rep.Attempt,
		Questions: rep.Questions,
		Candidate: &rep.Candidate,
	})
	if err != nil {
		return err
	}

	out := v.GetString("output")
	if out == "" {
		out = report.Filename(rep.Attempt)
	}
	if err := os.WriteFile(out, pdf, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	slog.Info("report written", "path", out, "bytes", len(pdf), "arabic_font", engine.HasArabicFont())
	return nil
}

func runExplain(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	client := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"))
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))

	n, err := llm.Backfill(ctx, db, client, v.GetString("lang"), v.GetInt("limit"))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d explanations\n", n)
	return nil
}
