package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MUZAKI1453/CBT-Sekolah/internal/bank"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/exam"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/extract"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/handler"
	appI18n "github.com/MUZAKI1453/CBT-Sekolah/internal/i18n"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/metrics"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/model"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/regrade"
	"github.com/MUZAKI1453/CBT-Sekolah/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cbt",
		Short: "Computer-based testing engine for schools",
	}

	serve := serveCmd()
	root.AddCommand(serve, extractCmd(), regradeCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `cbt --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	addDBFlags(cmd)
	f.StringP("lang", "l", "en", "Default message language (en, id)")
	f.Int("regrade-workers", regrade.DefaultWorkers, "Parallel submission updates during a regrade")
	f.StringSlice("cors-origins", nil, "Front-end origins allowed to call the API (repeatable)")
	f.Bool("metrics", true, "Serve Prometheus metrics on /metrics")
	f.Int64("max-upload", handler.DefaultMaxUpload, "Maximum request body size in bytes")
	addLogFlags(cmd)
	return cmd
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract FILE",
		Short: "Extract a question bank from a plain-text document",
		Args:  cobra.ExactArgs(1),
		RunE:  runExtract,
	}
	cmd.Flags().StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func regradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regrade",
		Short: "Replace an exam's bank and regrade every submission",
		RunE:  runRegrade,
	}
	f := cmd.Flags()
	f.Int64("exam-id", 0, "Exam to regrade (required)")
	f.String("bank", "", "Path to the corrected bank JSON (required)")
	f.Int("regrade-workers", regrade.DefaultWorkers, "Parallel submission updates")
	addDBFlags(cmd)
	addLogFlags(cmd)

	_ = cmd.MarkFlagRequired("exam-id")
	_ = cmd.MarkFlagRequired("bank")

	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export exam results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.Int64("exam-id", 0, "Exam to export (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addDBFlags(cmd)
	addLogFlags(cmd)

	_ = cmd.MarkFlagRequired("exam-id")

	return cmd
}

func addDBFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db-driver", string(store.DriverSQLite), "Database driver (sqlite, postgres)")
	f.String("db", "", "SQLite path or PostgreSQL DSN (default cbt.db for sqlite)")
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("CBT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("cbt")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/cbt")
	v.AddConfigPath("/etc/cbt")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(ctx context.Context, v *viper.Viper) (*store.Store, error) {
	driver, err := store.ParseDriver(v.GetString("db-driver"))
	if err != nil {
		return nil, err
	}
	db, err := store.Open(ctx, driver, v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	var (
		m        *metrics.Metrics
		gatherer prometheus.Gatherer
	)
	if v.GetBool("metrics") {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(reg)
		gatherer = reg
	}

	svc := exam.New(db,
		exam.WithMetrics(m),
		exam.WithRegradeWorkers(v.GetInt("regrade-workers")),
	)
	h := handler.New(svc, db, m, gatherer, handler.Config{
		CORSOrigins: v.GetStringSlice("cors-origins"),
		MaxUpload:   v.GetInt64("max-upload"),
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware())
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"db_driver", db.Driver(),
			"lang", lang,
			"regrade_workers", v.GetInt("regrade-workers"),
			"metrics", m != nil,
		)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// extractOutput is what the extract command prints.
type extractOutput struct {
	Bank     model.Bank          `json:"bank"`
	Warnings []extract.Warning   `json:"warnings"`
	Problems []model.BankProblem `json:"problems,omitempty"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	lines, err := extract.Lines(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	res, err := extract.New().Extract(lines)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	out := extractOutput{Bank: res.Bank, Warnings: res.Warnings}
	if out.Warnings == nil {
		out.Warnings = []extract.Warning{}
	}
	var bankErr *model.BankError
	if err := bank.Validate(res.Bank); errors.As(err, &bankErr) {
		out.Problems = bankErr.Problems
		slog.Warn("extracted bank is not valid", "problems", len(bankErr.Problems))
	}
	slog.Info("extracted questions", "path", args[0], "mc", len(res.Bank.MC), "or", len(res.Bank.OR), "warnings", len(res.Warnings))

	return writeOutput(v.GetString("output"), out)
}

func runRegrade(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	data, err := os.ReadFile(v.GetString("bank"))
	if err != nil {
		return fmt.Errorf("read bank: %w", err)
	}
	var b model.Bank
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("parse bank: %w", err)
	}

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := exam.New(db, exam.WithRegradeWorkers(v.GetInt("regrade-workers")))
	report, _, err := svc.RegradeBank(ctx, v.GetInt64("exam-id"), b)
	if err != nil && !errors.Is(err, model.ErrRegradePartialFailure) {
		return err
	}
	if werr := writeOutput("-", report); werr != nil {
		return werr
	}
	return err
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(cmd.Context(), v)
	if err != nil {
		return err
	}
	defer db.Close()

	export, err := db.ExportExam(cmd.Context(), v.GetInt64("exam-id"))
	if err != nil {
		return fmt.Errorf("export exam: %w", err)
	}
	return writeOutput(v.GetString("output"), export)
}

// writeOutput writes v as indented JSON to path, or stdout for "" and "-".
func writeOutput(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if path == "" || path == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}
