package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"snapline/internal/app"
	"snapline/internal/calendar"
	"snapline/internal/config"
	"snapline/internal/domain"
	"snapline/internal/engine"
	"snapline/internal/llm"
	"snapline/internal/reminder"
	"snapline/internal/schedule"
	"snapline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "snap",
	Short: "Snapline CLI",
	Long: `Snapline plans the social content campaign around a music release.
Core concepts:
- World: one release (single, EP, album) with a release date.
- Snapshot: one planned post. Snapshots are spread from two weeks before release to eight weeks after, skipping weekends and Mondays.
- Shoot day: snapshots are filmed a week before they post; snapshots filmed on the same date share a shoot day.
- Blackout dates: days nobody can film. Shoot days on a blackout get a suggested weekday instead.
- Plan files: YAML or JSON with world_id, world_name, release_date, snapshots, shoot_days and blackout_dates. Every command that prints a plan with --json writes this shape.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		info, err := os.Stat(workspace)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("workspace %s is not a directory", workspace)
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SNAPLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (defaults to <workspace>/snapline.yml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(shootDaysCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(blackoutsCmd())
	rootCmd.AddCommand(remindCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
}

// planFile is the on-disk shape shared by every plan-reading command.
type planFile struct {
	WorldID       string            `json:"world_id"`
	WorldName     string            `json:"world_name,omitempty"`
	ReleaseDate   string            `json:"release_date"`
	Snapshots     []domain.Snapshot `json:"snapshots"`
	ShootDays     []domain.ShootDay `json:"shoot_days,omitempty"`
	BlackoutDates []string          `json:"blackout_dates,omitempty"`
}

func planCmd() *cobra.Command {
	var file string
	var blackouts []string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Schedule snapshots and group shoot days for a world",
		RunE: func(cmd *cobra.Command, args []string) error {
			pf, err := readPlanFile(file)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				plan, err := e.Schedule(ctx, engine.PlanRequest{
					WorldID:       pf.WorldID,
					ReleaseDate:   pf.ReleaseDate,
					Snapshots:     pf.Snapshots,
					BlackoutDates: append(pf.BlackoutDates, blackouts...),
				})
				if err != nil {
					return err
				}
				out := planFile{
					WorldID:       plan.WorldID,
					WorldName:     pf.WorldName,
					ReleaseDate:   plan.ReleaseDate,
					Snapshots:     plan.Snapshots,
					ShootDays:     plan.ShootDays,
					BlackoutDates: pf.BlackoutDates,
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				printTimeline(out.Snapshots)
				printShootDays(out.ShootDays)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "plan file (YAML or JSON)")
	cmd.Flags().StringSliceVar(&blackouts, "blackout", nil, "extra blackout date (YYYY-MM-DD), repeatable")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func generateCmd() *cobra.Command {
	var (
		brief     llm.SnapshotBrief
		blackouts []string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a snapshot strategy with the LLM and schedule it",
		Long:  "Requires SNAPLINE_ANTHROPIC_API_KEY or ANTHROPIC_API_KEY. Generation is rate limited by the generation section of snapline.yml.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.GenerateStrategy(ctx, brief, blackouts)
				if err != nil {
					return err
				}
				out := planFile{
					WorldID:       res.Strategy.WorldID,
					WorldName:     brief.WorldName,
					ReleaseDate:   brief.ReleaseDate,
					Snapshots:     res.Strategy.Snapshots,
					ShootDays:     res.ShootDays,
					BlackoutDates: blackouts,
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				printTimeline(out.Snapshots)
				printShootDays(out.ShootDays)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&brief.WorldID, "world-id", "", "world id (generated when empty)")
	cmd.Flags().StringVar(&brief.WorldName, "world-name", "", "world name")
	cmd.Flags().StringVar(&brief.ReleaseDate, "release-date", "", "release date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&brief.Color, "color", "", "primary color")
	cmd.Flags().StringSliceVar(&brief.VisualReferences, "reference", nil, "visual reference, repeatable")
	cmd.Flags().StringSliceVar(&brief.ColorPalette, "palette", nil, "palette color, repeatable")
	cmd.Flags().StringSliceVar(&blackouts, "blackout", nil, "blackout date (YYYY-MM-DD), repeatable")
	_ = cmd.MarkFlagRequired("world-name")
	_ = cmd.MarkFlagRequired("release-date")
	return cmd
}

func shootDaysCmd() *cobra.Command {
	sd := &cobra.Command{Use: "shootdays", Short: "Group, reschedule and confirm shoot days"}
	sd.AddCommand(shootDaysGroupCmd())
	sd.AddCommand(shootDaysRescheduleCmd())
	sd.AddCommand(shootDaysConfirmCmd())
	return sd
}

func shootDaysGroupCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Group a plan's snapshots into shoot days",
		RunE: func(cmd *cobra.Command, args []string) error {
			pf, err := readPlanFile(file)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				days, err := e.GroupShootDays(ctx, pf.WorldID, pf.Snapshots)
				if err != nil {
					return err
				}
				return printShootDaysOrJSON(days)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "plan file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func shootDaysRescheduleCmd() *cobra.Command {
	var file string
	var blackouts []string
	cmd := &cobra.Command{
		Use:   "reschedule",
		Short: "Suggest new dates for shoot days that hit a blackout",
		RunE: func(cmd *cobra.Command, args []string) error {
			pf, err := readPlanFile(file)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				days, err := e.Reschedule(ctx, pf.ShootDays, append(pf.BlackoutDates, blackouts...))
				if err != nil {
					return err
				}
				return printShootDaysOrJSON(days)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "plan file")
	cmd.Flags().StringSliceVar(&blackouts, "blackout", nil, "extra blackout date (YYYY-MM-DD), repeatable")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func shootDaysConfirmCmd() *cobra.Command {
	var (
		file, id     string
		useSuggested bool
	)
	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Confirm a shoot day on its original or suggested date",
		RunE: func(cmd *cobra.Command, args []string) error {
			pf, err := readPlanFile(file)
			if err != nil {
				return err
			}
			idx := -1
			for i, d := range pf.ShootDays {
				if d.ID == id {
					idx = i
					break
				}
			}
			if idx < 0 {
				return fmt.Errorf("shoot day %q not found in %s", id, file)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				day, err := e.ConfirmShootDay(pf.ShootDays[idx], useSuggested)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(day)
				}
				printShootDays([]domain.ShootDay{day})
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "plan file")
	cmd.Flags().StringVar(&id, "id", "", "shoot day id")
	cmd.Flags().BoolVar(&useSuggested, "use-suggested", false, "confirm on the suggested date")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func exportCmd() *cobra.Command {
	var file, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a plan as an iCalendar file",
		RunE: func(cmd *cobra.Command, args []string) error {
			pf, err := readPlanFile(file)
			if err != nil {
				return err
			}
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			loc, err := cfg.Schedule.Location()
			if err != nil {
				return err
			}
			b := calendar.NewBuilder(pf.WorldID, worldName(pf), cfg.Schedule)
			doc, err := calendar.Export(b.Events(pf.Snapshots, pf.ShootDays, pf.ReleaseDate), loc, time.Now())
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = io.WriteString(os.Stdout, doc)
				return err
			}
			if err := os.WriteFile(out, []byte(doc), 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "plan file")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output .ics path (stdout when empty)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func blackoutsCmd() *cobra.Command {
	bl := &cobra.Command{Use: "blackouts", Short: "Inspect blackout dates"}
	bl.AddCommand(blackoutsListCmd())
	bl.AddCommand(blackoutsImportCmd())
	return bl
}

func blackoutsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured blackout dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				set, err := e.Blackouts(nil)
				if err != nil {
					return err
				}
				return printDates(set.Sorted())
			})
		},
	}
}

func blackoutsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.ics>",
		Short: "Read busy days from an iCalendar file",
		Long:  "Prints every day covered by an event in the file. Paste the result into schedule.blackout_dates or pass the dates with --blackout.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			dates, err := calendar.BlackoutsFromICS(f)
			if err != nil {
				return err
			}
			return printDates(dates)
		},
	}
}

func remindCmd() *cobra.Command {
	var (
		file, today string
		notify      bool
	)
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "List reminders due today, optionally sending them to webhooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			pf, err := readPlanFile(file)
			if err != nil {
				return err
			}
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			day := schedule.MustParseDate(time.Now().Format("2006-01-02"))
			if today != "" {
				if day, err = schedule.ParseDate(today); err != nil {
					return err
				}
			}
			b := calendar.NewBuilder(pf.WorldID, worldName(pf), cfg.Schedule)
			due := reminder.Due(b.Events(pf.Snapshots, pf.ShootDays, pf.ReleaseDate), cfg.Reminders.Settings(), day)
			var report *reminder.Report
			if notify && len(due) > 0 {
				r, err := reminder.NewNotifier(cfg.Webhooks, newLogger(os.Stderr)).Notify(cmd.Context(), due)
				report = &r
				if err != nil && r.Delivered == 0 {
					return err
				}
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"reminders": due, "notified": report})
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Event Date", "Type", "Title", "Days Before", "Time"})
			for _, r := range due {
				tw.AppendRow(table.Row{r.EventDate, r.EventType, r.Title, r.DaysBefore, r.Time})
			}
			tw.Render()
			if report != nil {
				fmt.Printf("delivered %d, skipped %d, failed %d\n", report.Delivered, report.Skipped, report.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "plan file")
	cmd.Flags().StringVar(&today, "today", "", "date to check (YYYY-MM-DD, defaults to today)")
	cmd.Flags().BoolVar(&notify, "notify", false, "deliver reminders to configured webhooks")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath, logFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("base-path") {
				basePath = cfg.Server.BasePath
			}
			var sink io.Writer = os.Stderr
			if logFile != "" {
				lj := &lumberjack.Logger{
					Filename:   logFile,
					MaxSize:    50,
					MaxBackups: 3,
					MaxAge:     28,
				}
				defer lj.Close()
				sink = lj
			}
			logger := newLogger(sink)
			e := app.NewEngine(cfg, logger)
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Notifier: reminder.NewNotifier(cfg.Webhooks, logger),
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Snapline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if e.Generator == nil {
				fmt.Println("snapshot generation disabled: set SNAPLINE_ANTHROPIC_API_KEY to enable it")
			}
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write JSON logs to a rotated file instead of stderr")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect snapline.yml",
		Long:  "snapline.yml holds blackout dates, the schedule timezone, per-platform posting times, reminder settings, webhooks and LLM limits. The API key is never read from the file.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			return yaml.NewEncoder(os.Stdout).Encode(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate config",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := resolveConfig()
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": errString(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default snapline.yml to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// --- helpers ---

func resolveConfig() (*config.Config, error) {
	return app.ResolveConfig(viper.GetString("workspace"), viper.GetString("config"))
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	return fn(ctx, app.NewEngine(cfg, newLogger(os.Stderr)))
}

func newLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		level = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: level}
	if w == os.Stderr {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// readPlanFile accepts YAML or JSON. YAML is converted through JSON so both
// formats share the snake_case field names.
func readPlanFile(path string) (planFile, error) {
	var pf planFile
	data, err := os.ReadFile(path)
	if err != nil {
		return pf, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &pf); err != nil {
			return pf, fmt.Errorf("parse %s: %w", path, err)
		}
		return pf, nil
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return pf, fmt.Errorf("parse %s: %w", path, err)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return pf, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &pf); err != nil {
		return pf, fmt.Errorf("parse %s: %w", path, err)
	}
	return pf, nil
}

func worldName(pf planFile) string {
	if pf.WorldName != "" {
		return pf.WorldName
	}
	return pf.WorldID
}

func printTimeline(snapshots []domain.Snapshot) {
	for _, week := range schedule.GroupByWeek(snapshots) {
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.SetTitle(week.Label)
		tw.AppendHeader(table.Row{"Order", "ID", "Platform", "Type", "Posting Date", "Filming Date"})
		for _, s := range week.Snapshots {
			tw.AppendRow(table.Row{s.Order, s.ID, s.Platform, s.ContentType, s.PostingDate, s.SuggestedFilmingDate})
		}
		tw.Render()
	}
}

func printShootDays(days []domain.ShootDay) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle("Shoot Days")
	tw.AppendHeader(table.Row{"ID", "Date", "Suggested", "Status", "Snapshots"})
	for _, d := range days {
		tw.AppendRow(table.Row{d.ID, d.Date, d.SuggestedDate, d.Status, strings.Join(d.SnapshotIDs, ", ")})
	}
	tw.Render()
}

func printShootDaysOrJSON(days []domain.ShootDay) error {
	if viper.GetBool("json") {
		return printJSON(map[string]any{"shoot_days": days})
	}
	printShootDays(days)
	return nil
}

func printDates(dates []string) error {
	if viper.GetBool("json") {
		return printJSON(dates)
	}
	for _, d := range dates {
		fmt.Println(d)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
