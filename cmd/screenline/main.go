package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"screenline/internal/config"
	"screenline/internal/db"
	"screenline/internal/domain"
	"screenline/internal/logger"
	"screenline/internal/migrate"
	"screenline/internal/report"
	"screenline/internal/scoring"
	"screenline/internal/server"
	"screenline/internal/sinks"
	"screenline/internal/store"
	"screenline/internal/submit"
	"screenline/internal/wizard"
)

// localScope is the draft scope the CLI session commands operate on. The
// HTTP server scopes drafts per session id instead.
const localScope = "local"

var rootCmd = &cobra.Command{
	Use:   "screenline",
	Short: "Screenline CLI",
	Long: `Screenline runs STOP-BANG sleep apnea screenings: a step-gated wizard
collects contact details, body metrics and the questionnaire, a deterministic
engine scores the result, and submissions fan out to every configured sink
(spreadsheet webhook, email service, record store). Drafts persist locally so
an interrupted screening resumes where it left off; submissions that fail on
every sink are archived for manual recovery (see 'screenline failed').`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SCREENLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(scoreCmd())
	rootCmd.AddCommand(failedCmd())
	rootCmd.AddCommand(configCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if cfg == nil {
				cfg = config.Default()
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			defer log.Sync()

			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			repo := store.DraftRepo{DB: conn}
			registry := server.NewRegistry(func(id string) store.Store {
				return repo.ForScope(id)
			})
			orc := &submit.Orchestrator{
				Sinks:     buildSinks(cfg),
				Logger:    log,
				SourceTag: cfg.Submission.SourceTag,
			}
			handler, err := server.New(server.Config{
				Registry:     registry,
				Orchestrator: orc,
				Logger:       log,
				BasePath:     basePath,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			log.Info("serving screening API",
				zap.String("addr", addr),
				zap.Int("sinks", len(orc.Sinks)))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, then :8080)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func buildSinks(cfg *config.Config) []sinks.Sink {
	var out []sinks.Sink
	if cfg.Sinks.Sheets.URL != "" {
		out = append(out, &sinks.SheetsSink{URL: cfg.Sinks.Sheets.URL})
	}
	if cfg.Sinks.Email.URL != "" {
		out = append(out, &sinks.EmailSink{
			URL:    cfg.Sinks.Email.URL,
			APIKey: cfg.Sinks.Email.APIKey,
			To:     cfg.Sinks.Email.To,
			From:   cfg.Sinks.Email.From,
		})
	}
	if cfg.Sinks.Records.APIKey != "" {
		out = append(out, &sinks.RecordsSink{
			APIKey: cfg.Sinks.Records.APIKey,
			BaseID: cfg.Sinks.Records.BaseID,
			Table:  cfg.Sinks.Records.Table,
		})
	}
	return out
}

func sessionCmd() *cobra.Command {
	sess := &cobra.Command{Use: "session", Short: "Inspect the local screening session"}
	sess.AddCommand(sessionShowCmd())
	sess.AddCommand(sessionRestartCmd())
	sess.AddCommand(sessionExportCmd())
	return sess
}

func sessionShowCmd() *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show persisted session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDrafts(cmd.Context(), func(ctx context.Context, repo store.DraftRepo) error {
				w := restoreSession(ctx, repo, scope)
				view := domain.SessionView{
					ID:              scope,
					CurrentStep:     w.Step(),
					Profile:         w.Profile(),
					Answers:         w.Answers(),
					SubmissionState: w.SubmissionState(),
				}
				if viper.GetBool("json") {
					return printJSON(view)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendRow(table.Row{"Session", view.ID})
				tw.AppendRow(table.Row{"Step", view.CurrentStep})
				tw.AppendRow(table.Row{"Name", view.Profile.Name})
				tw.AppendRow(table.Row{"Age", view.Profile.Age})
				tw.AppendRow(table.Row{"Sex", view.Profile.Sex})
				tw.AppendRow(table.Row{"Weight (kg)", view.Profile.WeightKg})
				tw.AppendRow(table.Row{"Height (cm)", view.Profile.HeightCm})
				for _, q := range domain.Questions {
					a := view.Answers[q]
					if a == "" {
						a = "-"
					}
					tw.AppendRow(table.Row{string(q), a})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&scope, "session", localScope, "session id")
	return cmd
}

func sessionRestartCmd() *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Clear the persisted session and start over",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDrafts(cmd.Context(), func(ctx context.Context, repo store.DraftRepo) error {
				w := restoreSession(ctx, repo, scope)
				w.Restart(ctx)
				fmt.Println("session reset")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&scope, "session", localScope, "session id")
	return cmd
}

func sessionExportCmd() *cobra.Command {
	var scope, format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the session as a report without submitting",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDrafts(cmd.Context(), func(ctx context.Context, repo store.DraftRepo) error {
				w := restoreSession(ctx, repo, scope)
				payload := submit.BuildPayload(w.Profile(), w.Answers(), time.Now(), "", domain.ClientContext{})
				switch format {
				case "html":
					html, err := report.HTML(payload)
					if err != nil {
						return err
					}
					fmt.Println(html)
				case "csv":
					csv, err := report.CSV(payload)
					if err != nil {
						return err
					}
					fmt.Print(csv)
				default:
					return fmt.Errorf("unknown format %q: want html or csv", format)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&scope, "session", localScope, "session id")
	cmd.Flags().StringVar(&format, "format", "html", "output format (html or csv)")
	return cmd
}

func scoreCmd() *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score the persisted session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDrafts(cmd.Context(), func(ctx context.Context, repo store.DraftRepo) error {
				w := restoreSession(ctx, repo, scope)
				res := scoring.Evaluate(w.Profile(), w.Answers())
				if viper.GetBool("json") {
					return printJSON(res)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendRow(table.Row{"BMI", fmt.Sprintf("%.1f (%s)", res.BodyMassIndex, res.BMICategory)})
				tw.AppendRow(table.Row{"Score", fmt.Sprintf("%d / %d", res.RawScore, res.MaxScore)})
				tw.AppendRow(table.Row{"Risk", fmt.Sprintf("%s (%s)", res.RiskLevel, res.RiskCategory)})
				tw.AppendRow(table.Row{"Priority", res.Priority})
				tw.AppendRow(table.Row{"Follow up", res.FollowUpNeeded})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&scope, "session", localScope, "session id")
	return cmd
}

func failedCmd() *cobra.Command {
	failed := &cobra.Command{Use: "failed", Short: "Manage archived failed submissions"}
	failed.AddCommand(failedListCmd())
	failed.AddCommand(failedShowCmd())
	failed.AddCommand(failedClearCmd())
	return failed
}

func failedListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions holding a failed submission archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDrafts(cmd.Context(), func(ctx context.Context, repo store.DraftRepo) error {
				scopes, err := repo.Scopes(ctx, store.KeyFailedArchive)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(scopes)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Session", "Archived At", "Errors"})
				for _, scope := range scopes {
					var rec domain.FailedSubmission
					found, err := repo.ForScope(scope).Load(ctx, store.KeyFailedArchive, &rec)
					if err != nil || !found {
						continue
					}
					tw.AppendRow(table.Row{scope, rec.ArchivedAt, len(rec.Errors)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func failedShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <session>",
		Short: "Show one archived failed submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDrafts(cmd.Context(), func(ctx context.Context, repo store.DraftRepo) error {
				var rec domain.FailedSubmission
				found, err := repo.ForScope(args[0]).Load(ctx, store.KeyFailedArchive, &rec)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("no failed submission archived for session %s", args[0])
				}
				return printJSONOrTable(rec)
			})
		},
	}
	return cmd
}

func failedClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear <session>",
		Short: "Drop one archived failed submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDrafts(cmd.Context(), func(ctx context.Context, repo store.DraftRepo) error {
				if err := repo.ForScope(args[0]).Clear(ctx, store.KeyFailedArchive); err != nil {
					return err
				}
				fmt.Println("archive cleared")
				return nil
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage configuration"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default screenline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if cfg == nil {
				cfg = config.Default()
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func withDrafts(ctx context.Context, fn func(context.Context, store.DraftRepo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, store.DraftRepo{DB: conn})
}

func restoreSession(ctx context.Context, repo store.DraftRepo, scope string) *wizard.Session {
	w := wizard.New(wizard.Options{Store: repo.ForScope(scope)})
	w.Restore(ctx)
	return w
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
