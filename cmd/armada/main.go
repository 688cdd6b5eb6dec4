package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"armada/internal/app"
	"armada/internal/blobstore"
	"armada/internal/config"
	"armada/internal/db"
	"armada/internal/domain"
	"armada/internal/engine"
	"armada/internal/engine/auth"
	"armada/internal/migrate"
	"armada/internal/repo"
	"armada/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "armada",
	Short: "Armada CLI",
	Long: `Armada manages vehicle inspection reports for toll-road operations.
Field officers file inspections on operational vehicles (tow, plaza,
security, rescue); traffic and operational managers approve or reject
them in two stages; approved reports carry a PDF reference and feed
periodic aggregate reports (rekap) for operational managers.`,
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
	viper.SetEnvPrefix("ARMADA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("actor-name", "", "actor display name")
	rootCmd.PersistentFlags().String("actor-role", string(domain.RolePetugasLapangan), "actor role")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("actor-name", rootCmd.PersistentFlags().Lookup("actor-name"))
	_ = viper.BindPFlag("actor-role", rootCmd.PersistentFlags().Lookup("actor-role"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(inspectionCmd())
	rootCmd.AddCommand(commentCmd())
	rootCmd.AddCommand(rekapCmd())
	rootCmd.AddCommand(actorCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func cliActor() auth.Actor {
	return auth.Actor{
		ID:   viper.GetString("actor-id"),
		Name: viper.GetString("actor-name"),
		Role: domain.Role(viper.GetString("actor-role")),
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage configuration"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var instanceID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default armada.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(instanceID)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&instanceID, "id", "local", "instance id")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.ResolveConfig(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if filePath == "" {
				filePath = config.Path(viper.GetString("workspace"))
			}
			if _, err := config.FromFile(filePath); err != nil {
				return err
			}
			fmt.Printf("%s is valid\n", filePath)
			return nil
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	return cmd
}

func inspectionCmd() *cobra.Command {
	ins := &cobra.Command{
		Use:   "inspection",
		Short: "Manage inspections",
		Long:  "Inspections flow DRAFT -> SUBMITTED -> APPROVED_BY_TRAFFIC -> APPROVED_BY_OPERATIONAL, or SUBMITTED -> REJECTED with a note from the traffic manager.",
	}
	ins.AddCommand(inspectionCreateCmd())
	ins.AddCommand(inspectionListCmd())
	ins.AddCommand(inspectionShowCmd())
	ins.AddCommand(inspectionEditCmd())
	ins.AddCommand(inspectionDeleteCmd())
	ins.AddCommand(inspectionApproveTrafficCmd())
	ins.AddCommand(inspectionApproveOperationalCmd())
	ins.AddCommand(inspectionRejectCmd())
	ins.AddCommand(inspectionAttachPDFCmd())
	return ins
}

func inspectionInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("category", "", "vehicle category (TOW, PLAZA, SECURITY, RESCUE)")
	cmd.Flags().String("vehicle", "", "vehicle number")
	cmd.Flags().String("location", "", "inspection location")
	cmd.Flags().String("date", "", "inspection date (YYYY-MM-DD)")
	cmd.Flags().String("notes", "", "free-form notes")
	cmd.Flags().Bool("submit", false, "submit for approval in the same call")
}

func inspectionInputFromFlags(cmd *cobra.Command) engine.InspectionInput {
	category, _ := cmd.Flags().GetString("category")
	vehicle, _ := cmd.Flags().GetString("vehicle")
	location, _ := cmd.Flags().GetString("location")
	date, _ := cmd.Flags().GetString("date")
	notes, _ := cmd.Flags().GetString("notes")
	submit, _ := cmd.Flags().GetBool("submit")
	return engine.InspectionInput{
		VehicleCategory:    domain.VehicleCategory(category),
		VehicleNumber:      vehicle,
		InspectionLocation: location,
		InspectionDate:     date,
		Notes:              notes,
		Submit:             submit,
	}
}

func inspectionCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "File an inspection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ins, err := e.CreateInspection(ctx, cliActor(), inspectionInputFromFlags(cmd))
				if err != nil {
					return err
				}
				return printJSON(ins)
			})
		},
	}
	inspectionInputFlags(cmd)
	return cmd
}

func inspectionListCmd() *cobra.Command {
	var status, category, owner string
	var needsApproval bool
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List inspections",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				filter := repo.InspectionFilter{Status: status, VehicleCategory: category, OwnerID: owner}
				if cmd.Flags().Changed("needs-approval") {
					filter.NeedsApproval = &needsApproval
				}
				items, err := e.ListInspections(ctx, cliActor(), filter, limit, "", "")
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"ID", "Category", "Vehicle", "Date", "Status", "Owner"})
				for _, ins := range items {
					t.AppendRow(table.Row{ins.ID, ins.VehicleCategory, ins.VehicleNumber, ins.InspectionDate, ins.Status, ins.OwnerID})
				}
				t.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&category, "category", "", "vehicle category filter")
	cmd.Flags().StringVar(&owner, "owner", "", "owner id filter")
	cmd.Flags().BoolVar(&needsApproval, "needs-approval", false, "needs-approval filter")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

func inspectionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an inspection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ins, err := e.GetInspection(ctx, cliActor(), args[0])
				if err != nil {
					return err
				}
				return printJSON(ins)
			})
		},
	}
}

func inspectionEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a draft, optionally submitting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ins, err := e.UpdateDraft(ctx, cliActor(), args[0], inspectionInputFromFlags(cmd))
				if err != nil {
					return err
				}
				return printJSON(ins)
			})
		},
	}
	inspectionInputFlags(cmd)
	return cmd
}

func inspectionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteDraft(ctx, cliActor(), args[0])
			})
		},
	}
}

func inspectionApproveTrafficCmd() *cobra.Command {
	var signature string
	cmd := &cobra.Command{
		Use:   "approve-traffic <id>",
		Short: "Traffic manager sign-off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ins, err := e.ApproveTraffic(ctx, cliActor(), args[0], optionalString(signature))
				if err != nil {
					return err
				}
				return printJSON(ins)
			})
		},
	}
	cmd.Flags().StringVar(&signature, "signature", "", "signature reference")
	return cmd
}

func inspectionApproveOperationalCmd() *cobra.Command {
	var signature string
	cmd := &cobra.Command{
		Use:   "approve-operational <id>",
		Short: "Operational manager sign-off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ins, err := e.ApproveOperational(ctx, cliActor(), args[0], optionalString(signature))
				if err != nil {
					return err
				}
				return printJSON(ins)
			})
		},
	}
	cmd.Flags().StringVar(&signature, "signature", "", "signature reference")
	return cmd
}

func inspectionRejectCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject at the traffic stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ins, err := e.RejectTraffic(ctx, cliActor(), args[0], note)
				if err != nil {
					return err
				}
				return printJSON(ins)
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "rejection note (required)")
	return cmd
}

func inspectionAttachPDFCmd() *cobra.Command {
	var ref string
	cmd := &cobra.Command{
		Use:   "attach-pdf <id>",
		Short: "Attach a rendered report reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ins, err := e.AttachPDF(ctx, cliActor(), args[0], ref)
				if err != nil {
					return err
				}
				return printJSON(ins)
			})
		},
	}
	cmd.Flags().StringVar(&ref, "ref", "", "report reference")
	_ = cmd.MarkFlagRequired("ref")
	return cmd
}

func commentCmd() *cobra.Command {
	c := &cobra.Command{Use: "comment", Short: "Inspection comments"}
	addCmd := &cobra.Command{
		Use:   "add <inspection-id>",
		Short: "Append a comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := cmd.Flags().GetString("body")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				k, err := e.AddComment(ctx, cliActor(), args[0], body)
				if err != nil {
					return err
				}
				return printJSON(k)
			})
		},
	}
	addCmd.Flags().String("body", "", "comment body")
	_ = addCmd.MarkFlagRequired("body")
	listCmd := &cobra.Command{
		Use:   "list <inspection-id>",
		Short: "Comment log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListComments(ctx, cliActor(), args[0])
				if err != nil {
					return err
				}
				return printJSON(items)
			})
		},
	}
	c.AddCommand(addCmd, listCmd)
	return c
}

func rekapCmd() *cobra.Command {
	rk := &cobra.Command{
		Use:   "rekap",
		Short: "Aggregate reports",
		Long:  "Rekaps count approved inspections over a period and are addressed to operational managers.",
	}
	rk.AddCommand(rekapCreateCmd())
	rk.AddCommand(rekapListCmd())
	rk.AddCommand(rekapReadCmd())
	return rk
}

func rekapCreateCmd() *cobra.Command {
	var period, start, end, category string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an aggregate report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				in := engine.RekapInput{
					PeriodType: domain.PeriodType(period),
					StartDate:  start,
					EndDate:    end,
				}
				if category != "" {
					c := domain.VehicleCategory(category)
					in.VehicleCategory = &c
				}
				rk, err := e.CreateRekap(ctx, cliActor(), in)
				if err != nil {
					return err
				}
				return printJSON(rk)
			})
		},
	}
	cmd.Flags().StringVar(&period, "period", string(domain.PeriodCustom), "period type (WEEKLY, MONTHLY, YEARLY, CUSTOM)")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&category, "category", "", "vehicle category filter")
	return cmd
}

func rekapListCmd() *cobra.Command {
	var unreadOnly bool
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List aggregate reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var isRead *bool
				if unreadOnly {
					v := false
					isRead = &v
				}
				items, err := e.ListRekaps(ctx, cliActor(), isRead, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"ID", "Period", "Start", "End", "Total", "Read"})
				for _, rk := range items {
					t.AppendRow(table.Row{rk.ID, rk.PeriodType, rk.StartDate, rk.EndDate, rk.TotalInspections, rk.IsRead})
				}
				t.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "only unread")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

func rekapReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a report as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rk, err := e.MarkRekapRead(ctx, cliActor(), args[0])
				if err != nil {
					return err
				}
				return printJSON(rk)
			})
		},
	}
}

func actorCmd() *cobra.Command {
	a := &cobra.Command{Use: "actor", Short: "Actor registry"}
	ensureCmd := &cobra.Command{
		Use:   "ensure",
		Short: "Register or update an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			name, _ := cmd.Flags().GetString("name")
			role := domain.Role(mustGetString(cmd, "role"))
			if !role.IsValid() {
				return fmt.Errorf("invalid role %q", role)
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				actor := domain.Actor{ID: id, Name: name, Role: role}
				if err := r.EnsureActor(ctx, nil, actor); err != nil {
					return err
				}
				got, err := r.GetActor(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(got)
			})
		},
	}
	ensureCmd.Flags().String("id", "", "actor id")
	ensureCmd.Flags().String("name", "", "display name")
	ensureCmd.Flags().String("role", "", "role")
	_ = ensureCmd.MarkFlagRequired("id")
	_ = ensureCmd.MarkFlagRequired("role")
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List actors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListActors(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				t := table.NewWriter()
				t.SetOutputMirror(os.Stdout)
				t.AppendHeader(table.Row{"ID", "Name", "Role"})
				for _, actor := range items {
					t.AppendRow(table.Row{actor.ID, actor.Name, actor.Role})
				}
				t.Render()
				return nil
			})
		},
	}
	a.AddCommand(ensureCmd, listCmd)
	return a
}

func apikeyCmd() *cobra.Command {
	k := &cobra.Command{Use: "apikey", Short: "API keys"}
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Issue an API key for an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID := mustGetString(cmd, "actor")
			name, _ := cmd.Flags().GetString("name")
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if _, err := r.GetActor(ctx, actorID); err != nil {
					return err
				}
				secret := uuid.NewString()
				key := domain.APIKey{
					ID:      uuid.NewString(),
					ActorID: actorID,
					Name:    name,
					KeyHash: repo.HashAPIKey(secret),
				}
				if err := r.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				// The plaintext key is shown once and never stored.
				return printJSON(map[string]string{"id": key.ID, "actor_id": actorID, "key": secret})
			})
		},
	}
	createCmd.Flags().String("actor", "", "actor id")
	createCmd.Flags().String("name", "", "key label")
	_ = createCmd.MarkFlagRequired("actor")
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID, _ := cmd.Flags().GetString("actor")
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				return printJSON(items)
			})
		},
	}
	listCmd.Flags().String("actor", "", "filter by actor id")
	revokeCmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	k.AddCommand(createCmd, listCmd, revokeCmd)
	return k
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{
		Use:   "log",
		Short: "Audit event log",
	}
	var n int
	var inspectionID string
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.TailEvents(ctx, n, inspectionID)
				if err != nil {
					return err
				}
				return printJSON(events)
			})
		},
	}
	tailCmd.Flags().IntVar(&n, "n", 20, "number of events")
	tailCmd.Flags().StringVar(&inspectionID, "inspection", "", "inspection id filter")
	lg.AddCommand(tailCmd)
	return lg
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := app.ResolveConfig(workspace)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" && !cfg.Auth.AllowLegacyActorHeader {
				return fmt.Errorf("set ARMADA_JWT_SECRET or enable auth.allow_legacy_actor_header")
			}
			e := engine.New(conn, cfg)
			blobs, err := blobstore.NewFSStore(filepath.Join(workspace, ".armada", "blobs"))
			if err != nil {
				return err
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				Blobs:    blobs,
				BasePath: basePath,
				Auth: server.AuthConfig{
					JWTSecret:              cfg.Auth.JWTSecret,
					AllowLegacyActorHeader: cfg.Auth.AllowLegacyActorHeader,
				},
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
			fmt.Printf("Serving Armada API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := app.ResolveConfig(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func mustGetString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
