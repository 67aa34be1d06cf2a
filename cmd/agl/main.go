package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"agreeline/internal/agreement"
	"agreeline/internal/config"
	"agreeline/internal/contexts"
	"agreeline/internal/db"
	"agreeline/internal/domain"
	"agreeline/internal/events"
	"agreeline/internal/migrate"
	"agreeline/internal/milestone"
	"agreeline/internal/repo"
	"agreeline/internal/scratch"
	"agreeline/internal/server"
	"agreeline/internal/transport"
	"agreeline/internal/wizard"
)

var rootCmd = &cobra.Command{
	Use:   "agl",
	Short: "Agreeline CLI",
	Long: `Agreeline creates and manages shared agreement contexts, including DAO
agreements with participants, milestones, funding, and supporting documents.
Core concepts:
- Agreement: a shared context on the remote node plus your membership in it.
- DAO agreement: an agreement with participants, escrow funding, a voting
  threshold, and milestones that release funds when their condition is met.
- Milestone kinds: manual approval, document signature, or time release.
- Wizard: 'agl dao wizard' walks the six creation steps interactively.
- Workspace: the .agreeline directory holding the local database; agreeline.yml
  next to it configures the remote node.
- Event log: local diary of what this CLI did, view with 'agl log tail'.`,
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
	viper.SetEnvPrefix("AGREELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("node-url", "", "remote node URL (overrides config)")
	rootCmd.PersistentFlags().String("application-id", "", "context application id (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("node-url", rootCmd.PersistentFlags().Lookup("node-url"))
	_ = viper.BindPFlag("application-id", rootCmd.PersistentFlags().Lookup("application-id"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(agreementCmd())
	rootCmd.AddCommand(daoCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- config ---

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage agreeline.yml"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default agreeline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
}

// --- agreement ---

func agreementCmd() *cobra.Command {
	agr := &cobra.Command{Use: "agreement", Short: "Manage shared agreements"}
	agr.AddCommand(agreementCreateCmd())
	agr.AddCommand(agreementListCmd())
	agr.AddCommand(agreementInviteCmd())
	agr.AddCommand(agreementJoinCmd())
	agr.AddCommand(agreementVerifyCmd())
	return agr
}

func agreementCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a shared agreement context",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			return withOrchestrator(cmd.Context(), func(ctx context.Context, o *agreement.Orchestrator) error {
				created, err := o.CreateAgreement(ctx, name)
				if err != nil {
					return err
				}
				return printJSONOrTable(created)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "agreement name")
	return cmd
}

func agreementListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List joined agreements",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(cmd.Context(), func(ctx context.Context, o *agreement.Orchestrator) error {
				list, err := o.ListAgreements(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(list)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Context ID", "Name", "Role", "Joined At"})
				for _, a := range list {
					tw.AppendRow(table.Row{a.ContextID, a.Name, a.Role, a.JoinedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func agreementInviteCmd() *cobra.Command {
	var contextID, inviter, invitee string
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Generate an invitation payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			if contextID == "" || invitee == "" {
				return fmt.Errorf("--context and --invitee required")
			}
			if inviter == "" {
				inviter = viper.GetString("actor-id")
			}
			return withOrchestrator(cmd.Context(), func(ctx context.Context, o *agreement.Orchestrator) error {
				payload, err := o.InviteToAgreement(ctx, contextID, inviter, invitee)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]string{"invitation_payload": payload})
			})
		},
	}
	cmd.Flags().StringVar(&contextID, "context", "", "context id")
	cmd.Flags().StringVar(&inviter, "inviter", "", "inviter identity (defaults to --actor-id)")
	cmd.Flags().StringVar(&invitee, "invitee", "", "invitee identity")
	return cmd
}

func agreementJoinCmd() *cobra.Command {
	var payload string
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join an agreement via invitation payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			if payload == "" {
				return fmt.Errorf("--payload required")
			}
			return withOrchestrator(cmd.Context(), func(ctx context.Context, o *agreement.Orchestrator) error {
				joined, err := o.JoinAgreement(ctx, payload)
				if err != nil {
					return err
				}
				return printJSONOrTable(joined)
			})
		},
	}
	cmd.Flags().StringVar(&payload, "payload", "", "invitation payload")
	return cmd
}

func agreementVerifyCmd() *cobra.Command {
	var contextID string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check membership in an agreement context",
		RunE: func(cmd *cobra.Command, args []string) error {
			if contextID == "" {
				return fmt.Errorf("--context required")
			}
			return withOrchestrator(cmd.Context(), func(ctx context.Context, o *agreement.Orchestrator) error {
				joined := o.VerifyAgreement(ctx, contextID)
				return printJSONOrTable(map[string]bool{"joined": joined})
			})
		},
	}
	cmd.Flags().StringVar(&contextID, "context", "", "context id")
	return cmd
}

// --- dao ---

func daoCmd() *cobra.Command {
	dao := &cobra.Command{Use: "dao", Short: "DAO agreements"}
	dao.AddCommand(daoCreateCmd())
	dao.AddCommand(daoWizardCmd())
	dao.AddCommand(daoFundCmd())
	dao.AddCommand(daoBalanceCmd())
	dao.AddCommand(daoVotingStatusCmd())
	return dao
}

// parseMilestoneFlag parses "title:kind:amount[:recipient]".
func parseMilestoneFlag(s string) (milestone.Draft, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 {
		return milestone.Draft{}, fmt.Errorf("milestone %q: want title:kind:amount[:recipient]", s)
	}
	d := milestone.Draft{Title: parts[0], Kind: parts[1], Amount: parts[2]}
	if len(parts) > 3 && parts[3] != "" {
		d.Recipients = []string{parts[3]}
	}
	return d, nil
}

func daoCreateCmd() *cobra.Command {
	var name, funding string
	var participants, milestoneFlags, docPaths []string
	var threshold int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Run the full DAO agreement pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			drafts := make([]milestone.Draft, 0, len(milestoneFlags))
			for _, m := range milestoneFlags {
				d, err := parseMilestoneFlag(m)
				if err != nil {
					return err
				}
				drafts = append(drafts, d)
			}
			documents, err := readDocuments(docPaths)
			if err != nil {
				return err
			}
			return withOrchestrator(cmd.Context(), func(ctx context.Context, o *agreement.Orchestrator) error {
				res, err := o.CreateCompleteDaoAgreement(ctx, agreement.CompleteDaoInput{
					Name:            name,
					ParticipantIDs:  participants,
					Milestones:      drafts,
					TotalFunding:    funding,
					VotingThreshold: threshold,
					Documents:       documents,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "agreement name")
	cmd.Flags().StringSliceVar(&participants, "participant", nil, "participant id (repeatable)")
	cmd.Flags().StringArrayVar(&milestoneFlags, "milestone", nil, "milestone as title:kind:amount[:recipient] (repeatable)")
	cmd.Flags().StringVar(&funding, "funding", "", "total funding, decimal tokens")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "voting threshold percent (default 75)")
	cmd.Flags().StringSliceVar(&docPaths, "document", nil, "document file to upload (repeatable)")
	return cmd
}

func readDocuments(paths []string) ([]domain.DocumentFile, error) {
	out := make([]domain.DocumentFile, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read document %s: %w", p, err)
		}
		out = append(out, domain.DocumentFile{Name: filepath.Base(p), Data: data})
	}
	return out, nil
}

func daoWizardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wizard",
		Short: "Create a DAO agreement step by step",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(cmd.Context(), func(ctx context.Context, o *agreement.Orchestrator) error {
				return runWizard(ctx, o, bufio.NewReader(cmd.InOrStdin()))
			})
		},
	}
}

func daoFundCmd() *cobra.Command {
	var contextID, agreementID, userID, amount string
	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Deposit funds into the agreement escrow",
		RunE: func(cmd *cobra.Command, args []string) error {
			if contextID == "" || agreementID == "" || amount == "" {
				return fmt.Errorf("--context, --agreement and --amount required")
			}
			if userID == "" {
				userID = viper.GetString("actor-id")
			}
			return withOrchestrator(cmd.Context(), func(ctx context.Context, o *agreement.Orchestrator) error {
				if err := o.FundAgreement(ctx, contextID, userID, agreementID, amount); err != nil {
					return err
				}
				fmt.Println("funded", agreementID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&contextID, "context", "", "context id")
	cmd.Flags().StringVar(&agreementID, "agreement", "", "agreement id")
	cmd.Flags().StringVar(&userID, "user", "", "executor identity (defaults to --actor-id)")
	cmd.Flags().StringVar(&amount, "amount", "", "decimal token amount")
	return cmd
}

func daoBalanceCmd() *cobra.Command {
	var contextID, agreementID, userID string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Read the agreement escrow balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			if contextID == "" || agreementID == "" {
				return fmt.Errorf("--context and --agreement required")
			}
			if userID == "" {
				userID = viper.GetString("actor-id")
			}
			return withOrchestrator(cmd.Context(), func(ctx context.Context, o *agreement.Orchestrator) error {
				balance, err := o.AgreementBalance(ctx, contextID, userID, agreementID)
				if err != nil {
					return err
				}
				return printJSONOrTable(balance)
			})
		},
	}
	cmd.Flags().StringVar(&contextID, "context", "", "context id")
	cmd.Flags().StringVar(&agreementID, "agreement", "", "agreement id")
	cmd.Flags().StringVar(&userID, "user", "", "executor identity (defaults to --actor-id)")
	return cmd
}

func daoVotingStatusCmd() *cobra.Command {
	var contextID, agreementID, userID string
	var milestoneID int64
	cmd := &cobra.Command{
		Use:   "voting-status",
		Short: "Read the vote tally for a milestone",
		RunE: func(cmd *cobra.Command, args []string) error {
			if contextID == "" || agreementID == "" || milestoneID == 0 {
				return fmt.Errorf("--context, --agreement and --milestone required")
			}
			if userID == "" {
				userID = viper.GetString("actor-id")
			}
			return withOrchestrator(cmd.Context(), func(ctx context.Context, o *agreement.Orchestrator) error {
				status, err := o.MilestoneVotingStatus(ctx, contextID, userID, agreementID, milestoneID)
				if err != nil {
					return err
				}
				return printJSONOrTable(status)
			})
		},
	}
	cmd.Flags().StringVar(&contextID, "context", "", "context id")
	cmd.Flags().StringVar(&agreementID, "agreement", "", "agreement id")
	cmd.Flags().Int64Var(&milestoneID, "milestone", 0, "milestone id")
	cmd.Flags().StringVar(&userID, "user", "", "executor identity (defaults to --actor-id)")
	return cmd
}

// --- apikey ---

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage server API keys"}
	cmd.AddCommand(apikeyCreateCmd())
	cmd.AddCommand(apikeyListCmd())
	cmd.AddCommand(apikeyDeleteCmd())
	return cmd
}

func apikeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for the current actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				raw := uuid.NewString()
				key := repo.APIKey{
					ID:        uuid.NewString(),
					ActorID:   viper.GetString("actor-id"),
					Name:      name,
					KeyHash:   repo.HashAPIKey(raw),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				// The raw key is printed once and never stored.
				return printJSONOrTable(map[string]string{"id": key.ID, "api_key": raw})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys for the current actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(keys)
			})
		},
	}
}

func apikeyDeleteCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, id)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "key id")
	return cmd
}

// --- log ---

func logCmd() *cobra.Command {
	logc := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The local diary of contexts created, agreements submitted, and funds moved.",
	}
	logc.AddCommand(logTailCmd())
	return logc
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, conn *sql.DB) error {
				list, err := events.Tail(ctx, conn, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(list)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

// --- serve ---

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
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Listen
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			jwtSecret := os.Getenv("AGREELINE_JWT_SECRET")
			if jwtSecret == "" {
				jwtSecret = cfg.Server.JWTSecret
			}
			if jwtSecret == "" && !cfg.Server.AllowLegacyActorHeader {
				return fmt.Errorf("AGREELINE_JWT_SECRET or server.jwt_secret is required for bearer auth")
			}
			o := newOrchestrator(cfg, conn)
			handler, err := server.New(server.Config{
				Orchestrator: o,
				Repo:         &repo.Repo{DB: conn},
				DB:           conn,
				BasePath:     basePath,
				Auth: server.AuthConfig{
					JWTSecret:              jwtSecret,
					AllowLegacyActorHeader: cfg.Server.AllowLegacyActorHeader,
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
			fmt.Printf("Serving Agreeline API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config server.listen)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to config server.base_path)")
	return cmd
}

// --- helpers ---

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if u := viper.GetString("node-url"); u != "" {
		cfg.Node.URL = u
	}
	if id := viper.GetString("application-id"); id != "" {
		cfg.Node.ApplicationID = id
	}
	return cfg, nil
}

func newOrchestrator(cfg *config.Config, conn *sql.DB) *agreement.Orchestrator {
	rest := transport.NewRESTClient(cfg.Node.URL, cfg.Node.ApplicationID)
	if cfg.Node.TimeoutSeconds > 0 {
		rest.Timeout = time.Duration(cfg.Node.TimeoutSeconds) * time.Second
	}
	// The CLI always runs standalone; a host bridge only exists when the
	// orchestrator is embedded, so the selector goes straight to REST.
	selector := transport.NewSelector(nil, rest)
	writer := &events.Writer{DB: conn}
	store := scratch.NewSQLite(conn, viper.GetString("actor-id"))
	return agreement.New(contexts.New(selector, writer), selector, store, writer)
}

func withOrchestrator(ctx context.Context, fn func(context.Context, *agreement.Orchestrator) error) error {
	return withDB(ctx, func(ctx context.Context, conn *sql.DB) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return fn(ctx, newOrchestrator(cfg, conn))
	})
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	return withDB(ctx, func(ctx context.Context, conn *sql.DB) error {
		return fn(ctx, repo.Repo{DB: conn})
	})
}

func withDB(ctx context.Context, fn func(context.Context, *sql.DB) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, conn)
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

func prompt(r *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// runWizard walks the six step flow on stdin, delegating all transitions to
// the state machine so the guards stay authoritative.
func runWizard(ctx context.Context, o *agreement.Orchestrator, r *bufio.Reader) error {
	m := wizard.NewMachine(o, o.Scratch)

	for !m.Terminal() {
		switch m.Step() {
		case wizard.StepName:
			name, err := prompt(r, "Agreement name: ")
			if err != nil {
				return err
			}
			m.Draft.Name = name
		case wizard.StepParticipants:
			line, err := prompt(r, "Participant ids (comma separated, empty for none): ")
			if err != nil {
				return err
			}
			m.Draft.ParticipantIDs = splitCSV(line)
		case wizard.StepDocuments:
			line, err := prompt(r, "Document files (comma separated paths, empty for none): ")
			if err != nil {
				return err
			}
			documents, err := readDocuments(splitCSV(line))
			if err != nil {
				fmt.Println("  ", err)
				continue
			}
			m.Draft.Documents = documents
		case wizard.StepFunding:
			funding, err := prompt(r, "Total funding (decimal tokens): ")
			if err != nil {
				return err
			}
			m.Draft.TotalFunding = funding
			line, err := prompt(r, "Voting threshold percent (empty for 75): ")
			if err != nil {
				return err
			}
			if line != "" {
				threshold, convErr := strconv.Atoi(line)
				if convErr != nil {
					fmt.Println("   not a number:", line)
					continue
				}
				m.Draft.VotingThreshold = threshold
			}
		case wizard.StepMilestones:
			line, err := prompt(r, "Milestone as title:kind:amount[:recipient] (empty to finish): ")
			if err != nil {
				return err
			}
			if line != "" {
				d, parseErr := parseMilestoneFlag(line)
				if parseErr != nil {
					fmt.Println("  ", parseErr)
					continue
				}
				m.Draft.Milestones = append(m.Draft.Milestones, d)
				continue
			}
		case wizard.StepReview:
			fmt.Printf("Submitting %q with %d participant(s), %d milestone(s), funding %s\n",
				m.Draft.Name, len(m.Draft.ParticipantIDs), len(m.Draft.Milestones), m.Draft.TotalFunding)
			res, err := m.Submit(ctx)
			if err != nil {
				return err
			}
			return printJSONOrTable(res)
		}

		if m.Step() == wizard.StepReview {
			continue
		}
		advanced, err := m.Next(ctx)
		if err != nil {
			return err
		}
		if !advanced {
			if guardErr := m.Guard(); guardErr != nil {
				fmt.Println("  ", guardErr)
			}
		}
	}
	return nil
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
