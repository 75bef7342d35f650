package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskline/internal/app"
	"taskline/internal/config"
	"taskline/internal/db"
	"taskline/internal/domain"
	"taskline/internal/engine"
	"taskline/internal/engine/auth"
	"taskline/internal/events"
	"taskline/internal/logging"
	"taskline/internal/migrate"
	"taskline/internal/repo"
	"taskline/internal/server"
	"taskline/internal/telemetry"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "tl",
	Short: "Taskline CLI",
	Long: `Taskline is an event-sourced project and task tracker.
Core concepts:
- Projects own their statuses (in display order), tasks and members.
- Users sign up with a username; each user gets a person profile that can join projects.
- Every change is an event in the log ('tl events'); the tables read by list/show are rebuilt from it ('tl projector rebuild').`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.SetLogLevel(viper.GetString("log-level"))
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
	viper.SetEnvPrefix("TASKLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("config", "", "config file (default <workspace>/taskline.yml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor", "local-user", "actor recorded on events")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor", rootCmd.PersistentFlags().Lookup("actor"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(projectorCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(versionCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the workspace, its config file and database",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			dir, err := db.EnsureWorkspace(workspace)
			if err != nil {
				return err
			}
			cfgPath, err := config.Write(workspace, config.Default())
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				schema, err := migrate.Version(a.DB)
				if err != nil {
					return err
				}
				out := map[string]any{
					"workspace":      dir,
					"config":         cfgPath,
					"driver":         a.Config.Storage.Driver,
					"schema_version": schema,
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Initialized %s (config %s, %s schema v%d)\n", dir, cfgPath, a.Config.Storage.Driver, schema)
				return nil
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server and the read-model projector",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("base-path") {
				cfg.Server.BasePath = basePath
			}
			if !cmd.Flags().Changed("log-level") && cfg.Log.Level != "" {
				if err := logging.SetLogLevel(cfg.Log.Level); err != nil {
					return err
				}
			}
			logger := logging.New("serve")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
			if err != nil {
				return fmt.Errorf("telemetry: %w", err)
			}
			defer shutdownTracing(context.Background())

			a, err := app.Open(ctx, viper.GetString("workspace"), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			handler, err := server.New(server.Config{
				Engine:            a.Engine,
				Repo:              a.Repo,
				Projector:         a.Projector,
				Metrics:           a.Metrics,
				BasePath:          cfg.Server.BasePath,
				Version:           version,
				Auth:              server.AuthConfig{JWTSecret: cfg.Auth.JWTSecret, AllowActorHeader: cfg.Auth.AllowActorHeader},
				WaitForProjection: cfg.Server.WaitForProjection,
				ProjectionTimeout: cfg.Server.ProjectionTimeout,
			})
			if err != nil {
				return err
			}

			projectorDone := make(chan error, 1)
			go func() { projectorDone <- a.Projector.Run(ctx) }()

			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			logger.Infow("serving", "addr", cfg.Server.Addr, "base_path", cfg.Server.BasePath, "driver", cfg.Storage.Driver)
			fmt.Printf("Serving Taskline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			stop()
			return <-projectorDone
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectMembersCmd())
	prj.AddCommand(projectAddMemberCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var title, creator string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create project with a default status and the creator as member",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				personID, err := resolvePerson(ctx, a.Repo, creator)
				if err != nil {
					return err
				}
				recs, err := a.Engine.CreateProject(ctx, engine.ProjectCreateOptions{
					Title:           title,
					CreatorPersonID: personID,
					ActorID:         viper.GetString("actor"),
				})
				return printCommand(ctx, a, recs, err)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "project title")
	cmd.Flags().StringVar(&creator, "creator", "", "creator username or person id")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("creator")
	return cmd
}

func projectListCmd() *cobra.Command {
	var member string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var items []repo.ProjectSummary
				var err error
				if member != "" {
					personID, perr := resolvePerson(ctx, a.Repo, member)
					if perr != nil {
						return perr
					}
					items, err = a.Repo.ListProjectsByPerson(ctx, personID)
				} else {
					items, err = a.Repo.ListProjects(ctx)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"ID", "Title"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Title})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&member, "member", "", "only projects of this username or person id")
	return cmd
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project with its statuses and tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Repo.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p)
				}
				fmt.Printf("Project: %s (%s)\n", p.Title, p.ID)
				fmt.Println("Statuses:")
				printStatuses(p.Statuses)
				fmt.Println("Tasks:")
				printTasks(p.Tasks, p.Statuses)
				fmt.Println("Members:")
				printMembers(p.Members)
				return nil
			})
		},
	}
}

func projectMembersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "members <project-id>",
		Short: "List project members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				members, err := a.Repo.ListMembers(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(members)
				}
				printMembers(members)
				return nil
			})
		},
	}
}

func projectAddMemberCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-member <project-id> <username|person-id>",
		Short: "Add a person to a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				personID, err := resolvePerson(ctx, a.Repo, args[1])
				if err != nil {
					return err
				}
				recs, err := a.Engine.AddMember(ctx, args[0], personID, viper.GetString("actor"))
				return printCommand(ctx, a, recs, err)
			})
		},
	}
}

func statusCmd() *cobra.Command {
	st := &cobra.Command{Use: "status", Short: "Manage project statuses"}
	st.AddCommand(statusCreateCmd())
	st.AddCommand(statusListCmd())
	st.AddCommand(statusReorderCmd())
	st.AddCommand(statusDeleteCmd())
	return st
}

func statusCreateCmd() *cobra.Command {
	var name, color string
	cmd := &cobra.Command{
		Use:   "create <project-id>",
		Short: "Append a status to the project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				recs, err := a.Engine.CreateStatus(ctx, engine.StatusCreateOptions{
					ProjectID: args[0],
					Name:      name,
					Color:     color,
					ActorID:   viper.GetString("actor"),
				})
				return printCommand(ctx, a, recs, err)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", domain.DefaultStatusName, "status name")
	cmd.Flags().StringVar(&color, "color", domain.DefaultStatusColor, "status color (#rrggbb)")
	return cmd
}

func statusListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <project-id>",
		Short: "List statuses in display order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Repo.ListStatuses(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				printStatuses(items)
				return nil
			})
		},
	}
}

func statusReorderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <project-id> <status-id>...",
		Short: "Set the status order; every status must be listed once",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				recs, err := a.Engine.UpdateStatusOrder(ctx, args[0], args[1:], viper.GetString("actor"))
				return printCommand(ctx, a, recs, err)
			})
		},
	}
}

func statusDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id> <status-id>",
		Short: "Delete a status no task is in",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				recs, err := a.Engine.DeleteStatus(ctx, args[0], args[1], viper.GetString("actor"))
				return printCommand(ctx, a, recs, err)
			})
		},
	}
}

func taskCmd() *cobra.Command {
	t := &cobra.Command{Use: "task", Short: "Manage tasks"}
	t.AddCommand(taskCreateCmd())
	t.AddCommand(taskListCmd())
	t.AddCommand(taskShowCmd())
	t.AddCommand(taskAssignCmd())
	t.AddCommand(taskMoveCmd())
	t.AddCommand(taskRenameCmd())
	return t
}

func taskCreateCmd() *cobra.Command {
	var title, statusID string
	var assignees []string
	cmd := &cobra.Command{
		Use:   "create <project-id>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if statusID == "" {
					statuses, err := a.Repo.ListStatuses(ctx, args[0])
					if err != nil {
						return err
					}
					if len(statuses) == 0 {
						return fmt.Errorf("project %s has no status; pass --status", args[0])
					}
					statusID = statuses[0].ID
				}
				recs, err := a.Engine.CreateTask(ctx, engine.TaskCreateOptions{
					ProjectID: args[0],
					Title:     title,
					StatusID:  statusID,
					Assignees: assignees,
					ActorID:   viper.GetString("actor"),
				})
				return printCommand(ctx, a, recs, err)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&statusID, "status", "", "status id (default: first status)")
	cmd.Flags().StringSliceVar(&assignees, "assignee", nil, "member id (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				tasks, err := a.Repo.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				var statuses []domain.Status
				if f.ProjectID != "" {
					if statuses, err = a.Repo.ListStatuses(ctx, f.ProjectID); err != nil {
						return err
					}
				}
				printTasks(tasks, statuses)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&f.StatusID, "status", "", "status id filter")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id> <task-id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Repo.GetTask(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				status, err := a.Repo.GetTaskStatus(ctx, args[0], args[1])
				if err != nil && !errors.Is(err, repo.ErrNotFound) {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"task": t, "status": status})
				}
				fmt.Printf("Task: %s (%s)\n", t.Title, t.ID)
				fmt.Printf("Status: %s %s\n", status.Name, status.Color)
				fmt.Printf("Assignees: %s\n", strings.Join(t.Assignees, ", "))
				return nil
			})
		},
	}
}

func taskAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <project-id> <task-id> <member-id>",
		Short: "Assign a project member to a task",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				recs, err := a.Engine.AssignMember(ctx, args[0], args[1], args[2], viper.GetString("actor"))
				return printCommand(ctx, a, recs, err)
			})
		},
	}
}

func taskMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <project-id> <task-id> <status-id>",
		Short: "Move a task to another status",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				recs, err := a.Engine.UpdateTaskStatus(ctx, args[0], args[1], args[2], viper.GetString("actor"))
				return printCommand(ctx, a, recs, err)
			})
		},
	}
}

func taskRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <project-id> <task-id> <title>",
		Short: "Rename a task",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				recs, err := a.Engine.RenameTask(ctx, args[0], args[1], args[2], viper.GetString("actor"))
				return printCommand(ctx, a, recs, err)
			})
		},
	}
}

func userCmd() *cobra.Command {
	u := &cobra.Command{Use: "user", Short: "Manage users"}
	u.AddCommand(userSignupCmd())
	u.AddCommand(userListCmd())
	u.AddCommand(userShowCmd())
	return u
}

func userSignupCmd() *cobra.Command {
	var opts engine.SignupOptions
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a user and its person profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Password == "" {
				opts.Password = os.Getenv("TASKLINE_PASSWORD")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				opts.ActorID = viper.GetString("actor")
				recs, err := a.Engine.Signup(ctx, opts)
				return printCommand(ctx, a, recs, err)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Username, "username", "", "username")
	cmd.Flags().StringVar(&opts.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&opts.MiddleName, "middle-name", "", "middle name")
	cmd.Flags().StringVar(&opts.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password (or TASKLINE_PASSWORD)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				users, err := a.Repo.ListUsers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := newTable(table.Row{"Username", "First", "Middle", "Last"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.Username, u.FirstName, u.MiddleName, u.LastName})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func userShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <username>",
		Short: "Show a user and its person profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				u, err := a.Repo.GetUserByUsername(ctx, args[0])
				if err != nil {
					return err
				}
				p, err := a.Repo.GetPersonByUsername(ctx, args[0])
				if err != nil && !errors.Is(err, repo.ErrNotFound) {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"user": u, "person": p})
				}
				fmt.Printf("User: %s (%s %s %s)\n", u.Username, u.FirstName, u.MiddleName, u.LastName)
				if p.ID != "" {
					fmt.Printf("Person: %s\n", p.ID)
				}
				return nil
			})
		},
	}
}

func eventsCmd() *cobra.Command {
	var after int64
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail the event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				recs, err := a.Store.After(ctx, after, limit)
				if err != nil {
					return err
				}
				return printRecords(recs)
			})
		},
	}
	cmd.Flags().Int64Var(&after, "after", 0, "start after this log position")
	cmd.Flags().IntVar(&limit, "limit", 50, "number of events")
	return cmd
}

func projectorCmd() *cobra.Command {
	p := &cobra.Command{Use: "projector", Short: "Maintain the read model"}
	p.AddCommand(&cobra.Command{
		Use:   "rebuild",
		Short: "Empty the read tables and replay the whole log into them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				n, err := a.Projector.Rebuild(ctx)
				if err != nil {
					return err
				}
				pos, err := a.Projector.Position(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"applied": n, "position": pos})
				}
				fmt.Printf("Replayed %d events, read model at position %d\n", n, pos)
				return nil
			})
		},
	})
	return p
}

func tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token identifying an actor to the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := auth.IssueToken(cfg.Auth.JWTSecret, subject, ttl, time.Now())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]string{"token": token})
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "actor id")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 for none)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("tl", version)
		},
	}
}

// --- helpers ---

func loadConfig() (*config.Config, error) {
	if path := viper.GetString("config"); path != "" {
		return config.LoadFile(path)
	}
	return config.Load(viper.GetString("workspace"))
}

// withApp opens the workspace and brings the read model up to date before fn
// runs. Events appended by fn are projected by printCommand.
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.Open(ctx, viper.GetString("workspace"), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	if _, err := a.Projector.CatchUp(ctx); err != nil {
		return fmt.Errorf("update read model: %w", err)
	}
	return fn(ctx, a)
}

// resolvePerson accepts a username or a person id.
func resolvePerson(ctx context.Context, r repo.Repo, ref string) (string, error) {
	p, err := r.GetPersonByUsername(ctx, ref)
	switch {
	case err == nil:
		return p.ID, nil
	case errors.Is(err, repo.ErrNotFound):
		return ref, nil
	default:
		return "", err
	}
}

func printCommand(ctx context.Context, a *app.App, recs []events.Record, cmdErr error) error {
	if len(recs) > 0 {
		if _, err := a.Projector.CatchUp(ctx); err != nil {
			return fmt.Errorf("update read model: %w", err)
		}
	}
	if cmdErr != nil {
		if len(recs) > 0 && !viper.GetBool("json") {
			fmt.Println("Events appended before the failure:")
			_ = printRecords(recs)
		}
		return cmdErr
	}
	return printRecords(recs)
}

func printRecords(recs []events.Record) error {
	if viper.GetBool("json") {
		return printJSON(recs)
	}
	tw := newTable(table.Row{"Pos", "Aggregate", "ID", "Ver", "Type", "Actor", "Time"})
	for _, r := range recs {
		tw.AppendRow(table.Row{r.Position, r.AggregateType, r.AggregateID, r.Version, r.Type, r.ActorID, r.Time.Format(time.RFC3339)})
	}
	tw.Render()
	return nil
}

func printStatuses(items []domain.Status) {
	tw := newTable(table.Row{"#", "ID", "Name", "Color"})
	for i, s := range items {
		tw.AppendRow(table.Row{i + 1, s.ID, s.Name, s.Color})
	}
	tw.Render()
}

func printTasks(items []domain.Task, statuses []domain.Status) {
	names := make(map[string]string, len(statuses))
	for _, s := range statuses {
		names[s.ID] = s.Name
	}
	tw := newTable(table.Row{"ID", "Title", "Status", "Assignees"})
	for _, t := range items {
		status := t.StatusID
		if n, ok := names[t.StatusID]; ok {
			status = n
		}
		tw.AppendRow(table.Row{t.ID, t.Title, status, strings.Join(t.Assignees, ", ")})
	}
	tw.Render()
}

func printMembers(items []domain.Member) {
	tw := newTable(table.Row{"ID", "Username", "Name"})
	for _, m := range items {
		tw.AppendRow(table.Row{m.ID, m.Username, strings.Join([]string{m.FirstName, m.MiddleName, m.LastName}, " ")})
	}
	tw.Render()
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	return tw
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
