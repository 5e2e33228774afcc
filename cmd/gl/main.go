package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gigline/internal/app"
	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/listing"
	"gigline/internal/migrate"
	"gigline/internal/repo"
)

var rootCmd = &cobra.Command{
	Use:           "gl",
	Short:         "Gigline CLI",
	SilenceErrors: true,
	Long: `Gigline runs a small gig marketplace from your terminal.
How it works:
- Workspace: your .gigline directory with the database; settings live in gigline.yml.
- Activities: gigs posted by owners. A new activity starts IN_VALIDATION and only
  opens to the marketplace (NEW) after the owner's project manager validates it.
  Owners close it out as FINISHED or CLOSED.
- Engagements: one record per (activity, user) pair. Users apply, owners invite;
  each ends up ASSIGNED, DECLINED or REJECTED and stays as the record of what happened.
- Feedback: once an activity is FINISHED, the owner and assigned users rate each
  other with stars. A user's star rating is the average of what they received.
- Comments: anyone who can see an activity can discuss it, with threaded replies.
- Event log: diary of changes, view with 'gl log tail'. Notifications land in the
  outbox, view yours with 'gl notification list'.`,
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
		fmt.Fprintf(os.Stderr, "%s: %v\n", domain.ErrorCode(err), err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("GIGLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "acting user identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(feedbackCmd())
	rootCmd.AddCommand(commentCmd())
	rootCmd.AddCommand(techCmd())
	rootCmd.AddCommand(typeCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(notificationCmd())
}

func activityCmd() *cobra.Command {
	act := &cobra.Command{
		Use:   "activity",
		Short: "Manage activities",
		Long:  "Activities are the gigs. They flow IN_VALIDATION -> NEW -> FINISHED/CLOSED, or IN_VALIDATION -> REJECTED when the project manager turns them down.",
	}
	act.AddCommand(activityCreateCmd())
	act.AddCommand(activityShowCmd())
	act.AddCommand(activityListCmd())
	act.AddCommand(activityEditCmd())
	act.AddCommand(activityDeleteCmd())
	act.AddCommand(activityValidateCmd())
	act.AddCommand(activityRejectCmd())
	act.AddCommand(activityPendingCmd())
	act.AddCommand(activityMembersCmd())
	act.AddCommand(applyCmd())
	act.AddCommand(inviteCmd())
	act.AddCommand(acceptApplicantCmd())
	act.AddCommand(rejectApplicantCmd())
	act.AddCommand(acceptInvitationCmd())
	act.AddCommand(declineInvitationCmd())
	return act
}

func activityCreateCmd() *cobra.Command {
	var opts engine.ActivityCreateOptions
	var public bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Post a new activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("public") {
				opts.Public = &public
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, rc domain.RoleContext) error {
				a, err := e.CreateActivity(ctx, rc, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "activity id (optional, random UUID if omitted)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.ApplicationDeadline, "application-deadline", "", "application deadline (RFC3339)")
	cmd.Flags().StringVar(&opts.FinalDeadline, "final-deadline", "", "final deadline (RFC3339)")
	cmd.Flags().BoolVar(&public, "public", true, "visible on the marketplace")
	cmd.Flags().StringArrayVar(&opts.Technologies, "technology", []string{}, "technology id (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Types, "type", []string{}, "activity type id (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("application-deadline")
	_ = cmd.MarkFlagRequired("final-deadline")
	return cmd
}

func activityShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, rc domain.RoleContext) error {
				a, err := e.GetActivity(ctx, rc, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func activityListCmd() *cobra.Command {
	var f listing.ActivityFilter
	var sorts []string
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List activities visible to you",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, rc domain.RoleContext) error {
				if !cmd.Flags().Changed("page-size") && e.Config != nil {
					pageSize = e.Config.Listing.DefaultPageSize
				}
				var s listing.ActivitySort
				for _, spec := range sorts {
					field, dir, _ := strings.Cut(spec, ":")
					s.Set(field, dir)
				}
				result, err := e.ListActivities(ctx, rc, f, s, listing.Pagination{Page: page, PageSize: pageSize})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(result)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Owner", "Apply by", "Public"})
				for _, a := range result.Results {
					tw.AppendRow(table.Row{a.ID, a.Name, a.Status, a.OwnerID, a.ApplicationDeadline, a.Public})
				}
				tw.Render()
				fmt.Printf("page %d/%d, %d results\n", result.CurrentPage, result.NumPages, result.NumResults)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Name, "name", "", "name prefix filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.OwnerID, "owner", "", "owner filter")
	cmd.Flags().StringVar(&f.AssignedUserID, "assigned", "", "assigned user filter")
	cmd.Flags().StringArrayVar(&f.Technologies, "technology", []string{}, "technology filter (repeatable)")
	cmd.Flags().StringArrayVar(&f.Types, "type", []string{}, "activity type filter (repeatable)")
	cmd.Flags().StringArrayVar(&sorts, "sort", []string{}, "sort spec field:dir, e.g. name:asc (repeatable)")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", listing.DefaultPageSize, "page size (-1 for all)")
	return cmd
}

func activityEditCmd() *cobra.Command {
	var name, description, appDeadline, finDeadline, status string
	var public bool
	var technologies, types []string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts engine.ActivityEditOptions
			if cmd.Flags().Changed("name") {
				opts.Name = &name
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("application-deadline") {
				opts.ApplicationDeadline = &appDeadline
			}
			if cmd.Flags().Changed("final-deadline") {
				opts.FinalDeadline = &finDeadline
			}
			if cmd.Flags().Changed("status") {
				opts.Status = &status
			}
			if cmd.Flags().Changed("public") {
				opts.Public = &public
			}
			if cmd.Flags().Changed("technology") {
				opts.Technologies = technologies
			}
			if cmd.Flags().Changed("type") {
				opts.Types = types
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, rc domain.RoleContext) error {
				a, err := e.EditActivity(ctx, rc, args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&appDeadline, "application-deadline", "", "application deadline (RFC3339)")
	cmd.Flags().StringVar(&finDeadline, "final-deadline", "", "final deadline (RFC3339)")
	cmd.Flags().StringVar(&status, "status", "", "new status (FINISHED, CLOSED)")
	cmd.Flags().BoolVar(&public, "public", true, "visible on the marketplace")
	cmd.Flags().StringArrayVar(&technologies, "technology", []string{}, "technology id (repeatable, replaces the set)")
	cmd.Flags().StringArrayVar(&types, "type", []string{}, "activity type id (repeatable, replaces the set)")
	return cmd
}

func activityDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, rc domain.RoleContext) error {
				return e.DeleteActivity(ctx, rc, args[0])
			})
		},
	}
	return cmd
}

func activityValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <id>",
		Short: "Validate a submitted activity (PM or admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, rc domain.RoleContext) error {
				a, err := e.ValidateJob(ctx, rc, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func activityRejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a submitted activity (PM or admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, rc domain.RoleContext) error {
				a, err := e.RejectJob(ctx, rc, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func activityPendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List activities awaiting your validation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, rc domain.RoleContext) error {
				items, err := e.ListPendingValidation(ctx, rc)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func activityMembersCmd() *cobra.Command {
	var engagementType string
	var sorts []string
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "members <id>",
		Short: "List users engaged on an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := listing.EngagedUserFilter{EngagementType: -1}
			if engagementType != "" {
				t, ok := domain.EngagementTypeByName(strings.ToUpper(engagementType))
				if !ok {
					return fmt.Errorf("unknown engagement type %q", engagementType)
				}
				f.EngagementType = t
			}
			var s listing.UserSort
			for _, spec := range sorts {
				field, dir, _ := strings.Cut(spec, ":")
				s.Set(field, dir)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, rc domain.RoleContext) error {
				result, err := e.ListEngagedUsers(ctx, rc, args[0], f, s, listing.Pagination{Page: page, PageSize: pageSize})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(result)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"User", "Name", "Stars", "Engagement"})
				for _, m := range result.Results {
					tw.AppendRow(table.Row{m.User.ID, m.User.Name, fmt.Sprintf("%.1f", m.User.Stars), domain.EngagementTypeName(m.EngagementType)})
				}
				tw.Render()
				fmt.Printf("page %d/%d, %d results\n", result.CurrentPage, result.NumPages, result.NumResults)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&engagementType, "engagement", "", "filter by engagement type (INVITED, APPLIED, ASSIGNED, DECLINED, REJECTED)")
	cmd.Flags().StringArrayVar(&sorts, "sort", []string{}, "sort spec field:dir, e.g. stars:desc (repeatable)")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", listing.DefaultPageSize, "page size (-1 for all)")
	return cmd
}

func applyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <id>",
		Short: "Apply to an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, rc domain.RoleContext) error {
				eng, err := e.Apply(ctx, rc, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(eng)
			})
		},
	}
	return cmd
}

func inviteCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "invite <id>",
		Short: "Invite a user to an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, rc domain.RoleContext) error {
				eng, err := e.Invite(ctx, rc, args[0], user)
				if err != nil {
					return err
				}
				return printJSONOrTable(eng)
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id to invite")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func acceptApplicantCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "accept-applicant <id>",
		Short: "Assign an applicant to the activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, rc domain.RoleContext) error {
				eng, err := e.AcceptApplicant(ctx, rc, args[0], user)
				if err != nil {
					return err
				}
				return printJSONOrTable(eng)
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "applicant user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func rejectApplicantCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "reject-applicant <id>",
		Short: "Turn an applicant down",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, rc domain.RoleContext) error {
				eng, err := e.RejectApplicant(ctx, rc, args[0], user)
				if err != nil {
					return err
				}
				return printJSONOrTable(eng)
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "applicant user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func acceptInvitationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accept-invitation <id>",
		Short: "Accept your invitation to an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, rc domain.RoleContext) error {
				eng, err := e.AcceptInvitation(ctx, rc, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(eng)
			})
		},
	}
	return cmd
}

func declineInvitationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decline-invitation <id>",
		Short: "Decline your invitation to an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, rc domain.RoleContext) error {
				eng, err := e.DeclineInvitation(ctx, rc, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(eng)
			})
		},
	}
	return cmd
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(userCreateCmd())
	user.AddCommand(userListCmd())
	user.AddCommand(userShowCmd())
	user.AddCommand(userSetPMCmd())
	user.AddCommand(userGrantCmd())
	user.AddCommand(userRevokeCmd())
	return user
}

func userCreateCmd() *cobra.Command {
	var u domain.User
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if u.Name == "" {
					u.Name = u.ID
				}
				u.Roles = []string{domain.RoleUser}
				u.CreatedAt = nowRFC3339()
				if err := r.InsertUser(ctx, u); err != nil {
					return err
				}
				created, err := r.GetUser(ctx, u.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(created)
			})
		},
	}
	cmd.Flags().StringVar(&u.ID, "id", "", "user id")
	cmd.Flags().StringVar(&u.Name, "name", "", "display name")
	cmd.Flags().StringVar(&u.Email, "email", "", "email")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func userListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				users, err := r.ListUsers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Roles", "PM", "Stars"})
				for _, u := range users {
					pm := ""
					if u.ProjectManagerID != nil {
						pm = *u.ProjectManagerID
					}
					tw.AppendRow(table.Row{u.ID, u.Name, strings.Join(u.Roles, ","), pm, fmt.Sprintf("%.1f", u.Stars)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func userShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				u, err := r.GetUser(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	return cmd
}

func userSetPMCmd() *cobra.Command {
	var pm string
	cmd := &cobra.Command{
		Use:   "set-pm <id>",
		Short: "Assign a project manager to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				var pmPtr *string
				if pm != "" {
					pmPtr = &pm
				}
				return r.SetProjectManager(ctx, args[0], pmPtr)
			})
		},
	}
	cmd.Flags().StringVar(&pm, "pm", "", "project manager user id (empty clears)")
	return cmd
}

func userGrantCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "grant-role <id>",
		Short: "Grant a role to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.GrantRole(ctx, args[0], strings.ToUpper(role))
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role (USER, PM, ADMIN)")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func userRevokeCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "revoke-role <id>",
		Short: "Revoke a role from a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.RevokeRole(ctx, args[0], strings.ToUpper(role))
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role (USER, PM, ADMIN)")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func feedbackCmd() *cobra.Command {
	fb := &cobra.Command{
		Use:   "feedback",
		Short: "Rate people you worked with",
	}
	fb.AddCommand(feedbackGiveCmd())
	fb.AddCommand(feedbackListCmd())
	return fb
}

func feedbackGiveCmd() *cobra.Command {
	var activity, to, message string
	var stars int
	cmd := &cobra.Command{
		Use:   "give",
		Short: "Give feedback on a finished activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, rc domain.RoleContext) error {
				f, err := e.GiveFeedback(ctx, rc, activity, to, stars, message)
				if err != nil {
					return err
				}
				return printJSONOrTable(f)
			})
		},
	}
	cmd.Flags().StringVar(&activity, "activity", "", "activity id")
	cmd.Flags().StringVar(&to, "to", "", "user being rated")
	cmd.Flags().IntVar(&stars, "stars", 0, "stars, 1-5")
	cmd.Flags().StringVar(&message, "message", "", "message")
	_ = cmd.MarkFlagRequired("activity")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("stars")
	return cmd
}

func feedbackListCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List feedback received by a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				user = viper.GetString("actor-id")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListFeedbackForUser(ctx, user)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id (defaults to you)")
	return cmd
}

func commentCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "comment",
		Short: "Discuss activities",
		Long:  "Comments live on an activity and follow its access rules. Replies reference a parent comment; deleting a comment blanks it but keeps the thread under it.",
	}
	c.AddCommand(commentAddCmd())
	c.AddCommand(commentListCmd())
	c.AddCommand(commentEditCmd())
	c.AddCommand(commentDeleteCmd())
	return c
}

func commentAddCmd() *cobra.Command {
	var activity, body string
	var parent int64
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Comment on an activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			var parentID *int64
			if cmd.Flags().Changed("parent") {
				parentID = &parent
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, rc domain.RoleContext) error {
				c, err := e.AddComment(ctx, rc, activity, body, parentID)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&activity, "activity", "", "activity id")
	cmd.Flags().StringVar(&body, "body", "", "comment text")
	cmd.Flags().Int64Var(&parent, "parent", 0, "comment id to reply to")
	_ = cmd.MarkFlagRequired("activity")
	_ = cmd.MarkFlagRequired("body")
	return cmd
}

func commentListCmd() *cobra.Command {
	var activity string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an activity's comments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, rc domain.RoleContext) error {
				items, err := e.ListComments(ctx, rc, activity)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&activity, "activity", "", "activity id")
	_ = cmd.MarkFlagRequired("activity")
	return cmd
}

func commentEditCmd() *cobra.Command {
	var body string
	cmd := &cobra.Command{
		Use:   "edit <comment-id>",
		Short: "Rewrite your comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("comment id: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, rc domain.RoleContext) error {
				c, err := e.EditComment(ctx, rc, id, body)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&body, "body", "", "comment text")
	_ = cmd.MarkFlagRequired("body")
	return cmd
}

func commentDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <comment-id>",
		Short: "Delete your comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("comment id: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, rc domain.RoleContext) error {
				return e.DeleteComment(ctx, rc, id)
			})
		},
	}
}

func techCmd() *cobra.Command {
	tech := &cobra.Command{Use: "tech", Short: "Technology catalog"}
	tech.AddCommand(techAddCmd())
	tech.AddCommand(techListCmd())
	return tech
}

func techAddCmd() *cobra.Command {
	var t domain.Technology
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or rename a technology",
		RunE: func(cmd *cobra.Command, args []string) error {
			if t.Name == "" {
				t.Name = t.ID
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.UpsertTechnology(ctx, t); err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&t.ID, "id", "", "technology id")
	cmd.Flags().StringVar(&t.Name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func techListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List technologies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListTechnologies(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func typeCmd() *cobra.Command {
	typ := &cobra.Command{Use: "type", Short: "Activity type catalog"}
	typ.AddCommand(typeAddCmd())
	typ.AddCommand(typeListCmd())
	return typ
}

func typeAddCmd() *cobra.Command {
	var t domain.ActivityType
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or rename an activity type",
		RunE: func(cmd *cobra.Command, args []string) error {
			if t.Name == "" {
				t.Name = t.ID
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.UpsertActivityType(ctx, t); err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&t.ID, "id", "", "activity type id")
	cmd.Flags().StringVar(&t.Name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func typeListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List activity types",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListActivityTypes(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config is the rulebook in gigline.yml: marketplace name, listing defaults, and the seed catalogs of technologies and activity types.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default gigline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(name)), 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "gigline", "marketplace name")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, rc domain.RoleContext) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: postings, validations, engagements, feedback.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.ListEvents(ctx, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

func notificationCmd() *cobra.Command {
	note := &cobra.Command{Use: "notification", Short: "Notification outbox"}
	note.AddCommand(notificationListCmd())
	return note
}

func notificationListCmd() *cobra.Command {
	var n int
	var user string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				user = viper.GetString("actor-id")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListNotifications(ctx, user, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of notifications")
	cmd.Flags().StringVar(&user, "user", "", "user id (defaults to you)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine, domain.RoleContext) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg = config.Default("gigline")
	}
	r := repo.Repo{DB: conn}
	if err := app.SeedCatalog(ctx, r, cfg); err != nil {
		return err
	}
	rc, err := app.ResolveActor(ctx, r, viper.GetString("actor-id"))
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e, rc)
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

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
