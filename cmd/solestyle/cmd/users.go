package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/SoleStyle/solestyle/internal/domain/user"
)

var usersQuery string

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspect the user directory",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			var users []user.User
			if usersQuery != "" {
				users = a.users.SearchUsers(ctx, usersQuery)
			} else {
				users = a.users.GetAllUsers(ctx)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EMAIL\tNAME\tREGISTERED\tLOGINS\tACTIVE")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\n", u.Email, u.Name, u.RegistrationDate.Format(time.DateOnly), u.LoginCount, u.IsActive)
			}
			return tw.Flush()
		})
	},
}

var usersStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show user directory statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			s := a.users.GetUserStats(ctx)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total users:         %d\n", s.TotalUsers)
			fmt.Fprintf(out, "Active users:        %d\n", s.ActiveUsers)
			fmt.Fprintf(out, "New this week:       %d\n", s.NewUsersThisWeek)
			fmt.Fprintf(out, "New this month:      %d\n", s.NewUsersThisMonth)
			fmt.Fprintf(out, "With orders:         %d\n", s.UsersWithOrders)
			fmt.Fprintf(out, "Average login count: %.1f\n", s.AverageLoginCount)
			return nil
		})
	},
}

var usersSetPasswordCmd = &cobra.Command{
	Use:   "set-password <email> <password>",
	Short: "Set a user's password",
	Long: `Set a user's password. Imported directories carry no password hashes,
so their users need one before they can log in.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			if err := a.users.SetPassword(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password set for %s\n", args[0])
			return nil
		})
	},
}

func init() {
	usersListCmd.Flags().StringVarP(&usersQuery, "query", "q", "", "filter by name or email")
	usersCmd.AddCommand(usersListCmd, usersStatsCmd, usersSetPasswordCmd)
	rootCmd.AddCommand(usersCmd)
}
