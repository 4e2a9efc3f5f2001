package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SoleStyle/solestyle/internal/domain/user"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Generate an argon2id hash for the admin password",
	Long: `Generate an argon2id hash for use in auth.admin_password_hash.

With the hash configured, the admin API accepts remote requests that send
the password via HTTP basic auth.

Example:
  solestyle hash-password "correct horse battery staple"
  # Output: $argon2id$v=19$m=48128,t=1,p=1$...

Security note: The password will appear in shell history.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := user.NewPasswordHasher(user.DefaultPasswordParams()).Hash(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}
