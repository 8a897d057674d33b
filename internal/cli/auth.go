package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"timecapsule/pkg/models"
)

func (a *app) signCmd() *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "sign <email>",
		Short: "Issue a user signature with the backend key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.client.Sign(cmd.Context(), a.cfg.BackendSession(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "user:      %s\n", resp.UserID)
			fmt.Fprintf(out, "signature: %s\n", resp.Signature)
			if !save {
				return nil
			}
			a.cfg.UserID = resp.UserID
			a.cfg.Signature = resp.Signature
			if err := SaveToFile(a.cfg, a.cfgPath); err != nil {
				return err
			}
			fmt.Fprintf(out, "saved to %s\n", a.cfgPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "store the user and signature in the config file")
	return cmd
}

func (a *app) registerCmd() *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a user so they can be added as a member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := a.client.RegisterUser(cmd.Context(), a.cfg.BackendSession(), models.RegisterUserRequest{Name: name, Email: email})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s <%s>\n", u.Name, u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
