package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/cadence/academy/core/user"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var email string
	var link bool
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Set a user's password, or print a password reset link with --link",
		RunE: func(cmd *cobra.Command, args []string) error {
			usr, err := cli.usrSvc.GetByEmail(cmd.Context(), email)
			if err != nil {
				return err
			}

			if link {
				token, err := cli.usrSvc.MakePasswordResetToken(usr)
				if err != nil {
					return err
				}
				q := make(url.Values)
				q.Set("uid", user.EncodeUID(usr))
				q.Set("token", token)
				fmt.Fprintf(cmd.OutOrStdout(), "%s/password-reset?%s\n", cli.conf.FrontendBaseURL, q.Encode())
				return nil
			}

			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			if err = usr.SetPassword(pwd); err != nil {
				return err
			}
			_, err = cli.usrRepo.UpdateUser(cmd.Context(), usr)
			return err
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "the user's email (required)")
	cmd.Flags().BoolVar(&link, "link", false, "print a reset link instead of prompting for the password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
