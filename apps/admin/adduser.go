package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var name, email, role string
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the password and role of an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			usr, created, err := cli.addUser(cmd, name, email, role, pwd)
			if err != nil {
				return err
			}
			verb := "updated"
			if created {
				verb = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", verb, usr.Email, usr.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "the user's name")
	cmd.Flags().StringVar(&email, "email", "", "the user's email (required)")
	cmd.Flags().StringVar(&role, "role", user.RoleTrainee, "one of admin, instructor, provider, trainee, facilitator, patient")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(cmd *cobra.Command, name, email, role, pwd string) (user.User, bool, error) {
	ctx := cmd.Context()
	email = core.CleanString(email, true /* lower */)
	if err := cli.validate.Var(role, "omitempty,role"); err != nil {
		return user.User{}, false, err
	}

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if role != "" {
			usr.Role = role
		}
		if err = usr.SetPassword(pwd); err != nil {
			return user.User{}, false, err
		}
		usr.Status = user.StatusActive
		usr, err = cli.usrRepo.UpdateUser(ctx, usr)
		return usr, false, err
	case !core.IsNotFound(err):
		return user.User{}, false, err
	}

	if name == "" {
		name = email
	}
	nu := user.NewUser{
		Name:            name,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
		Role:            role,
		Status:          user.StatusActive,
	}
	if err = nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return user.User{}, false, err
	}
	usr, err = cli.usrSvc.Create(ctx, nu)
	return usr, true, err
}
