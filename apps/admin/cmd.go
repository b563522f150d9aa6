package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cadence/academy/core"
	"github.com/cadence/academy/core/training"
	"github.com/cadence/academy/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errEmptyPassword = errors.New("password cannot be empty")
)

type commandLine struct {
	conf        *core.Config
	sqlDB       *sql.DB // migrations only
	db          core.DB
	validate    *validator.Validate
	usrRepo     user.Repository
	usrSvc      *user.Service
	trainingSvc *training.Service
	migrator    *training.Migrator
	out         io.Writer // stdout when nil
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Cadence Academy administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if cli.out != nil {
		root.SetOut(cli.out)
	}
	root.AddCommand(
		cli.migrateCmd(),
		cli.addUserCmd(),
		cli.resetPasswordCmd(),
		cli.progressCmd(),
		cli.catalogCmd(),
	)
	return root
}

func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	root.SetArgs(args)
	return root.Execute()
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errEmptyPassword
	}
	return string(pwd), nil
}
