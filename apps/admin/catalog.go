package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cadence/academy/core/training"
)

func (cli *commandLine) catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the training catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import FILE",
		Short: "Create the modules and sections of a yaml, json or toml catalog file",
		Long: `Create the modules and sections listed under the "modules" key of FILE, all in one transaction:

  modules:
    - number: 1
      title: Foundations
      video_url: https://videos.example.com/1
      sections:
        - code: 1A
          position: 1
          title: Rhythm`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modules, err := readCatalog(args[0])
			if err != nil {
				return err
			}
			n, err := cli.trainingSvc.ImportCatalog(cmd.Context(), cli.db, cli.validate, modules)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d module(s)\n", n)
			return nil
		},
	})
	return cmd
}

func readCatalog(path string) ([]training.CatalogModule, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	var modules []training.CatalogModule
	if err := v.UnmarshalKey("modules", &modules); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	if len(modules) == 0 {
		return nil, fmt.Errorf("%s: no modules", path)
	}
	return modules, nil
}
