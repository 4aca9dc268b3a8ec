package main

import (
	"fmt"

	"github.com/John-Robertt/subforge/internal/model"
	"github.com/John-Robertt/subforge/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the user registry",
	}

	var u model.User
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a user and print its subscription path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := &store.UserRegistry{Store: store.NewFileStore(a.cfg.Storage.Dir)}
			saved, err := reg.Add(u)
			if err != nil {
				return err
			}
			a.log.Info("user added", zap.String("id", saved.ID))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "id:    %s\ntoken: %s\npath:  /sub/%s\n", saved.ID, saved.Token, saved.Token)
			return err
		},
	}
	add.Flags().StringVar(&u.ID, "id", "", "user id ([A-Za-z0-9_-], max 64)")
	add.Flags().StringVar(&u.Name, "name", "", "display name (download file name)")
	add.Flags().StringVar(&u.Token, "token", "", "subscription token (default: random uuid)")
	add.Flags().StringVar(&u.SubscriptionURL, "subscription", "", "upstream subscription URL")
	add.Flags().StringVar(&u.NamingTemplate, "naming", "", "per-user naming template")
	_ = add.MarkFlagRequired("id")

	cmd.AddCommand(add)
	return cmd
}
