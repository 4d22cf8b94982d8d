package cli

import (
	"context"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"siteman/internal/cmdutil"
)

func newSecretsCmd(app *App) *cobra.Command {
	var repo struct {
		owner string
		name  string
	}

	cmd := &cobra.Command{
		Use:   "secrets <command>",
		Short: "Manage repository deploy secrets",
	}
	cmd.PersistentFlags().StringVar(&repo.owner, "owner", "", "Repository owner")
	cmd.PersistentFlags().StringVar(&repo.name, "repo", "", "Repository name")
	_ = cmd.MarkPersistentFlagRequired("owner")
	_ = cmd.MarkPersistentFlagRequired("repo")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the repository's secrets",
		Run: func(cmd *cobra.Command, args []string) {
			cmdutil.StartLoading("Working...")
			defer cmdutil.StopLoading()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			secrets, err := app.github().ListSecrets(ctx, repo.owner, repo.name)
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}
			cmdutil.StopLoading()

			tw := table.NewWriter()
			tw.AppendHeader(table.Row{"Name", "Updated"})
			for _, s := range secrets {
				tw.AppendRow(table.Row{s.Name, s.UpdatedAt.Format("02-01-2006")})
			}
			cmdutil.Print("")
			cmdutil.Print(tw.Render())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <name>",
		Short: "Set a secret (value is prompted, never passed on the command line)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			prompt := promptui.Prompt{Label: "Value", Mask: '*'}
			value, err := prompt.Run()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := app.github().PutSecret(ctx, repo.owner, repo.name, args[0], value); err != nil {
				cmdutil.PrintE(err.Error())
				return
			}
			cmdutil.PrintS("Secret " + args[0] + " set")
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := app.github().DeleteSecret(ctx, repo.owner, repo.name, args[0]); err != nil {
				cmdutil.PrintE(err.Error())
				return
			}
			cmdutil.PrintS("Secret " + args[0] + " deleted")
		},
	})

	return cmd
}
