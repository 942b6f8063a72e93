package commands

import (
	"github.com/spf13/cobra"

	"github.com/JoeShih716/go-bank-ledger/internal/config"
)

// NewRootCommand 建立 CLI 根指令並註冊所有子指令
func NewRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "core",
		Short: "Bank account ledger: deposits, transfers and balance reports",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to config.yaml")

	load := func() (*app, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		return newApp(cfg)
	}

	rootCmd.AddCommand(
		newServeCommand(load),
		newMigrateCommand(load),
		newAccountCommand(load),
		newTokenCommand(load),
	)
	return rootCmd
}

type loader func() (*app, error)
