package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newTokenCommand 為既有帳戶簽發 bearer token (測試 / 維運用)
func newTokenCommand(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "token <account_number>",
		Short: "Issue a bearer token for an existing account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			token, err := issueToken(cmd, a, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func issueToken(cmd *cobra.Command, a *app, accountNumber string) (string, error) {
	issuer, err := a.issuer()
	if err != nil {
		return "", err
	}
	// 確認帳戶存在，避免簽出無效帳號的 token
	if _, err := a.core.LookupRecipient(cmd.Context(), accountNumber); err != nil {
		return "", fmt.Errorf("lookup account %s: %w", accountNumber, err)
	}
	return issuer.Issue(accountNumber)
}
