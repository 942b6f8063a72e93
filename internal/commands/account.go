package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

func newAccountCommand(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Open or close ledger accounts",
	}
	cmd.AddCommand(newAccountOpenCommand(load), newAccountCloseCommand(load))
	return cmd
}

func newAccountOpenCommand(load loader) *cobra.Command {
	var req usecase.OpenAccountRequest

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open an account with a zero balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			account, err := a.core.OpenAccount(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("open account: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "opened account %s (%s), balance %s\n",
				account.Number, account.HolderName, domain.FormatAmount(account.Balance))
			return nil
		},
	}

	cmd.Flags().StringVar(&req.AccountNumber, "number", "", "account number, 1-20 digits (required)")
	cmd.Flags().StringVar(&req.HolderName, "name", "", "account holder name")
	cmd.Flags().StringVar(&req.Pin, "pin", "", "transaction pin, 4-6 digits (required)")
	_ = cmd.MarkFlagRequired("number")
	_ = cmd.MarkFlagRequired("pin")
	return cmd
}

func newAccountCloseCommand(load loader) *cobra.Command {
	var number string

	cmd := &cobra.Command{
		Use:   "close",
		Short: "Delete an account and every transaction it took part in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.core.CloseAccount(cmd.Context(), number); err != nil {
				return fmt.Errorf("close account: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "closed account %s\n", number)
			return nil
		},
	}

	cmd.Flags().StringVar(&number, "number", "", "account number (required)")
	_ = cmd.MarkFlagRequired("number")
	return cmd
}
