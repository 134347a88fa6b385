package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"rogerbox/internal/events"
	"rogerbox/internal/gateway/wompi"
	"rogerbox/internal/infra"
	"rogerbox/internal/repositories"
	"rogerbox/internal/services"
)

func signCmd(app *cliApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the integrity signature for a reference and amount",
		RunE: func(cmd *cobra.Command, args []string) error {
			reference, _ := cmd.Flags().GetString("reference")
			rawAmount, _ := cmd.Flags().GetString("amount")
			currency, _ := cmd.Flags().GetString("currency")

			amount, err := decimal.NewFromString(rawAmount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", rawAmount, err)
			}

			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			signer, err := wompi.NewSigner(cfg.Wompi.IntegritySecret)
			if err != nil {
				return err
			}
			if currency == "" {
				currency = cfg.Payments.Currency
			}

			sig, err := signer.Sign(reference, wompi.AmountInCents(amount), strings.ToUpper(currency))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sig)
			return nil
		},
	}

	cmd.Flags().StringP("reference", "r", "", "Order reference")
	cmd.Flags().StringP("amount", "a", "", "Amount in major units, e.g. 50000.00")
	cmd.Flags().StringP("currency", "c", "", "Currency code (defaults to PAYMENTS_CURRENCY)")
	_ = cmd.MarkFlagRequired("reference")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func replayCmd(app *cliApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run reconciliation from the stored webhook payload of an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			reference, _ := cmd.Flags().GetString("reference")

			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			verifier, err := wompi.NewWebhookVerifier(cfg.Wompi.EventsSecret)
			if err != nil {
				return err
			}
			db, err := app.openDB(cfg, app.logger)
			if err != nil {
				return err
			}
			defer infra.ClosePostgresql(db, app.logger)

			orders := repositories.NewOrderRepository(db)
			gatewayTxs := repositories.NewGatewayTransactionRepository(db)
			courses := repositories.NewCourseRepository(db)
			// No catalog cache lives in this process, so nothing to invalidate.
			reconciler := services.NewReconciler(db, orders, gatewayTxs,
				repositories.NewCoursePurchaseRepository(db), courses, events.NoopPublisher{}, nil, app.logger)
			deliveries := repositories.NewWebhookEventRepository(db)
			webhooks, err := services.NewWebhookService(verifier, reconciler, deliveries, gatewayTxs, app.logger)
			if err != nil {
				return err
			}

			res, err := webhooks.Replay(cmd.Context(), reference)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reference=%s status=%s previous=%s transitioned=%t entitlement_created=%t amount_mismatch=%t\n",
				reference, res.Status, res.PreviousStatus, res.Transitioned, res.EntitlementCreated, res.AmountMismatch)

			history, err := deliveries.ListByReference(cmd.Context(), reference)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RECEIVED AT\tEVENT\tSTATUS\tERROR")
			for _, d := range history {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ReceivedAt.Format(time.RFC3339), d.Event, d.Status, d.ProcessingError)
			}
			fmt.Fprintf(w, "deliveries=%d\n", len(history))
			return w.Flush()
		},
	}

	cmd.Flags().StringP("reference", "r", "", "Order reference")
	_ = cmd.MarkFlagRequired("reference")

	return cmd
}

func expiredCmd(app *cliApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expired",
		Short: "List pending orders whose checkout window has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			db, err := app.openDB(cfg, app.logger)
			if err != nil {
				return err
			}
			defer infra.ClosePostgresql(db, app.logger)

			orders, err := repositories.NewOrderRepository(db).ListExpiredPending(cmd.Context(), time.Now().UTC(), limit)
			if err != nil {
				return err
			}
			if len(orders) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no expired pending orders")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "REFERENCE\tAMOUNT\tEMAIL\tEXPIRED AT")
			for _, o := range orders {
				fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\n",
					o.Reference, o.Amount.StringFixed(2), o.Currency, o.CustomerEmail, o.ExpiresAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntP("limit", "n", 100, "Maximum orders to list")

	return cmd
}

func transactionCmd(app *cliApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transaction",
		Short: "Fetch a transaction from the payment gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")

			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			client := wompi.NewClient(cfg.GatewayConfig(), app.logger)
			tx, err := client.GetTransaction(cmd.Context(), id)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "id\t%s\n", tx.ID)
			fmt.Fprintf(w, "reference\t%s\n", tx.Reference)
			fmt.Fprintf(w, "status\t%s\n", tx.Status)
			fmt.Fprintf(w, "message\t%s\n", tx.StatusMessage)
			fmt.Fprintf(w, "method\t%s\n", tx.PaymentMethodType)
			fmt.Fprintf(w, "amount\t%d %s\n", tx.AmountInCents, tx.Currency)
			return w.Flush()
		},
	}

	cmd.Flags().String("id", "", "Gateway transaction id")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}
