package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bitfantasy/nimo-repair/internal/middleware"
	"github.com/bitfantasy/nimo-repair/internal/repair/app"
	"github.com/bitfantasy/nimo-repair/internal/repair/service"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), true, func(a *app.App) error {
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		})
	},
}

var renewalsCmd = &cobra.Command{
	Use:   "renewals",
	Short: "Software renewal reminders",
}

var sweepDate string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Send the renewal reminders due today",
	Long: `Sweep selects the active orders whose renewal date is exactly
repair.renewal_notice_days ahead, mails each customer once and opens a
renewal lead. Running it twice on the same day sends nothing new.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		day := time.Now()
		if sweepDate != "" {
			d, err := time.ParseInLocation("2006-01-02", sweepDate, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --date %q: %w", sweepDate, err)
			}
			day = d
		}
		return withApp(cmd.Context(), false, func(a *app.App) error {
			res, err := a.Services.Renewal.Sweep(cmd.Context(), day)
			if err != nil {
				return err
			}
			if res.Skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "Sweep for %s already running or done.\n", res.Day)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d due, %d mailed, %d leads, %d failed\n",
				res.Day, res.Due, res.Sent, res.Leads, res.Failed)
			return nil
		})
	},
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Repair order utilities",
}

var (
	exportOut      string
	exportState    string
	exportKeyword  string
	exportArchived bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export repair orders to an Excel workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), false, func(a *app.App) error {
			f, filename, err := a.Services.Export.ExportOrders(cmd.Context(), service.OrderListRequest{
				StateID:  exportState,
				Keyword:  exportKeyword,
				Archived: exportArchived,
			})
			if err != nil {
				return err
			}
			defer f.Close()
			if exportOut == "" {
				exportOut = filename
			}
			if err := f.SaveAs(exportOut); err != nil {
				return fmt.Errorf("save %s: %w", exportOut, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", exportOut)
			return nil
		})
	},
}

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Inventory utilities",
}

var importAs string

var importCmd = &cobra.Command{
	Use:   "import <file.xlsx>",
	Short: "Check in inventory items from an Excel workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer file.Close()
		return withApp(cmd.Context(), false, func(a *app.App) error {
			res, err := a.Services.Inventory.Import(cmd.Context(), file, service.Actor{Name: importAs})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d items\n", res.Created)
			for _, e := range res.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "row %d: %s\n", e.Row, e.Message)
			}
			return nil
		})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Staff access tokens",
}

var (
	tokenUser  string
	tokenName  string
	tokenEmail string
	tokenTTL   time.Duration
)

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue an API token for a technician",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.JWT.Secret == "" {
			return fmt.Errorf("JWT secret is not configured (JWT_SECRET)")
		}
		ttl := tokenTTL
		if ttl <= 0 {
			ttl = cfg.JWT.AccessTokenExpire
		}
		token, err := middleware.IssueToken(cfg.JWT.Secret, cfg.JWT.Issuer, tokenUser, tokenName, tokenEmail, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, renewalsCmd, ordersCmd, inventoryCmd, tokenCmd)

	renewalsCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepDate, "date", "", "Run the sweep as of this day (YYYY-MM-DD)")

	ordersCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default repairs_<date>.xlsx)")
	exportCmd.Flags().StringVar(&exportState, "state", "", "Only orders in this state id")
	exportCmd.Flags().StringVar(&exportKeyword, "keyword", "", "Number, customer or serial filter")
	exportCmd.Flags().BoolVar(&exportArchived, "archived", false, "Export archived orders instead of active ones")

	inventoryCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importAs, "as", "repairctl", "Name recorded as the person checking in")

	tokenCmd.AddCommand(tokenIssueCmd)
	tokenIssueCmd.Flags().StringVar(&tokenUser, "user", "", "Technician id")
	tokenIssueCmd.Flags().StringVar(&tokenName, "name", "", "Technician name")
	tokenIssueCmd.Flags().StringVar(&tokenEmail, "email", "", "Technician email")
	tokenIssueCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default jwt.access_token_expire)")
	_ = tokenIssueCmd.MarkFlagRequired("user")
}
