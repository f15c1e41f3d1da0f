package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"transcript-tool/internal/models"
	"transcript-tool/internal/services"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage inference API keys",
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys and their health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		core, closeFn, err := openCore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()
		printKeys(cmd.OutOrStdout(), core.Credentials.Views())
		return nil
	},
}

var keysAddCmd = &cobra.Command{
	Use:   "add <key>",
	Short: "Register an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		core, closeFn, err := openCore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		cred, created, err := core.Credentials.Add(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !created {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already registered (%s)\n", services.MaskCredential(cred.Value), cred.Status)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s added %s\n", doneStyle.Render("✓"), services.MaskCredential(cred.Value))
		return nil
	},
}

var keysResetCmd = &cobra.Command{
	Use:   "reset <fingerprint>",
	Short: "Reactivate an expired API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		core, closeFn, err := openCore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		if err := core.Credentials.Reset(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s reset %s\n", doneStyle.Render("✓"), args[0])
		return nil
	},
}

var keysRemoveCmd = &cobra.Command{
	Use:   "remove <fingerprint>",
	Short: "Delete an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		core, closeFn, err := openCore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		if err := core.Credentials.Remove(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s removed %s\n", doneStyle.Render("✓"), args[0])
		return nil
	},
}

var keysProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test every non-expired API key with a cheap call",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		core, closeFn, err := openCore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		out := cmd.OutOrStdout()
		candidates := core.KeyPool.ListCandidates()
		if len(candidates) == 0 {
			fmt.Fprintln(out, warnStyle.Render("no usable API keys"))
			return nil
		}
		for _, c := range candidates {
			ok, detail := core.KeyPool.Probe(cmd.Context(), c)
			if ok {
				fmt.Fprintf(out, "%s %s\n", doneStyle.Render("✓"), services.MaskCredential(c.Value))
				continue
			}
			fmt.Fprintf(out, "%s %s %s\n", errStyle.Render("✗"), services.MaskCredential(c.Value), mutedStyle.Render(truncate(detail, 80)))
		}
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysListCmd, keysAddCmd, keysResetCmd, keysRemoveCmd, keysProbeCmd)
}

func printKeys(w io.Writer, views []models.CredentialView) {
	if len(views) == 0 {
		fmt.Fprintln(w, warnStyle.Render("no API keys registered"))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-18s %-20s %-8s %6s  %s", "FINGERPRINT", "KEY", "STATUS", "ERRORS", "LAST USED")))
	for _, v := range views {
		lastUsed := "never"
		if v.LastUsed != nil {
			lastUsed = v.LastUsed.Format(time.DateTime)
		}
		fmt.Fprintf(w, "%-18s %-20s %-8s %6d  %s\n", v.Fingerprint, v.Masked, statusStyle(v.Status).Render(fmt.Sprintf("%-8s", v.Status)), v.ErrorCount, lastUsed)
		if v.LastError != nil && v.Status == models.CredentialExpired {
			fmt.Fprintf(w, "  %s\n", mutedStyle.Render(truncate(*v.LastError, 100)))
		}
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
