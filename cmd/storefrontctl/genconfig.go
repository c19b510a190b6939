package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/ieraasyl/Storefront/pkg/config"
	"github.com/spf13/cobra"
)

var genconfigOut string

var genconfigCmd = &cobra.Command{
	Use:   "genconfig",
	Short: "Generate js/config.js from the environment",
	Long: `Reads SUPABASE_URL, SUPABASE_KEY and GOOGLE_CLIENT_ID and writes a script
that exposes them to the browser as window.ENV. Unset variables are replaced
by placeholders.

Every value in the generated file is public. Only ever use the Supabase anon
key here.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cc := config.ClientConfigFromEnv()
		if err := config.WriteClientScriptFile(genconfigOut, cc); err != nil {
			return err
		}
		printClientStatus(cmd.OutOrStdout(), genconfigOut, cc)
		return nil
	},
}

func init() {
	genconfigCmd.Flags().StringVarP(&genconfigOut, "out", "o", "js/config.js", "output file")
	rootCmd.AddCommand(genconfigCmd)
}

func printClientStatus(w io.Writer, path string, cc config.ClientConfig) {
	fmt.Fprintf(w, "Configuration file generated at: %s\n", path)
	fmt.Fprintln(w, "Environment variables detected:")

	status := cc.Status()
	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		state := "not set"
		if status[name] {
			state = "set"
		}
		fmt.Fprintf(w, "- %s: %s\n", name, state)
	}
}
