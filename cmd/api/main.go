package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:          "salon-loyalty-api",
		Short:        "Salon loyalty API - check-in codes, points and rewards",
		Version:      Version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (YAML or JSON)")

	rootCmd.AddCommand(serveCmd(&configFile))
	rootCmd.AddCommand(initBusinessCmd(&configFile))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
