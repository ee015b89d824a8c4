// File: cmd/hioload-tcp/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/momentics/hioload-tcp/logging"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "hioload-tcp",
	Short: "deadline-bounded raw TCP record transport",
	Long: fmt.Sprintf(`hioload-tcp (v%s)

Non-blocking TCP client/server pair moving fixed-size records under
caller-supplied deadlines. Every flag can also be set through an
environment variable prefixed HIOLOAD_TCP (e.g. HIOLOAD_TCP_LOG_LEVEL=debug),
optionally loaded from .env files.`, version),
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hioload-tcp v%s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(versionCmd)

	key := "log-level"
	rootCmd.PersistentFlags().String(key, "info", "level at which logs are written (debug, info, warn, error, critical)")
}

// initConfig loads env files and wires matching environment variables
// into viper.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("hioload_tcp")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// processConfig binds the command's flags into viper and applies the
// logging level. Subcommands install it as PreRunE.
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return logging.Setup(viper.GetString("log-level"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
