// Package cli implements the cmd/httpd-server reference binary's command
// tree: spf13/cobra for the commands and flags, spf13/viper for layered
// configuration (flags, HTTPD_-prefixed environment variables, and an
// optional config file), grounded in IYouKnow-Atlas-Storage's
// internal/cli package.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "httpd-server",
	Short: "Embeddable HTTP/WebDAV server — reference binary",
	Long:  "A standalone binary exercising the embeddable HTTP core and WebDAV server library end to end.",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.httpd-server.yaml)")

	viper.SetEnvPrefix("HTTPD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".httpd-server")
	}
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}
}
