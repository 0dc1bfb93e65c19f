/*
Copyright © 2022 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"log"
	"strings"

	devConfig "github.com/mkhalif/rolodex/dev/config"
	"github.com/mkhalif/rolodex/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start a rolodex server",
	Long:  `The rolodex server houses the contacts API & the upcoming-birthdays view`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start(serverConfig(), isDevEnv)
	},
}

var serverConfigFile string

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverConfigFile, "sconfig", "", "Config for server")
}

func serverConfig() *viper.Viper {
	config := viper.New()
	config.AutomaticEnv() // read in environment variables that match

	// Dev mode ships with an embedded config, no file required
	if isDevEnv && serverConfigFile == "" {
		config.SetConfigType("yaml")
		if err := config.ReadConfig(strings.NewReader(devConfig.SERVER_YML)); err != nil {
			log.Panicf("error reading embedded dev config: %v", err)
		}

		return config
	}

	config.SetConfigFile(serverConfigFile)

	// If a config file is found, read it in.
	if err := config.ReadInConfig(); err != nil {
		log.Panicf("error reading server config file: %v", err)
	}

	return config
}
