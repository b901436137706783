// Copyright 2025 The Chorus Authors
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/viper"
)

func readConfig(configFile *string) error {
	required_properties := []string{"auth.username", "auth.token", "server.host"}

	if configFile != nil && *configFile != "" {
		// use custom config file
		viper.SetConfigFile(*configFile)
	} else {
		// lookup default dirs
		viper.SetConfigName("chorus")
		viper.SetConfigType("toml")
		viper.AddConfigPath("$HOME/.config/chorus")
		viper.AddConfigPath(".")
	}

	// read it
	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("Config file error: %s\n", err)
	}

	// validate
	for _, prop := range required_properties {
		if !viper.IsSet(prop) {
			return fmt.Errorf("Config property %s is required\n", prop)
		}
	}

	return nil
}

// parseConfig takes the first non-flag argument from flags and parses
// it into the viper config, so
// `chorus user:token@https://music.example` works without a file.
func parseConfig() {
	if u, e := url.Parse(flag.Arg(0)); e == nil {
		// If credentials were provided
		if len(u.User.Username()) > 0 {
			viper.Set("auth.username", u.User.Username())
			// If the token wasn't provided, the program will fail as normal
			if p, s := u.User.Password(); s {
				viper.Set("auth.token", p)
			}
		}
		// Blank out the credentials so we can use the URL formatting
		u.User = nil
		viper.Set("server.host", u.String())
	} else {
		fmt.Printf("Invalid server format; must be a valid URL!")
		fmt.Printf("Usage: %s <args> [http[s]://[user:token@]server:port]\n", os.Args[0])
		osExit(1)
	}
}
