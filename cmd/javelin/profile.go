package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazu/javelin/manifest"
	"github.com/chazu/javelin/profile"
)

var profileLimit int

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the hottest methods recorded in the profile database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mf, err := manifest.FindAndLoad(configDir)
		if err != nil {
			return err
		}
		store, err := profile.Open(mf.Profile.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		hot, err := store.HotMethods(profileLimit)
		if err != nil {
			return err
		}
		if len(hot) == 0 {
			fmt.Println("no profile data")
			return nil
		}
		for _, h := range hot {
			fmt.Printf("%10d  %s\n", h.BackEdges, h.Method)
		}
		return nil
	},
}

func init() {
	profileCmd.Flags().IntVarP(&profileLimit, "limit", "n", 20, "number of methods to show")
	rootCmd.AddCommand(profileCmd)
}
