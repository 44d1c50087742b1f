package main

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var geocodeNoCache bool

var geocodeCmd = &cobra.Command{
	Use:   "geocode <lat> <lng>",
	Short: "Reverse geocode a coordinate",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return eris.Wrapf(err, "parse lat %q", args[0])
		}
		lng, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return eris.Wrapf(err, "parse lng %q", args[1])
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		client := env.Geocoder
		if geocodeNoCache {
			client = newUncachedGeocoder()
		}

		res, err := client.ReverseGeocode(cmd.Context(), lat, lng)
		if err != nil {
			return err
		}
		if !res.Matched {
			fmt.Println("no address found")
			return nil
		}
		fmt.Printf("%s\t(%s)\n", res.Address, res.Source)
		return nil
	},
}

func init() {
	geocodeCmd.Flags().BoolVar(&geocodeNoCache, "no-cache", false, "bypass the address cache")
	rootCmd.AddCommand(geocodeCmd)
}
