package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/loveofmn/mapkit/internal/boundary"
)

var loadConcurrency int

var boundariesCmd = &cobra.Command{
	Use:   "boundaries",
	Short: "Manage administrative boundary data",
}

var boundariesLoadCmd = &cobra.Command{
	Use:   "load layer=path [layer=path ...]",
	Short: "Load boundary geometry from shapefiles or GeoJSON",
	Long:  "Each argument pairs a layer (state, county, district, ctu) with a source file, e.g. ctu=./data/ctu.geojson. Loading a layer replaces its previous contents.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sources := make([]boundary.SourceFile, 0, len(args))
		for _, arg := range args {
			layer, path, ok := strings.Cut(arg, "=")
			if !ok {
				return eris.Errorf("malformed argument %q, want layer=path", arg)
			}
			sources = append(sources, boundary.SourceFile{
				Layer: boundary.Layer(layer),
				Path:  path,
			})
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		loader := boundary.NewLoader(env.Boundaries, loadConcurrency)
		n, err := loader.Load(cmd.Context(), sources)
		if err != nil {
			return err
		}

		zap.L().Info("boundary load complete", zap.Int("records", n))
		fmt.Printf("loaded %d boundary records\n", n)
		return nil
	},
}

var boundariesStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show boundary record counts per layer",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		layers := []boundary.Layer{
			boundary.LayerState,
			boundary.LayerCounty,
			boundary.LayerDistrict,
			boundary.LayerCTU,
		}
		for _, layer := range layers {
			n, err := env.Boundaries.Count(cmd.Context(), layer)
			if err != nil {
				return err
			}
			fmt.Printf("%-10s %d\n", layer, n)
		}
		return nil
	},
}

func init() {
	boundariesLoadCmd.Flags().IntVar(&loadConcurrency, "concurrency", 4, "concurrent source file parses")
	boundariesCmd.AddCommand(boundariesLoadCmd)
	boundariesCmd.AddCommand(boundariesStatusCmd)
	rootCmd.AddCommand(boundariesCmd)
}
