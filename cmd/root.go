package cmd

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kiesman99/bigview/internal/dzi"
	"github.com/kiesman99/bigview/internal/view"
	"github.com/kiesman99/bigview/internal/vips"
	"github.com/kiesman99/bigview/pkg/pyramid"
	"github.com/kiesman99/bigview/pkg/raster"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bigview",
	Short: "View regions of huge pyramid images without decoding them whole",
	Long: `bigview opens tiled multi-resolution ("pyramid") images and extracts
the region visible in a viewport, loading only the tiles that cover it.

Deep Zoom images (.dzi manifest plus tile directories) are read natively;
everything else is opened through libvips and tiled on the fly.

Examples:
  # Extract a 800x600 view of the full-resolution level, centered
  bigview -i scan.dzi --width 800 --height 600 --zoom 13 --center 12000,9000 -o region.png

  # Fit the whole image into the viewport
  bigview -i scan.dzi --width 1024 --height 768 -o overview.png

  # Scroll the viewport after loading (drag semantics, dx,dy)
  bigview -i slide.tif --width 640 --height 480 --zoom 5 --scroll -320,0 -o next.png

  # Start the HTTP server
  bigview serve --images ./images --port 8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetString("input") == "" {
			return cmd.Help()
		}
		return runView(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.bigview.yaml)")

	// Input/output
	rootCmd.Flags().StringP("input", "i", "", "pyramid image to open (.dzi or anything libvips reads)")
	rootCmd.Flags().StringP("output", "o", "", "output PNG file (default: stdout)")

	// Viewport
	rootCmd.Flags().Int("width", 640, "viewport width in pixels")
	rootCmd.Flags().Int("height", 480, "viewport height in pixels")

	// View placement
	rootCmd.Flags().Int("zoom", view.ZoomFit, "zoom level (higher = bigger picture, -1 = fit to viewport)")
	rootCmd.Flags().String("center", "", "center the viewport on 'x,y' in full-image coordinates")
	rootCmd.Flags().String("scroll", "", "drag the content by 'dx,dy' after loading")

	viper.BindPFlag("input", rootCmd.Flags().Lookup("input"))
	viper.BindPFlag("output", rootCmd.Flags().Lookup("output"))
	viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))
	viper.BindPFlag("height", rootCmd.Flags().Lookup("height"))
	viper.BindPFlag("zoom", rootCmd.Flags().Lookup("zoom"))
	viper.BindPFlag("center", rootCmd.Flags().Lookup("center"))
	viper.BindPFlag("scroll", rootCmd.Flags().Lookup("scroll"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".bigview" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".bigview")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func runView(cmd *cobra.Command, args []string) error {
	input := viper.GetString("input")
	output := viper.GetString("output")
	width := viper.GetInt("width")
	height := viper.GetInt("height")

	if width <= 0 || height <= 0 {
		return fmt.Errorf("viewport size must be positive: %dx%d", width, height)
	}

	// Check if output is to terminal
	if output == "" {
		if stat, _ := os.Stdout.Stat(); (stat.Mode() & os.ModeCharDevice) != 0 {
			return fmt.Errorf("didn't specify output file and standard output is a terminal")
		}
	}

	img, err := openImage(input)
	if err != nil {
		return err
	}

	v := view.New(img, view.DefaultExtraTiles)
	v.SetViewportSize(width, height)
	v.SetZoom(viper.GetInt("zoom"))

	center, err := parsePoint(viper.GetString("center"), "center")
	if err != nil {
		return err
	}

	if err := v.Load(center); err != nil {
		return err
	}

	if scrollStr := viper.GetString("scroll"); scrollStr != "" {
		scroll, err := parsePoint(scrollStr, "scroll")
		if err != nil {
			return err
		}
		if _, err := v.Scroll(scroll.X, scroll.Y); err != nil {
			return err
		}
	}

	canvas, rect, err := v.Visible()
	if err != nil {
		return err
	}
	if canvas == nil {
		return fmt.Errorf("requested view contains no image data")
	}

	data, err := raster.EncodePNG(canvas.Crop(rect))
	if err != nil {
		return err
	}

	x, y := v.ViewportOnImage()
	fmt.Fprintf(cmd.ErrOrStderr(), "Extracted %dx%d at zoom %d, viewport at %d,%d\n",
		rect.Dx(), rect.Dy(), v.Zoom(), x, y)

	if output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(output, data, 0o644)
}

// openImage picks the adapter from the file extension: .dzi manifests go
// through the Deep Zoom reader, everything else through libvips.
func openImage(path string) (pyramid.Image, error) {
	if strings.EqualFold(filepath.Ext(path), ".dzi") {
		return dzi.Open(path)
	}
	return vips.Open(path)
}

// parsePoint parses an "x,y" pair.
func parsePoint(s, name string) (*image.Point, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%s must be in format 'x,y'", name)
	}

	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("invalid x in %s: %v", name, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid y in %s: %v", name, err)
	}

	return &image.Point{X: x, Y: y}, nil
}
