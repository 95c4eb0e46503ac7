package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"skyproc/internal/config"
	"skyproc/internal/fits"
	"skyproc/internal/fsutil"
	"skyproc/internal/ops"
	"skyproc/internal/pipeline"
	"skyproc/internal/storage"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root Cobra command.
func NewRootCmd(cfg *config.Config, log *slog.Logger, store *storage.Store, pipe *pipeline.Pipeline) *cobra.Command {
	root := NewRoot(pipe, cfg, log, store)

	rootCmd := &cobra.Command{
		Use:   "skyproc",
		Short: "skyproc processes astronomical FITS images and cubes",
		Long: `skyproc is a toolkit for survey FITS data: spectral cube averaging and
slicing, Gaussian smoothing, S/N masking, coordinate grids and
reprojection between equatorial, Galactic and HEALPix pixelisations.`,
	}

	rootCmd.AddCommand(newScanCmd(root))
	rootCmd.AddCommand(newFreqAxisCmd(root))
	rootCmd.AddCommand(newHeaderCmd(root))
	rootCmd.AddCommand(newCubeAvgCmd(root))
	rootCmd.AddCommand(newSliceCmd(root))
	rootCmd.AddCommand(newConvolveCmd(root))
	rootCmd.AddCommand(newGradientCmd(root))
	rootCmd.AddCommand(newMaskCmd(root))
	rootCmd.AddCommand(newMaskInterpCmd(root))
	rootCmd.AddCommand(newReprojectCmd(root))
	rootCmd.AddCommand(newReprojectGalCmd(root))
	rootCmd.AddCommand(newHealpixCmd(root))
	rootCmd.AddCommand(newPreviewCmd(root))
	rootCmd.AddCommand(newServeCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newVersionCmd(root))

	return rootCmd
}

func newFreqAxisCmd(root *Root) *cobra.Command {
	var kms bool

	cmd := &cobra.Command{
		Use:   "freqaxis <input.fits>",
		Short: "Print the third-axis coordinate values of a cube",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			im, err := fits.ReadFile(args[0])
			if err != nil {
				return err
			}
			axis, err := fits.FreqAxis(im.Header)
			if err != nil {
				return err
			}
			for i, v := range axis {
				if kms {
					v *= 1e-3
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%g\n", i, v)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&kms, "kms", false, "scale values by 1e-3 (m/s to km/s)")
	return cmd
}

func newHeaderCmd(root *Root) *cobra.Command {
	var to2D, minimal bool

	cmd := &cobra.Command{
		Use:   "header <input.fits>",
		Short: "Print the primary header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			im, err := fits.ReadFile(args[0])
			if err != nil {
				return err
			}
			h := im.Header
			if to2D {
				h = fits.To2D(h)
			}
			if minimal {
				h = fits.MinimalWCS(h)
			}
			for _, k := range h.Keys() {
				v, _ := h.Get(k)
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s= %v\n", k, v)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&to2D, "to-2d", false, "drop the third-axis keywords")
	cmd.Flags().BoolVar(&minimal, "minimal", false, "keep only the minimal WCS keyword set")
	return cmd
}

func newCubeAvgCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cubeavg <input.fits> <output.fits>",
		Short: "Average a spectral cube along its third axis",
		Long: `Collapse a 3D cube to a 2D map by averaging each line of sight,
skipping blank (NaN) channels.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := pipeline.Job{
				ID:        newID("cubeavg"),
				Type:      pipeline.JobCubeAvg,
				InputPath: args[0],
				Output:    args[1],
			}
			return root.enqueueAndWait(cmd.Context(), job)
		},
	}
	return cmd
}

func newSliceCmd(root *Root) *cobra.Command {
	var base, units string

	cmd := &cobra.Command{
		Use:   "slice <input.fits> <output_dir>",
		Short: "Write each channel of a cube as its own 2D FITS file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := pipeline.Job{
				ID:        newID("slice"),
				Type:      pipeline.JobSlice,
				InputPath: args[0],
				Output:    args[1],
				Options: map[string]any{
					"base":  base,
					"units": units,
				},
			}
			return root.enqueueAndWait(cmd.Context(), job)
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "base name for channel files (default: input name)")
	cmd.Flags().StringVar(&units, "units", "kms", "unit label in channel file names")
	return cmd
}

func newConvolveCmd(root *Root) *cobra.Command {
	var (
		oldres float64
		newres float64
		method string
	)

	cmd := &cobra.Command{
		Use:   "convolve <input.fits> <output.fits>",
		Short: "Smooth an image to a coarser angular resolution",
		Long: `Convolve a 2D image with the Gaussian kernel that degrades it from
--oldres to --newres (both FWHM in arcminutes).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := pipeline.Job{
				ID:        newID("conv"),
				Type:      pipeline.JobConvolve,
				InputPath: args[0],
				Output:    args[1],
				Options: map[string]any{
					"oldres": oldres,
					"newres": newres,
					"method": method,
				},
			}
			return root.enqueueAndWait(cmd.Context(), job)
		},
	}
	cmd.Flags().Float64Var(&oldres, "oldres", 0, "current resolution in arcmin (required)")
	cmd.Flags().Float64Var(&newres, "newres", 0, "target resolution in arcmin (required)")
	cmd.Flags().StringVar(&method, "method", "", "NaN handling: zerofill or interpolate")
	cmd.MarkFlagRequired("oldres")
	cmd.MarkFlagRequired("newres")
	return cmd
}

func newGradientCmd(root *Root) *cobra.Command {
	var components bool

	cmd := &cobra.Command{
		Use:   "gradient <input.fits> <output.fits>",
		Short: "Compute the gradient magnitude of an image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := pipeline.Job{
				ID:        newID("grad"),
				Type:      pipeline.JobGradient,
				InputPath: args[0],
				Output:    args[1],
				Options: map[string]any{
					"components": components,
				},
			}
			return root.enqueueAndWait(cmd.Context(), job)
		},
	}
	cmd.Flags().BoolVar(&components, "components", false, "also write the per-axis derivatives")
	return cmd
}

func newMaskCmd(root *Root) *cobra.Command {
	var (
		noise     float64
		noiseMap  string
		snr       float64
		threshold float64
		blim      float64
	)

	cmd := &cobra.Command{
		Use:   "mask <snr|signal|highlat> <input.fits> <output.fits>",
		Short: "Mask an image by S/N, absolute signal or Galactic latitude",
		Long: `Set rejected pixels to NaN and write the masked image.

  snr      keep pixels where data >= snr * noise
  signal   keep pixels where data >= threshold
  highlat  keep pixels with |b| >= blim on an equatorial image`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := pipeline.Job{
				ID:        newID("mask"),
				Type:      pipeline.JobMask,
				InputPath: args[1],
				Output:    args[2],
				Options: map[string]any{
					"kind":      args[0],
					"noise":     noise,
					"noiseMap":  noiseMap,
					"snr":       snr,
					"threshold": threshold,
					"blim":      blim,
				},
			}
			return root.enqueueAndWait(cmd.Context(), job)
		},
	}
	cmd.Flags().Float64Var(&noise, "noise", 0, "noise level for snr masking")
	cmd.Flags().StringVar(&noiseMap, "noise-map", "", "per-pixel noise FITS file for snr masking")
	cmd.Flags().Float64Var(&snr, "snr", 3, "signal-to-noise threshold")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "absolute signal threshold")
	cmd.Flags().Float64Var(&blim, "blim", 30, "Galactic latitude limit in degrees")
	return cmd
}

func newMaskInterpCmd(root *Root) *cobra.Command {
	var maskPath string

	cmd := &cobra.Command{
		Use:   "maskinterp <input.fits> <output.fits>",
		Short: "Fill masked pixels by interpolating from valid neighbours",
		Long: `Reconstruct blank (NaN) pixels from the surviving samples. With
--mask the NaNs of that file select the pixels to fill; otherwise the
input's own blanks do. Pixels outside the convex hull of the valid
samples stay NaN.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := pipeline.Job{
				ID:        newID("maskinterp"),
				Type:      pipeline.JobMaskInterp,
				InputPath: args[0],
				Output:    args[1],
				Options: map[string]any{
					"mask": maskPath,
				},
			}
			return root.enqueueAndWait(cmd.Context(), job)
		},
	}
	cmd.Flags().StringVar(&maskPath, "mask", "", "FITS file whose NaNs select the pixels to fill")
	return cmd
}

func newReprojectCmd(root *Root) *cobra.Command {
	var (
		template  string
		order     string
		clean     bool
		footprint string
	)

	cmd := &cobra.Command{
		Use:   "reproject <input.fits> <output.fits>",
		Short: "Resample an image onto the grid of a template header",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := pipeline.Job{
				ID:        newID("reproj"),
				Type:      pipeline.JobReproject,
				InputPath: args[0],
				Output:    args[1],
				Options: map[string]any{
					"template":  template,
					"order":     order,
					"clean":     clean,
					"footprint": footprint,
				},
			}
			return root.enqueueAndWait(cmd.Context(), job)
		},
	}
	cmd.Flags().StringVar(&template, "template", "", "FITS file providing the target grid (required)")
	cmd.Flags().StringVar(&order, "order", "bilinear", "interpolation: nearest-neighbor, bilinear, biquadratic, bicubic")
	cmd.Flags().BoolVar(&clean, "clean", false, "strip both headers to the minimal WCS keyword set first")
	cmd.Flags().StringVar(&footprint, "footprint", "", "also write the coverage footprint to this path")
	cmd.MarkFlagRequired("template")
	return cmd
}

func newReprojectGalCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reproject-gal <input.fits> <output.fits>",
		Short: "Rotate an equatorial image or cube onto a Galactic grid",
		Long: `Reproject an fk5 image onto a synthetic Galactic TAN grid using the
Montage tools (mProject / mProjectCube), which must be installed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := pipeline.Job{
				ID:        newID("gal"),
				Type:      pipeline.JobReprojectGal,
				InputPath: args[0],
				Output:    args[1],
			}
			return root.enqueueAndWait(cmd.Context(), job)
		},
	}
	return cmd
}

func newHealpixCmd(root *Root) *cobra.Command {
	var (
		template string
		ordering string
		coord    string
	)

	cmd := &cobra.Command{
		Use:   "healpix <map.fits> <output.fits>",
		Short: "Resample a HEALPix all-sky map onto a flat target grid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := pipeline.Job{
				ID:        newID("hpx"),
				Type:      pipeline.JobHealpix,
				InputPath: args[0],
				Output:    args[1],
				Options: map[string]any{
					"template": template,
					"ordering": ordering,
					"coord":    coord,
				},
			}
			return root.enqueueAndWait(cmd.Context(), job)
		},
	}
	cmd.Flags().StringVar(&template, "template", "", "FITS file providing the target grid (required)")
	cmd.Flags().StringVar(&ordering, "ordering", "ring", "HEALPix ordering: ring or nested")
	cmd.Flags().StringVar(&coord, "coord", "G", "frame of the map pixelisation: G or C")
	cmd.MarkFlagRequired("template")
	return cmd
}

func newPreviewCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <input.fits> [output.png]",
		Short: "Render a PNG quicklook of a FITS image",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out string
			if len(args) > 1 {
				out = args[1]
			}
			job := pipeline.Job{
				ID:        newID("prev"),
				Type:      pipeline.JobPreview,
				InputPath: args[0],
				Output:    out,
			}
			return root.enqueueAndWait(cmd.Context(), job)
		},
	}
	return cmd
}

func newServeCmd(root *Root) *cobra.Command {
	var (
		addr       string
		watchPaths []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server with optional directory watching",
		Long: `Start an HTTP server exposing job status, product history and live
result streams. Watched directories queue a preview render for every
FITS file that appears.

Examples:
  skyproc serve --addr :8080
  skyproc serve --addr :8080 --watch /data/survey --watch /data/incoming`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := watchPaths
			if len(paths) == 0 {
				paths = root.cfg.Paths.WatchDirs
			}
			root.log.Info("starting server", "addr", addr, "watch_paths", paths)
			return root.serveFn(context.Background(), addr, paths, root.cfg, root.store, root.pipeline, root.log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringSliceVar(&watchPaths, "watch", nil, "directories to watch for new FITS files")
	return cmd
}

func newScanCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <directory>",
		Short: "List FITS files under a directory with their shapes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := fsutil.ListFITS(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, path := range files {
				im, err := fits.ReadFile(path)
				if err != nil {
					fmt.Fprintf(out, "%s\tunreadable: %v\n", path, err)
					continue
				}
				ctype1, _ := im.Header.String("CTYPE1")
				if im.NZ > 1 {
					fmt.Fprintf(out, "%s\t%dx%dx%d\t%s\n", path, im.NX, im.NY, im.NZ, ctype1)
				} else {
					fmt.Fprintf(out, "%s\t%dx%d\t%s\n", path, im.NX, im.NY, ctype1)
				}
			}
			if len(files) == 0 {
				root.log.Info("no FITS files found", "dir", args[0])
			}
			return nil
		},
	}
	return cmd
}

func newConfigCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the active configuration",
	}
	cmd.AddCommand(newConfigShowCmd(root))
	cmd.AddCommand(newConfigValidateCmd(root))
	return cmd
}

func newConfigShowCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := os.Getenv("SKYPROC_CONFIG")
			if cfgPath == "" {
				cfgPath = "(default) ~/.config/skyproc/config.json"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config file: %s\n", cfgPath)
			fmt.Fprintf(out, "\nProcessing:\n")
			fmt.Fprintf(out, "  Parallel jobs: %d\n", root.cfg.Processing.ParallelJobs)
			fmt.Fprintf(out, "  Temp dir: %s\n", root.cfg.Processing.TempDir)
			fmt.Fprintf(out, "\nPaths:\n")
			fmt.Fprintf(out, "  Default output: %s\n", root.cfg.Paths.DefaultOutput)
			fmt.Fprintf(out, "  Database: %s\n", root.cfg.Paths.DatabasePath)
			fmt.Fprintf(out, "\nConvolve:\n")
			fmt.Fprintf(out, "  Kernel method: %s\n", root.cfg.Convolve.KernelMethod)
			fmt.Fprintf(out, "\nReproject:\n")
			fmt.Fprintf(out, "  Canvas: %dx%d\n", root.cfg.Reproject.CanvasNX, root.cfg.Reproject.CanvasNY)
			fmt.Fprintf(out, "  Work dir: %s\n", root.cfg.Reproject.WorkDir)
			fmt.Fprintf(out, "  Montage: %s %s %s\n", root.cfg.Reproject.MProject, root.cfg.Reproject.MProjectCube, root.cfg.Reproject.MGetHdr)
			return nil
		},
	}
}

func newConfigValidateCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration for invalid values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			var problems []string
			if cfg.Processing.ParallelJobs < 1 {
				problems = append(problems, fmt.Sprintf("processing.parallel_jobs must be positive, got %d", cfg.Processing.ParallelJobs))
			}
			if _, err := ops.ParseKernelMethod(cfg.Convolve.KernelMethod); err != nil {
				problems = append(problems, err.Error())
			}
			if cfg.Reproject.CanvasNX < 1 || cfg.Reproject.CanvasNY < 1 {
				problems = append(problems, fmt.Sprintf("reproject canvas %dx%d is not a valid grid", cfg.Reproject.CanvasNX, cfg.Reproject.CanvasNY))
			}
			if cfg.Preview.QuantLow < 0 || cfg.Preview.QuantHigh > 1 || cfg.Preview.QuantLow >= cfg.Preview.QuantHigh {
				problems = append(problems, fmt.Sprintf("preview quantiles [%g, %g] must satisfy 0 <= low < high <= 1", cfg.Preview.QuantLow, cfg.Preview.QuantHigh))
			}
			if len(problems) > 0 {
				for _, p := range problems {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
				return fmt.Errorf("configuration has %d problem(s)", len(problems))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration ok")
			return nil
		},
	}
}

func newVersionCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("skyproc v1.0.0\n")
			cmd.Printf("Built with Go %s\n", runtime.Version())
		},
	}
}
