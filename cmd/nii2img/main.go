package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"nii2img/internal/models"
	"nii2img/pkg/config"
	"nii2img/pkg/pipeline"
	"nii2img/pkg/transform"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "", "Optional YAML configuration file; explicit flags override it")
	outFolder := flag.String("outfolder", "", "Path to output folder where images will be written")
	xFolders := flag.String("X", "", "Comma-separated NIfTI folders containing input data (X)")
	yFolders := flag.String("Y", "", "Comma-separated NIfTI folders containing target ground truth data (Y)")
	axes := flag.String("axes", "2", "Comma-separated axes (0,1,2) of the 3D array on which to sample slices")
	imSize := flag.String("imsize", "", "Force size of output images to WxH (e.g. 256x256)")
	force := flag.Bool("force", false, "Write into an existing output folder without overwriting existing images")
	xSlices := flag.Int("Xslices", 1, "Number of adjacent slices to store from input data (1, 3 or 5)")
	ySlices := flag.Int("Yslices", 1, "Number of adjacent slices to store from target data (1, 3 or 5)")
	shuffle := flag.Bool("shuffle", false, "Shuffle the order of input data; use with -augseed for different samplings")
	testFraction := flag.Int("testfraction", 0, "Integer percentage of data used for testing")
	valFraction := flag.Int("valfraction", 0, "Integer percentage of data used for validation")
	augFactor := flag.Int("augfactor", 5, "How many samples to generate per slice of each volume")
	augMode := flag.String("augmode", "reflect", "Boundary extension for augmented data: mirror, nearest, reflect or wrap")
	augSeed := flag.Int64("augseed", 813, "Random seed for reproducible augmentation")
	addNoise := flag.Float64("addnoise", 0, "Add Gaussian noise with this sigma")
	hFlips := flag.Bool("hflips", false, "Perform random horizontal flips")
	vFlips := flag.Bool("vflips", false, "Perform random vertical flips")
	rotations := flag.Float64("rotations", 0, "Perform random rotations up to this angle (in degrees)")
	scalings := flag.Float64("scalings", 0, "Perform random scalings in the range [(1-scale),(1+scale)]")
	shears := flag.Float64("shears", 0, "Add random shears up to this angle (in degrees)")
	translations := flag.Float64("translations", 0, "Perform random translations up to this number of pixels")
	previews := flag.Bool("previews", false, "Additionally write Gray16 preview images for visual checks")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// explicit flags win over the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "outfolder":
			cfg.Output.Folder = *outFolder
		case "X":
			cfg.Input.X = splitList(*xFolders)
		case "Y":
			cfg.Input.Y = splitList(*yFolders)
		case "axes":
			list, err := parseInts(*axes)
			if err != nil {
				log.Fatalf("Invalid -axes: %v", err)
			}
			cfg.Sampling.Axes = list
		case "imsize":
			size, err := parseSize(*imSize)
			if err != nil {
				log.Fatalf("Invalid -imsize: %v", err)
			}
			cfg.Output.ImSize = size
		case "force":
			cfg.Output.Force = *force
		case "Xslices":
			cfg.Sampling.XSlices = *xSlices
		case "Yslices":
			cfg.Sampling.YSlices = *ySlices
		case "shuffle":
			cfg.Sampling.Shuffle = *shuffle
		case "testfraction":
			cfg.Sampling.TestFraction = *testFraction
		case "valfraction":
			cfg.Sampling.ValFraction = *valFraction
		case "augfactor":
			cfg.Augmentation.Factor = *augFactor
		case "augmode":
			cfg.Augmentation.Mode = *augMode
		case "augseed":
			cfg.Augmentation.Seed = *augSeed
		case "addnoise":
			cfg.Augmentation.AddNoise = *addNoise
		case "hflips":
			cfg.Augmentation.HFlips = *hFlips
		case "vflips":
			cfg.Augmentation.VFlips = *vFlips
		case "rotations":
			cfg.Augmentation.Rotations = *rotations
		case "scalings":
			cfg.Augmentation.Scalings = *scalings
		case "shears":
			cfg.Augmentation.Shears = *shears
		case "translations":
			cfg.Augmentation.Translations = *translations
		case "previews":
			cfg.Output.Previews = *previews
		}
	})

	if len(cfg.Input.X) == 0 || len(cfg.Input.Y) == 0 || cfg.Output.Folder == "" {
		flag.Usage()
		os.Exit(1)
	}

	// the run log lives inside the output folder, so create that first
	if err := os.MkdirAll(cfg.Output.Folder, 0755); err != nil {
		log.Fatalf("Failed to create output folder: %v", err)
	}
	logFile, err := os.Create(filepath.Join(cfg.Output.Folder, "nii2img.log"))
	if err != nil {
		log.Fatalf("Failed to create run log: %v", err)
	}
	defer logFile.Close()
	logger := log.New(io.MultiWriter(os.Stdout, logFile), "", log.LstdFlags)

	fmt.Println("================================")
	fmt.Println("NII2IMG - NIFTI VOLUMES TO AUGMENTED 2D TRAINING IMAGE PAIRS")
	fmt.Println("================================")

	logger.Printf("Started %s", os.Args[0])
	logger.Printf("Command line options were: %s", strings.Join(os.Args[1:], " "))

	mode, err := transform.ParseBoundaryMode(cfg.Augmentation.Mode)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	axesList := make([]models.Axis, len(cfg.Sampling.Axes))
	for i, a := range cfg.Sampling.Axes {
		axesList[i] = models.Axis(a)
	}

	params := &pipeline.Params{
		XFolders:     cfg.Input.X,
		YFolders:     cfg.Input.Y,
		OutFolder:    cfg.Output.Folder,
		Axes:         axesList,
		ImSize:       cfg.Output.ImSize,
		XSlices:      cfg.Sampling.XSlices,
		YSlices:      cfg.Sampling.YSlices,
		Shuffle:      cfg.Sampling.Shuffle,
		TestFraction: cfg.Sampling.TestFraction,
		ValFraction:  cfg.Sampling.ValFraction,
		AugFactor:    cfg.Augmentation.Factor,
		AugMode:      mode,
		Seed:         cfg.Augmentation.Seed,
		AddNoise:     cfg.Augmentation.AddNoise,
		HFlips:       cfg.Augmentation.HFlips,
		VFlips:       cfg.Augmentation.VFlips,
		Rotations:    cfg.Augmentation.Rotations,
		Shears:       cfg.Augmentation.Shears,
		Scalings:     cfg.Augmentation.Scalings,
		Translations: cfg.Augmentation.Translations,
		Protect:      cfg.Output.Force,
		Previews:     cfg.Output.Previews,
		Logger:       logger,
	}

	p := pipeline.New(params)
	startTime := time.Now()
	if err := p.Run(); err != nil {
		logger.Printf("Conversion failed: %v", err)
		os.Exit(1)
	}

	stats := p.GetStats()
	fmt.Printf("\nConversion completed successfully in %.2f seconds!\n", time.Since(startTime).Seconds())
	fmt.Printf("Wrote %d sample pairs from %d subjects (%d subject/axis combinations, %d skipped)\n",
		stats.Samples, stats.Subjects, stats.Combos, stats.Skipped)
	fmt.Printf("Output dataset saved to: %s\n", cfg.Output.Folder)
}

// splitList splits a comma-separated flag value into its entries
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseInts parses a comma-separated list of integers
func parseInts(s string) ([]int, error) {
	parts := splitList(s)
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		out[i] = v
	}
	return out, nil
}

// parseSize parses a WxH image size specification
func parseSize(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.SplitN(strings.ToLower(s), "x", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected WxH, got %q", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("invalid width %q", parts[0])
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid height %q", parts[1])
	}
	return []int{w, h}, nil
}
