package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"nii2img/pkg/normalize"
)

func main() {
	// Parse command line arguments
	folders := flag.String("folder", "", "Comma-separated path(s) to input data folders")
	volumeNorm := flag.Bool("volumenorm", false, "Normalize input data to [0,1] in a volumewise manner")
	globalNorm := flag.Bool("globalnorm", false, "Normalize input data to [0,1] in a global manner (two passes through the data)")
	volumeZScore := flag.Bool("volumezscore", false, "Normalize input data into a Z score (data-mean)/stdev in a volumewise manner")
	globalZScore := flag.Bool("globalzscore", false, "Normalize input data into a Z score (data-mean)/stdev in a global manner (two passes through the data)")
	customNorm := flag.Bool("customnorm", false, "Normalize with custom factors: (data-shift)/scale")
	noNorm := flag.Bool("nonorm", false, "Remove existing normalization records")
	shift := flag.Float64("shift", 0.0, "User-specified shift to apply")
	scale := flag.Float64("scale", 1.0, "User-specified scale factor to apply")
	cropAbove := flag.Float64("cropabove", 100.0, "Crop pixel values above the specified percentile (range modes only)")
	cropBelow := flag.Float64("cropbelow", 0.0, "Crop pixel values below the specified percentile (range modes only)")
	flag.Parse()

	folderList := splitList(*folders)
	if len(folderList) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	var mode normalize.Mode
	selected := 0
	for _, m := range []struct {
		set  bool
		mode normalize.Mode
	}{
		{*volumeNorm, normalize.VolumeNorm},
		{*globalNorm, normalize.GlobalNorm},
		{*volumeZScore, normalize.VolumeZScore},
		{*globalZScore, normalize.GlobalZScore},
		{*customNorm, normalize.CustomNorm},
		{*noNorm, normalize.NoNorm},
	} {
		if m.set {
			mode = m.mode
			selected++
		}
	}
	if selected != 1 {
		log.Fatalf("Exactly one of -volumenorm, -globalnorm, -volumezscore, -globalzscore, -customnorm, -nonorm must be given")
	}

	fmt.Println("niinormalize -- writes per-volume normalization records for nii2img")

	params := &normalize.Params{
		Folders:   folderList,
		Mode:      mode,
		Shift:     *shift,
		Scale:     *scale,
		CropBelow: *cropBelow,
		CropAbove: *cropAbove,
		Logger:    log.New(os.Stdout, "", log.LstdFlags),
	}
	if err := normalize.Run(params); err != nil {
		log.Fatalf("Normalization failed: %v", err)
	}
}

// splitList splits a comma-separated flag value into its entries
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
