package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

// sampleExt is the extension of emitted sample images
const sampleExt = ".tiff"

// makeOutputDirs creates the output folder layout:
//
//	outFolder/X/[train|val|test]
//	outFolder/Y/[train|val|test]
//
// or plain X/ and Y/ when both split fractions are zero. Unless force is
// set, a pre-existing X or Y folder aborts the run so earlier datasets
// are never silently mixed into.
func makeOutputDirs(outFolder string, testFraction, valFraction int, force bool) (xFolder, yFolder string, err error) {
	xFolder = filepath.Join(outFolder, "X")
	yFolder = filepath.Join(outFolder, "Y")

	if !force {
		for _, dir := range []string{xFolder, yFolder} {
			if _, err := os.Stat(dir); err == nil {
				return "", "", fmt.Errorf("output folder %s is not empty, cannot continue (use overwrite protection to add to it)", dir)
			}
		}
	}

	splits := []string{}
	if testFraction > 0 || valFraction > 0 {
		splits = append(splits, string(SplitTrain))
		if testFraction > 0 {
			splits = append(splits, string(SplitTest))
		}
		if valFraction > 0 {
			splits = append(splits, string(SplitVal))
		}
	}

	for _, dir := range []string{xFolder, yFolder} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", "", fmt.Errorf("error creating output folder %s: %w", dir, err)
		}
		for _, s := range splits {
			if err := os.MkdirAll(filepath.Join(dir, s), 0755); err != nil {
				return "", "", fmt.Errorf("error creating output folder %s: %w", filepath.Join(dir, s), err)
			}
		}
	}
	return xFolder, yFolder, nil
}

// pathAllocator hands out non-colliding sample file paths. Without
// overwrite protection it formats paths directly; with it, it probes the
// filesystem and bumps a persistent subject-counter offset past any
// pre-existing files, so re-running into a populated folder appends
// rather than overwrites.
type pathAllocator struct {
	protect bool
	offset  int
}

func newPathAllocator(protect bool) *pathAllocator {
	return &pathAllocator{protect: protect}
}

// allocate returns the X and Y paths for sample number sampleIdx
// (1-based) of output subject subjectCount, placed under the split
// subfolder of each side when partitioning is active.
func (a *pathAllocator) allocate(xFolder, yFolder string, split Split, subjectCount, sampleIdx int) (xPath, yPath string) {
	xDir, yDir := xFolder, yFolder
	if split != SplitNone {
		xDir = filepath.Join(xFolder, string(split))
		yDir = filepath.Join(yFolder, string(split))
	}

	format := func(counter int) (string, string) {
		x := filepath.Join(xDir, fmt.Sprintf("X_%05d_%08d%s", counter, sampleIdx, sampleExt))
		y := filepath.Join(yDir, fmt.Sprintf("Y_%05d_%08d%s", counter, sampleIdx, sampleExt))
		return x, y
	}

	xPath, yPath = format(subjectCount + a.offset)
	if a.protect {
		for exists(xPath) || exists(yPath) {
			a.offset++
			xPath, yPath = format(subjectCount + a.offset)
		}
	}
	return xPath, yPath
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
