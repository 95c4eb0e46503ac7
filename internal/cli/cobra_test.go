package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"skyproc/internal/config"
	"skyproc/internal/fits"
	"skyproc/internal/pipeline"
)

func TestCubeAvgCmdBuildsJob(t *testing.T) {
	stub := newStubPipeline()
	root := testRoot(stub)

	cmd := newCubeAvgCmd(root)
	cmd.SetArgs([]string{"cube.fits", "avg.fits"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(stub.submitted) != 1 {
		t.Fatalf("submitted %d jobs, want 1", len(stub.submitted))
	}
	job := stub.submitted[0]
	if job.Type != pipeline.JobCubeAvg || job.InputPath != "cube.fits" || job.Output != "avg.fits" {
		t.Errorf("job = %+v", job)
	}
	if !strings.HasPrefix(job.ID, "cubeavg-") {
		t.Errorf("job ID %q should carry the cubeavg prefix", job.ID)
	}
}

func TestConvolveCmdOptions(t *testing.T) {
	stub := newStubPipeline()
	root := testRoot(stub)

	cmd := newConvolveCmd(root)
	cmd.SetArgs([]string{"in.fits", "out.fits", "--oldres", "4.3", "--newres", "16", "--method", "zerofill"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	job := stub.submitted[0]
	if job.Type != pipeline.JobConvolve {
		t.Fatalf("job type = %s", job.Type)
	}
	if job.Options["oldres"] != 4.3 || job.Options["newres"] != 16.0 {
		t.Errorf("resolution options = %v", job.Options)
	}
	if job.Options["method"] != "zerofill" {
		t.Errorf("method option = %v", job.Options["method"])
	}
}

func TestConvolveCmdRequiresResolutions(t *testing.T) {
	stub := newStubPipeline()
	root := testRoot(stub)

	cmd := newConvolveCmd(root)
	cmd.SetArgs([]string{"in.fits", "out.fits"})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error without --oldres and --newres")
	}
	if len(stub.submitted) != 0 {
		t.Errorf("no job should be submitted on a flag error")
	}
}

func TestMaskCmdBuildsJob(t *testing.T) {
	stub := newStubPipeline()
	root := testRoot(stub)

	cmd := newMaskCmd(root)
	cmd.SetArgs([]string{"snr", "in.fits", "out.fits", "--noise", "0.2", "--snr", "5"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	job := stub.submitted[0]
	if job.Type != pipeline.JobMask || job.InputPath != "in.fits" || job.Output != "out.fits" {
		t.Errorf("job = %+v", job)
	}
	if job.Options["kind"] != "snr" || job.Options["noise"] != 0.2 || job.Options["snr"] != 5.0 {
		t.Errorf("options = %v", job.Options)
	}
}

func TestMaskInterpCmdBuildsJob(t *testing.T) {
	stub := newStubPipeline()
	root := testRoot(stub)

	cmd := newMaskInterpCmd(root)
	cmd.SetArgs([]string{"in.fits", "out.fits", "--mask", "holes.fits"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	job := stub.submitted[0]
	if job.Type != pipeline.JobMaskInterp || job.InputPath != "in.fits" || job.Output != "out.fits" {
		t.Errorf("job = %+v", job)
	}
	if job.Options["mask"] != "holes.fits" {
		t.Errorf("mask option = %v", job.Options["mask"])
	}
}

func TestReprojectCmdRequiresTemplate(t *testing.T) {
	stub := newStubPipeline()
	root := testRoot(stub)

	cmd := newReprojectCmd(root)
	cmd.SetArgs([]string{"in.fits", "out.fits"})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error without --template")
	}
}

func TestHealpixCmdDefaults(t *testing.T) {
	stub := newStubPipeline()
	root := testRoot(stub)

	cmd := newHealpixCmd(root)
	cmd.SetArgs([]string{"map.fits", "out.fits", "--template", "tmpl.fits"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	job := stub.submitted[0]
	if job.Options["ordering"] != "ring" || job.Options["coord"] != "G" {
		t.Errorf("defaults = %v", job.Options)
	}
	if job.Options["template"] != "tmpl.fits" {
		t.Errorf("template = %v", job.Options["template"])
	}
}

func TestScanCmdListsFITSFiles(t *testing.T) {
	dir := t.TempDir()
	im := fits.NewImage2D(8, 6, nil)
	im.Header.Set("CTYPE1", "RA---TAN")
	if err := fits.WriteFile(filepath.Join(dir, "field.fits"), im); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cube := fits.NewCube(4, 4, 3, nil)
	if err := fits.WriteFile(filepath.Join(dir, "cube.fits"), cube); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	root := testRoot(newStubPipeline())
	cmd := newScanCmd(root)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{dir})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "8x6") || !strings.Contains(got, "RA---TAN") {
		t.Errorf("output missing 2D entry:\n%s", got)
	}
	if !strings.Contains(got, "4x4x3") {
		t.Errorf("output missing cube shape:\n%s", got)
	}
}

func TestConfigValidate(t *testing.T) {
	r := testRoot(newStubPipeline())
	r.cfg = &config.Config{
		Processing: config.Processing{ParallelJobs: 4},
		Convolve:   config.ConvolveConfig{KernelMethod: "interpolate"},
		Reproject:  config.ReprojectConfig{CanvasNX: 100, CanvasNY: 100},
		Preview:    config.PreviewConfig{QuantLow: 0.01, QuantHigh: 0.99},
	}
	cmd := newConfigValidateCmd(r)
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("valid configuration rejected: %v", err)
	}

	r.cfg.Processing.ParallelJobs = 0
	r.cfg.Convolve.KernelMethod = "bogus"
	cmd = newConfigValidateCmd(r)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	cmd.SetOut(&out)
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error for an invalid configuration")
	}
}

func TestRootCmdHasCoreSubcommands(t *testing.T) {
	r := testRoot(newStubPipeline())
	rootCmd := NewRootCmd(r.cfg, r.log, nil, nil)
	want := map[string]bool{
		"freqaxis": false, "cubeavg": false, "slice": false, "convolve": false,
		"gradient": false, "mask": false, "reproject": false, "reproject-gal": false,
		"healpix": false, "preview": false, "serve": false, "header": false,
		"scan": false, "maskinterp": false,
	}
	for _, c := range rootCmd.Commands() {
		name := strings.Fields(c.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("missing subcommand %s", name)
		}
	}
}
