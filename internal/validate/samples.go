package validate

import (
	"path/filepath"
	"regexp"
)

var (
	forwardPattern = regexp.MustCompile(`^(.+)_1\.(fq|fastq)\.gz$`)
	reversePattern = regexp.MustCompile(`^(.+)_2\.(fq|fastq)\.gz$`)
)

// SamplePair is one sample's forward/reverse FASTQ pairing, as found in
// a run's raw/ directory.
type SamplePair struct {
	Sample  string `json:"sample"`
	Forward string `json:"forward,omitempty"`
	Reverse string `json:"reverse,omitempty"`
	Paired  bool   `json:"paired"`
}

// Samples scans run_dir/raw/ and groups FASTQ files into sample pairs
// by the `<sample>_1.fq.gz` / `<sample>_2.fq.gz` naming convention,
// backing the GET /runs/{run_id}/samples pair-validation endpoint.
func Samples(runDir string) ([]SamplePair, error) {
	forward := map[string]string{}
	reverse := map[string]string{}
	for _, path := range globMany(filepath.Join(runDir, "raw"), "*_1.fq.gz", "*_1.fastq.gz") {
		base := filepath.Base(path)
		if m := forwardPattern.FindStringSubmatch(base); m != nil {
			forward[m[1]] = base
		}
	}
	for _, path := range globMany(filepath.Join(runDir, "raw"), "*_2.fq.gz", "*_2.fastq.gz") {
		base := filepath.Base(path)
		if m := reversePattern.FindStringSubmatch(base); m != nil {
			reverse[m[1]] = base
		}
	}

	samples := map[string]*SamplePair{}
	for name, f := range forward {
		samples[name] = &SamplePair{Sample: name, Forward: f}
	}
	for name, r := range reverse {
		if sp, ok := samples[name]; ok {
			sp.Reverse = r
		} else {
			samples[name] = &SamplePair{Sample: name, Reverse: r}
		}
	}

	out := make([]SamplePair, 0, len(samples))
	for _, sp := range samples {
		sp.Paired = sp.Forward != "" && sp.Reverse != ""
		out = append(out, *sp)
	}
	return out, nil
}
