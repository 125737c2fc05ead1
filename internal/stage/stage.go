// Package stage is the closed stage registry. Per spec §9's REDESIGN
// FLAGS, stages are a tagged variant over a closed set built once at
// program start, not a runtime-assembled dict: each Definition carries
// everything the controller, validator and template engine need to know
// about one pipeline step.
package stage

// Name identifies one of the six canonical pipeline stages.
type Name string

const (
	QCRaw         Name = "qc_raw"
	Trim          Name = "trim"
	QCTrimmed     Name = "qc_trimmed"
	Star          Name = "star"
	FeatureCounts Name = "featurecounts"
	DESeq2        Name = "deseq2"
)

// Definition is everything fixed about one stage: its dependency list,
// its done-flag path (relative to the run directory), its cleanup glob
// list for a confirmed rerun, and the template file it renders from.
type Definition struct {
	Name         Name
	DependsOn    []Name
	DoneFlag     string // relative to run_dir
	CleanupGlobs []string
	Template     string // filename under install_dir/slurm_templates/
}

// order is the canonical stage order, per spec §4.6's table.
var order = []Definition{
	{
		Name:     QCRaw,
		DoneFlag: "qc_raw/qc_raw_done.flag",
		CleanupGlobs: []string{
			"qc_raw/*.html",
			"qc_raw/*.zip",
		},
		Template: "qc_raw.template",
	},
	{
		Name:      Trim,
		DependsOn: []Name{QCRaw},
		DoneFlag:  "trimmed/trimming_done.flag",
		CleanupGlobs: []string{
			"trimmed/*.fq.gz",
		},
		Template: "trim.template",
	},
	{
		Name:      QCTrimmed,
		DependsOn: []Name{Trim},
		DoneFlag:  "qc_trimmed/qc_trimmed_done.flag",
		CleanupGlobs: []string{
			"qc_trimmed/*.html",
			"qc_trimmed/*.zip",
		},
		Template: "qc_trimmed.template",
	},
	{
		Name:      Star,
		DependsOn: []Name{Trim},
		DoneFlag:  "star/star_alignment_done.flag",
		CleanupGlobs: []string{
			// star/genome_index/ is intentionally excluded: per the Open
			// Questions resolution, the genome index is a per-run artifact
			// that survives a confirmed rerun.
			"star/*.bam",
			"star/*.bai",
			"star/*.out",
			"star/*.tab",
		},
		Template: "star.template",
	},
	{
		Name:      FeatureCounts,
		DependsOn: []Name{Star},
		DoneFlag:  "featurecounts/featurecounts_done.flag",
		CleanupGlobs: []string{
			"featurecounts/counts.txt",
			"featurecounts/counts.txt.summary",
		},
		Template: "featurecounts.template",
	},
	{
		Name:      DESeq2,
		DependsOn: []Name{FeatureCounts},
		DoneFlag:  "logs/deseq2_done.flag",
		CleanupGlobs: []string{
			"deseq2/*",
		},
		Template: "deseq2.template",
	},
}

// All returns the six stage definitions in canonical order.
func All() []Definition {
	out := make([]Definition, len(order))
	copy(out, order)
	return out
}

// Names returns the six stage names in canonical order.
func Names() []Name {
	names := make([]Name, len(order))
	for i, d := range order {
		names[i] = d.Name
	}
	return names
}

// Get looks up a stage definition by name. ok is false for an unknown
// stage name, which callers map to a NotFoundError at their boundary.
func Get(name Name) (Definition, bool) {
	for _, d := range order {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// IsValid reports whether name is one of the six recognized stages.
func IsValid(name Name) bool {
	_, ok := Get(name)
	return ok
}
