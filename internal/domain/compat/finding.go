package compat

import "fmt"

// Verdict is the scan-level outcome derived from the worst finding.
type Verdict int

const (
	VerdictPass Verdict = iota
	VerdictWarn
	VerdictFail
)

// String returns a human-readable verdict.
func (v Verdict) String() string {
	switch v {
	case VerdictPass:
		return "pass"
	case VerdictWarn:
		return "warn"
	case VerdictFail:
		return "fail"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// MarshalText implements encoding.TextMarshaler so verdicts appear as
// their tokens in report output.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Verdict) UnmarshalText(text []byte) error {
	switch string(text) {
	case "pass":
		*v = VerdictPass
	case "warn":
		*v = VerdictWarn
	case "fail":
		*v = VerdictFail
	default:
		return fmt.Errorf("unknown verdict %q", string(text))
	}
	return nil
}

// Tier maps a scan verdict onto the compatibility tier new decisions use.
func (v Verdict) Tier() Tier {
	switch v {
	case VerdictPass:
		return TierCompatible
	case VerdictWarn:
		return TierWarning
	default:
		return TierBlocked
	}
}

// FindingClass groups findings by what produced them.
type FindingClass int

const (
	// ClassForbiddenPattern marks source constructs the sandbox cannot
	// host at all, such as native module loading.
	ClassForbiddenPattern FindingClass = iota
	// ClassFlaggedPattern marks constructs that run but deserve review,
	// such as dynamic code evaluation.
	ClassFlaggedPattern
	// ClassCapabilityPolicy marks declared capabilities that conflict
	// with the active policy configuration.
	ClassCapabilityPolicy
)

// String returns the report token for the class.
func (c FindingClass) String() string {
	switch c {
	case ClassForbiddenPattern:
		return "forbidden-pattern"
	case ClassFlaggedPattern:
		return "flagged-pattern"
	case ClassCapabilityPolicy:
		return "capability-policy"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c FindingClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *FindingClass) UnmarshalText(text []byte) error {
	switch string(text) {
	case "forbidden-pattern":
		*c = ClassForbiddenPattern
	case "flagged-pattern":
		*c = ClassFlaggedPattern
	case "capability-policy":
		*c = ClassCapabilityPolicy
	default:
		return fmt.Errorf("unknown finding class %q", string(text))
	}
	return nil
}

// Finding is one scan observation tied to a location in the extension
// source.
type Finding struct {
	Class   FindingClass `json:"class"`
	Rule    string       `json:"rule"`
	Message string       `json:"message"`
	File    string       `json:"file,omitempty"`
	Line    int          `json:"line,omitempty"`
	Snippet string       `json:"snippet,omitempty"`
	Verdict Verdict      `json:"-"`
}

// EntryPointKind classifies what role a scanned file plays in the
// extension.
type EntryPointKind int

const (
	EntryPointUnknown EntryPointKind = iota
	EntryPointMain
	EntryPointSubModule
	EntryPointNonExtension
)

// String returns the report token for the entry point kind.
func (k EntryPointKind) String() string {
	switch k {
	case EntryPointMain:
		return "entry-point"
	case EntryPointSubModule:
		return "sub-module"
	case EntryPointNonExtension:
		return "non-extension"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k EntryPointKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EntryPointKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "entry-point":
		*k = EntryPointMain
	case "sub-module":
		*k = EntryPointSubModule
	case "non-extension":
		*k = EntryPointNonExtension
	case "unknown":
		*k = EntryPointUnknown
	default:
		return fmt.Errorf("unknown entry point kind %q", string(text))
	}
	return nil
}

// Classification pairs an entry point kind with how confident the
// scanner is in it.
type Classification struct {
	Kind       EntryPointKind `json:"kind"`
	Confidence float64        `json:"confidence"`
}

// FileClassification records what role one source file plays.
type FileClassification struct {
	Path string `json:"path"`
	Classification
	// Patterns lists the structural signals the classification rests on.
	Patterns []string `json:"patterns,omitempty"`
}

// ImportUse records one runtime-module import observed in the source,
// with the capability kind tokens using that module implies.
type ImportUse struct {
	Module string   `json:"module"`
	Kinds  []string `json:"kinds"`
	File   string   `json:"file"`
	Line   int      `json:"line"`
}

// Report is the full result of scanning one extension artifact.
type Report struct {
	Extension      string               `json:"extension"`
	Digest         string               `json:"digest"`
	ScannerVersion string               `json:"scanner_version"`
	Verdict        Verdict              `json:"verdict"`
	Tier           Tier                 `json:"tier"`
	Findings       []Finding            `json:"findings"`
	Imports        []ImportUse          `json:"imports,omitempty"`
	EntryPoint     Classification       `json:"entry_point"`
	Files          []FileClassification `json:"files,omitempty"`
}

// WorstVerdict folds findings into the scan verdict. An empty finding
// list passes.
func WorstVerdict(findings []Finding) Verdict {
	worst := VerdictPass
	for _, f := range findings {
		if f.Verdict > worst {
			worst = f.Verdict
		}
	}
	return worst
}
