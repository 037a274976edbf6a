package output

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/owenrumney/go-sarif/v3/pkg/report/v210/sarif"

	"github.com/portcullis-dev/portcullis/internal/domain/compat"
)

type sarifMapper struct {
	report       *compat.Report
	artifactPath string
	cwd          string
	artifacts    map[string]*sarif.Artifact // Deduplicated by URI
	artifactURIs []string                   // Insertion order, so output stays diffable
	roles        map[string]compat.FileClassification
}

func newSARIFMapper(report *compat.Report, artifactPath string) *sarifMapper {
	cwd, _ := os.Getwd() // Best effort, ignore error
	roles := make(map[string]compat.FileClassification, len(report.Files))
	for _, file := range report.Files {
		roles[file.Path] = file
	}
	return &sarifMapper{
		report:       report,
		artifactPath: artifactPath,
		cwd:          cwd,
		artifacts:    make(map[string]*sarif.Artifact),
		roles:        roles,
	}
}

// mapToRun populates the SARIF run with rules, results, artifacts, and invocations.
func (m *sarifMapper) mapToRun(run *sarif.Run) {
	m.addRules(run)
	m.addResults(run)
	m.addArtifacts(run)
	m.addInvocation(run)
	m.addProperties(run)
}

// addRules converts the distinct finding rules to SARIF rules, in
// first-appearance order.
func (m *sarifMapper) addRules(run *sarif.Run) {
	seen := make(map[string]bool, len(m.report.Findings))
	for _, finding := range m.report.Findings {
		if seen[finding.Rule] {
			continue
		}
		seen[finding.Rule] = true

		rule := sarif.NewReportingDescriptor().WithID(finding.Rule)
		rule.WithName(finding.Rule)

		desc := m.classDescription(finding.Class)
		rule.WithShortDescription(&sarif.MultiformatMessageString{
			Text: &desc,
		})

		rule.WithDefaultConfiguration(&sarif.ReportingConfiguration{
			Level: m.mapVerdictToLevel(finding.Verdict),
		})

		props := sarif.NewPropertyBag()
		props.WithTags([]string{"portcullis", finding.Class.String()})
		props.Add("class", finding.Class.String())
		rule.WithProperties(props)

		run.Tool.Driver.AddRule(rule)
	}
}

// addResults converts findings to SARIF results.
func (m *sarifMapper) addResults(run *sarif.Run) {
	for _, finding := range m.report.Findings {
		run.AddResult(m.mapFinding(finding))
	}
}

// mapFinding converts a single finding to a SARIF result.
func (m *sarifMapper) mapFinding(finding compat.Finding) *sarif.Result {
	result := sarif.NewRuleResult(finding.Rule)

	result.Level = m.mapVerdictToLevel(finding.Verdict)
	result.Kind = "fail"
	result.Message = sarif.NewTextMessage(finding.Message)

	if finding.File != "" {
		result.Locations = []*sarif.Location{m.createLocation(finding.File, finding.Line)}
	}

	props := sarif.NewPropertyBag()
	props.Add("class", finding.Class.String())
	props.Add("severity", finding.Verdict.String())
	if finding.Snippet != "" {
		props.Add("snippet", finding.Snippet)
	}
	result.WithProperties(props)

	return result
}

// mapVerdictToLevel converts a finding severity to a SARIF level.
func (m *sarifMapper) mapVerdictToLevel(verdict compat.Verdict) string {
	switch verdict {
	case compat.VerdictFail:
		return "error"
	case compat.VerdictWarn:
		return "warning"
	default:
		return "note"
	}
}

// classDescription describes what a finding class means.
func (m *sarifMapper) classDescription(class compat.FindingClass) string {
	switch class {
	case compat.ClassForbiddenPattern:
		return "Source construct the extension sandbox cannot host"
	case compat.ClassFlaggedPattern:
		return "Source construct that runs in the sandbox but deserves review"
	case compat.ClassCapabilityPolicy:
		return "Capability use that conflicts with the active policy"
	default:
		return "Scan finding"
	}
}

// createLocation builds a physical location for a file inside the
// scanned artifact.
func (m *sarifMapper) createLocation(file string, line int) *sarif.Location {
	uri := m.artifactURI(file)
	m.registerArtifact(file)

	pLoc := sarif.NewPhysicalLocation().
		WithArtifactLocation(sarif.NewArtifactLocation().WithURI(uri))

	if line > 0 {
		pLoc.WithRegion(sarif.NewRegion().WithStartLine(line))
	}

	return sarif.NewLocation().WithPhysicalLocation(pLoc)
}

// artifactURI converts an artifact-relative path to a SARIF-compliant URI.
func (m *sarifMapper) artifactURI(file string) string {
	path := file
	if m.artifactPath != "" {
		path = filepath.Join(m.artifactPath, file)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(path) // Fallback to original
	}

	// Try to make relative to CWD
	if m.cwd != "" {
		if rel, err := filepath.Rel(m.cwd, abs); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}

	// Use absolute file:// URI
	return "file://" + filepath.ToSlash(abs)
}

// registerArtifact adds a scanned file to the artifacts list (deduplicated).
func (m *sarifMapper) registerArtifact(file string) {
	uri := m.artifactURI(file)
	if _, exists := m.artifacts[uri]; exists {
		return
	}

	artifact := sarif.NewArtifact().
		WithLocation(sarif.NewArtifactLocation().WithURI(uri))

	// Embed small source files so viewers can show code context.
	if m.artifactPath != "" {
		const maxContentSize = 512 * 1024

		absPath, err := filepath.Abs(filepath.Join(m.artifactPath, file))
		if err == nil {
			if info, err := os.Stat(absPath); err == nil && !info.IsDir() {
				artifact.WithLength(int(info.Size()))
				if info.Size() < maxContentSize {
					//nolint:gosec // G304: path is rooted in the scanned artifact directory
					content, err := os.ReadFile(absPath)
					if err == nil {
						artifact.WithContents(sarif.NewArtifactContent().WithText(string(content)))
					}
				}
			}
		}
	}

	if role, ok := m.roles[file]; ok {
		props := sarif.NewPropertyBag()
		props.Add("role", role.Kind.String())
		props.Add("confidence", role.Confidence)
		artifact.WithProperties(props)
	}

	m.artifacts[uri] = artifact
	m.artifactURIs = append(m.artifactURIs, uri)
}

// addArtifacts registers every classified source file, then emits the
// collected artifacts in insertion order.
func (m *sarifMapper) addArtifacts(run *sarif.Run) {
	for _, file := range m.report.Files {
		m.registerArtifact(file.Path)
	}
	for _, uri := range m.artifactURIs {
		run.AddArtifact(m.artifacts[uri])
	}
}

// addInvocation adds scan metadata to the run.
func (m *sarifMapper) addInvocation(run *sarif.Run) {
	invocation := sarif.NewInvocation()

	// The scan produced a report, so the tool itself ran to completion
	// regardless of the verdict.
	invocation.ExecutionSuccessful = ptrBool(true)

	if hostname, err := os.Hostname(); err == nil {
		invocation.Machine = &hostname
	}

	if m.cwd != "" {
		cwd := "file://" + filepath.ToSlash(m.cwd)
		invocation.WorkingDirectory = sarif.NewArtifactLocation().WithURI(cwd)
	}

	props := sarif.NewPropertyBag()
	props.Add("digest", m.report.Digest)
	props.Add("scannerVersion", m.report.ScannerVersion)
	props.Add("tier", m.report.Tier.String())
	invocation.WithProperties(props)

	run.AddInvocation(invocation)
}

// addProperties adds the verdict and summary counts to run properties.
func (m *sarifMapper) addProperties(run *sarif.Run) {
	props := sarif.NewPropertyBag()
	props.Add("extension", m.report.Extension)
	props.Add("verdict", m.report.Verdict.String())
	props.Add("summary", Summarize(m.report))
	if len(m.report.Imports) > 0 {
		props.Add("imports", m.report.Imports)
	}
	run.WithProperties(props)
}

func ptrBool(b bool) *bool {
	return &b
}
