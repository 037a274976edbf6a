// Package scanner classifies extension artifacts before they run.
//
// Classification is static: source files are stripped of comments and
// matched against pattern tables, never executed. The resulting tier
// gates every capability decision the artifact later makes, and runtime
// denials recorded against the artifact digest pull future
// classifications down one step at a time.
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/portcullis-dev/portcullis/internal/application/ports"
	"github.com/portcullis-dev/portcullis/internal/domain/compat"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// Version tags every report and cache key. Bump it when the rule tables
// change; cached reports from older rule sets then miss naturally.
const Version = "2"

// Scanner is the static compatibility scanner.
type Scanner struct {
	cache    ports.ScanCache
	feedback ports.FeedbackStore
	logger   *slog.Logger
	group    singleflight.Group
}

// New creates a scanner. cache and feedback may be nil: classification
// then runs uncached and without runtime downgrade history.
func New(cache ports.ScanCache, feedback ports.FeedbackStore, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{cache: cache, feedback: feedback, logger: logger}
}

// Classify scans the artifact and resolves its compatibility tier. The
// pattern profile is cached by content digest; the comparison against
// the manifest's declarations and the runtime denial history are
// contextual and recomputed on every call.
func (s *Scanner) Classify(ctx context.Context, req ports.ScanRequest) (compat.Report, error) {
	if err := ctx.Err(); err != nil {
		return compat.Report{}, err
	}
	digest, files, err := digestArtifact(req.Dir)
	if err != nil {
		return compat.Report{}, err
	}
	base, err := s.static(ctx, req.Dir, digest, files)
	if err != nil {
		return compat.Report{}, err
	}

	report := base
	report.Extension = req.Extension
	findings := append([]compat.Finding(nil), base.Findings...)
	report.Findings = append(findings, mismatchFindings(base.Imports, req.Declared)...)
	report.Verdict = compat.WorstVerdict(report.Findings)
	report.Tier = report.Verdict.Tier()
	return s.applyFeedback(ctx, digest, report), nil
}

// static returns the artifact's cached pattern profile, scanning on a
// miss. Concurrent classifications of the same digest share one scan.
func (s *Scanner) static(ctx context.Context, dir string, digest values.Digest, files []artifactFile) (compat.Report, error) {
	key := digest.String() + "@" + Version
	v, err, _ := s.group.Do(key, func() (any, error) {
		if s.cache != nil {
			cached, ok, err := s.cache.Get(ctx, key)
			if err != nil {
				s.logger.WarnContext(ctx, "scan cache read failed",
					"key", key,
					"error", err)
			} else if ok {
				return cached, nil
			}
		}
		report, err := s.scan(ctx, dir, digest, files)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Put(ctx, key, report); err != nil {
				s.logger.WarnContext(ctx, "scan cache write failed",
					"key", key,
					"error", err)
			}
		}
		return report, nil
	})
	if err != nil {
		return compat.Report{}, err
	}
	return v.(compat.Report), nil
}

// scan is the uncached static pass over the artifact's source files.
func (s *Scanner) scan(ctx context.Context, dir string, digest values.Digest, files []artifactFile) (compat.Report, error) {
	fsys := os.DirFS(dir)

	var findings []compat.Finding
	var imports []compat.ImportUse
	var classified []compat.FileClassification

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return compat.Report{}, err
		}
		if !isSourceFile(f.rel) {
			continue
		}
		data, err := fs.ReadFile(fsys, f.rel)
		if err != nil {
			return compat.Report{}, fmt.Errorf("reading %s: %w", f.rel, err)
		}
		src := string(data)

		fileFindings, fileImports := scanSource(f.rel, src)
		findings = append(findings, fileFindings...)
		imports = append(imports, fileImports...)
		classified = append(classified, classifyFile(f.rel, src))
	}

	boostDeclaredEntry(fsys, classified)

	verdict := compat.WorstVerdict(findings)
	return compat.Report{
		Digest:         digest.String(),
		ScannerVersion: Version,
		Verdict:        verdict,
		Tier:           verdict.Tier(),
		Findings:       findings,
		Imports:        imports,
		EntryPoint:     aggregateEntryPoint(classified),
		Files:          classified,
	}, nil
}

// boostDeclaredEntry raises entry point confidence for the file that
// package.json names as main. A declaration is a stronger signal than
// structure alone.
func boostDeclaredEntry(fsys fs.FS, files []compat.FileClassification) {
	data, err := fs.ReadFile(fsys, "package.json")
	if err != nil {
		return
	}
	var pkg struct {
		Main string `json:"main"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil || pkg.Main == "" {
		return
	}
	main := strings.TrimPrefix(pkg.Main, "./")
	for i := range files {
		if files[i].Path != main {
			continue
		}
		if files[i].Kind == compat.EntryPointMain && files[i].Confidence < confidenceHigh {
			files[i].Confidence = confidenceHigh
		}
		files[i].Patterns = append(files[i].Patterns, "package-main")
	}
}

// applyFeedback pulls the tier down one step per distinct runtime
// denial recorded against the digest. Feedback never improves a tier,
// and a broken feedback store leaves the static tier standing.
func (s *Scanner) applyFeedback(ctx context.Context, digest values.Digest, report compat.Report) compat.Report {
	if s.feedback == nil {
		return report
	}
	downgrades, err := s.feedback.Downgrades(ctx, digest)
	if err != nil {
		s.logger.WarnContext(ctx, "denial feedback unavailable, using static tier",
			"digest", digest.Short(),
			"error", err)
		return report
	}
	if downgrades == 0 {
		return report
	}
	tier := report.Tier
	for i := 0; i < downgrades; i++ {
		tier = tier.Downgrade()
	}
	if tier != report.Tier {
		s.logger.InfoContext(ctx, "tier downgraded by runtime denial feedback",
			"digest", digest.Short(),
			"static", report.Tier.String(),
			"effective", tier.String(),
			"denials", downgrades)
		report.Tier = tier
	}
	return report
}
