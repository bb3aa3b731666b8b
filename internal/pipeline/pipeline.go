package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/ricardomdn/broll/internal/config"
	"github.com/ricardomdn/broll/internal/domain/selection"
	"github.com/ricardomdn/broll/internal/export"
	"github.com/ricardomdn/broll/internal/ports"
	"github.com/ricardomdn/broll/internal/ports/adapters/gemini"
	"github.com/ricardomdn/broll/internal/ports/adapters/pexels"
	"github.com/ricardomdn/broll/internal/resolver"
	"github.com/ricardomdn/broll/internal/types"
	"github.com/ricardomdn/broll/internal/usecase"
)

const manifestName = "segments.json"

type Config struct {
	Script   string
	Keys     types.APIKeys
	OutDir   string
	ZipName  string // when set, export resolved assets to this file inside the run dir
	Settings *config.Config
	Logf     func(format string, args ...any)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Script) == "" {
		return usecase.ErrEmptyScript
	}
	if c.Keys.Gemini == "" || c.Keys.Pexels == "" {
		return usecase.ErrMissingAPIKey
	}
	if c.Settings == nil {
		return errors.New("settings are required")
	}
	return c.Settings.Validate()
}

// Run executes one full generation: segmentation, batch resolution, manifest
// write, and optional ZIP export. It returns the run's output directory.
func Run(ctx context.Context, cfg Config) (string, error) {
	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	uc := newUsecase(cfg.Settings, logf)
	segments, err := uc.Generate(ctx, cfg.Keys, cfg.Script)
	if err != nil {
		return "", err
	}

	outDir := cfg.OutDir
	if outDir == "" {
		outDir = "out"
	}
	runDir := buildRunOutDir(outDir, cfg.Script, time.Now().UTC())
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	m := types.Manifest{
		Script:      gemini.NormalizeScript(cfg.Script),
		GeneratedAt: time.Now().UTC(),
		Segments:    segments,
	}
	manifestPath := filepath.Join(runDir, manifestName)
	if err := SaveManifest(manifestPath, m); err != nil {
		return "", err
	}

	resolved := 0
	for _, s := range segments {
		if s.Resolved() {
			resolved++
		}
	}
	logf("manifest written (%d/%d segments resolved): %s", resolved, len(segments), manifestPath)

	if cfg.ZipName != "" {
		zipPath := filepath.Join(runDir, cfg.ZipName)
		if err := exportZip(ctx, segments, zipPath, logf); err != nil {
			return "", err
		}
	}
	return runDir, nil
}

// RefineConfig drives a single-segment re-resolution against a saved
// manifest.
type RefineConfig struct {
	ManifestPath string
	SegmentID    string
	Term         string // manual replacement term; empty means AI-suggested
	Keys         types.APIKeys
	Settings     *config.Config
	Logf         func(format string, args ...any)
}

// Refine loads the manifest, re-resolves exactly one segment, and writes the
// manifest back. All sibling segments are preserved byte for byte.
func Refine(ctx context.Context, cfg RefineConfig) (types.ScriptSegment, error) {
	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	if cfg.Settings == nil {
		cfg.Settings = config.Default()
	}

	m, err := LoadManifest(cfg.ManifestPath)
	if err != nil {
		return types.ScriptSegment{}, err
	}

	uc := newUsecase(cfg.Settings, logf)
	uc.Session().Replace(m.Segments)

	var seg types.ScriptSegment
	if cfg.Term != "" {
		seg, err = uc.Refine(ctx, cfg.Keys, cfg.SegmentID, cfg.Term)
	} else {
		seg, err = uc.RefineWithAI(ctx, cfg.Keys, cfg.SegmentID)
	}
	if err != nil {
		return types.ScriptSegment{}, err
	}

	m.Segments, _ = uc.Session().Snapshot()
	if err := SaveManifest(cfg.ManifestPath, m); err != nil {
		return types.ScriptSegment{}, err
	}
	logf("segment %s now uses %q", seg.ID, seg.SearchTerm)
	return seg, nil
}

// Export packages a saved manifest's resolved assets into a ZIP next to it.
func Export(ctx context.Context, manifestPath, zipName string, logf func(string, ...any)) error {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	m, err := LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	zipPath := filepath.Join(filepath.Dir(manifestPath), zipName)
	return exportZip(ctx, m.Segments, zipPath, logf)
}

func exportZip(ctx context.Context, segments []types.ScriptSegment, zipPath string, logf func(string, ...any)) error {
	f, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	ex := export.New(nil, logf)
	n, err := ex.Export(ctx, segments, f, func(done, total int) {
		logf("downloading clips %d/%d", done, total)
	})
	if err != nil {
		os.Remove(zipPath)
		return err
	}
	logf("archive written (%d clips): %s", n, zipPath)
	return nil
}

func newUsecase(settings *config.Config, logf func(string, ...any)) *usecase.Usecase {
	analyzer := gemini.New(settings.Gemini.Model, settings.Gemini.Policy)
	searcher := pexels.New(
		pexels.WithPerPage(settings.Search.PerPage),
		pexels.WithRetry(settings.Search.MaxRetries, time.Duration(settings.Search.BackoffMS)*time.Millisecond),
		pexels.WithLogf(logf),
	)

	rng := selection.NewRand()
	res := resolver.New(searcher, selection.NewPicker(rng), rng, resolver.Config{
		StaggerInterval: time.Duration(settings.Resolver.StaggerMS) * time.Millisecond,
		TierGap:         time.Duration(settings.Resolver.TierGapMS) * time.Millisecond,
		FallbackTerms:   settings.Resolver.FallbackTerms,
		FallbackMaxPage: settings.Resolver.FallbackMaxPage,
		SafetyTerm:      settings.Resolver.SafetyTerm,
		TermTopN:        settings.Resolver.TermTopN,
		FallbackTopN:    settings.Resolver.FallbackTopN,
	}, logf)

	return usecase.New(usecase.Deps{
		Analyzer:   analyzer,
		Resolver:   res,
		RefineTopN: settings.Resolver.RefineTopN,
		Logf:       logf,
	})
}

func SaveManifest(path string, m types.Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

func LoadManifest(path string) (types.Manifest, error) {
	var m types.Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

func buildRunOutDir(outRoot, script string, now time.Time) string {
	name := normalizePathSegment(firstWords(script, 4))
	if name == "" {
		name = "script"
	}
	ts := now.UTC().Format("20060102-150405Z")
	seed := fmt.Sprintf("%s|%d", script, now.UTC().UnixNano())
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, hash(seed)[:6]))
}

func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var _ ports.ScriptAnalyzer = (*gemini.Adapter)(nil)
var _ ports.VideoSearcher = (*pexels.Adapter)(nil)
