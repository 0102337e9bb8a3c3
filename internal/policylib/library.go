// Package policylib discovers, indexes, and serves the versioned
// policy library rooted at a single directory, laid out as
// category/[subcategory/]v<N>/<group>/<name>.rego.
//
// Grounded on the teacher's internal/policy/loader.go (afero-backed
// tree walk) generalized to the bucket algorithm documented by the
// original PolicyLoader._load_policies in policy_loader.py.
package policylib

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/Principled-Evolution/aicertify/internal/logging"
	"github.com/Principled-Evolution/aicertify/internal/policymeta"
)

// Categories is the fixed, closed set of top-level policy categories.
var Categories = []string{"global", "international", "industry_specific", "operational", "custom"}

// Extension is the file suffix recognized as a policy artifact.
const Extension = ".rego"

var versionDirRe = regexp.MustCompile(`^v(\d+)$`)

// ErrLibraryNotFound is returned (and fatal at initialization) when the
// library root does not exist.
var ErrLibraryNotFound = errors.New("policylib: library root not found")

// ErrLibraryMalformed is returned when the root exists but no
// recognizable policy could be indexed under it at all.
var ErrLibraryMalformed = errors.New("policylib: library root contains no usable policies")

// ErrBucketNotFound is returned by GetPolicies when the
// (category, subcategory, version) tuple has no entries.
var ErrBucketNotFound = errors.New("policylib: bucket not found")

// Policy is one loaded policy artifact.
type Policy struct {
	Path        string // library root joined with the file's path under it
	Category    string
	Subcategory string // empty for global-style direct policies
	Version     string // e.g. "v1"
	PackageName string
	Content     string
	Metadata    *policymeta.Metadata
}

// IsTest reports whether this file is a co-located Rego test file
// (*_test.rego), which the loader indexes but most selectors exclude.
func (p *Policy) IsTest() bool {
	return strings.HasSuffix(p.Path, "_test"+Extension)
}

type bucketKey struct {
	category    string
	subcategory string
	version     string
}

// Library is the index over a policy root. A freshly opened Library is
// immutable; Reload (and Watch, which calls it) swap the index under
// mu, so every accessor takes the read lock.
type Library struct {
	root string
	fs   afero.Fs

	mu          sync.RWMutex
	buckets     map[bucketKey][]*Policy
	packageIdx  map[string]*Policy
	allPolicies []*Policy
	versionFile string
}

// Open scans root and builds the Library Index and Package Index. The
// scan happens once at startup; call Reload to re-scan, or Watch to
// reload automatically as the library root changes on disk.
func Open(root string) (*Library, error) {
	return OpenFs(afero.NewOsFs(), root)
}

// OpenFs is Open against an arbitrary afero.Fs, enabling in-memory
// fixtures in tests (mirrors the teacher's NewLoader(fs, baseDir)
// pattern).
func OpenFs(fs afero.Fs, root string) (*Library, error) {
	log := logging.For("policylib")

	exists, err := afero.DirExists(fs, root)
	if err != nil {
		return nil, fmt.Errorf("policylib: check root: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrLibraryNotFound, root)
	}

	lib := &Library{
		root:       root,
		fs:         fs,
		buckets:    make(map[bucketKey][]*Policy),
		packageIdx: make(map[string]*Policy),
	}

	if raw, err := afero.ReadFile(fs, filepath.Join(root, "VERSION")); err == nil {
		lib.versionFile = strings.TrimSpace(string(raw))
		checkCompatibility(log, lib.versionFile)
	}

	buckets, packageIdx, allPolicies, err := scanLibrary(fs, root, log)
	if err != nil {
		return nil, err
	}
	if len(allPolicies) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrLibraryMalformed, root)
	}
	lib.buckets, lib.packageIdx, lib.allPolicies = buckets, packageIdx, allPolicies

	log.Info("policy library opened", "root", root, "policies", len(lib.allPolicies), "buckets", len(lib.buckets))
	return lib, nil
}

// Reload re-scans the library root and atomically swaps the index. A
// reload that finds no usable policies is rejected and the previous
// index is kept, so a transient empty directory mid-edit cannot blank
// out an already-open Library.
func (l *Library) Reload() error {
	log := logging.For("policylib")

	if raw, err := afero.ReadFile(l.fs, filepath.Join(l.root, "VERSION")); err == nil {
		version := strings.TrimSpace(string(raw))
		checkCompatibility(log, version)
		l.mu.Lock()
		l.versionFile = version
		l.mu.Unlock()
	}

	buckets, packageIdx, allPolicies, err := scanLibrary(l.fs, l.root, log)
	if err != nil {
		return err
	}
	if len(allPolicies) == 0 {
		return fmt.Errorf("%w: %s", ErrLibraryMalformed, l.root)
	}

	l.mu.Lock()
	l.buckets, l.packageIdx, l.allPolicies = buckets, packageIdx, allPolicies
	l.mu.Unlock()

	log.Info("policy library reloaded", "root", l.root, "policies", len(allPolicies), "buckets", len(buckets))
	return nil
}

// checkCompatibility is a warning-only check against the supported
// VERSION range, grounded on policy_loader.py's _check_compatibility.
func checkCompatibility(log logging.Logger, version string) {
	const minSupported = "1.0.0"
	const maxSupportedMajor = "2"
	if version == "" {
		return
	}
	if version < minSupported {
		log.Warn("policy library VERSION older than minimum supported", "version", version, "min", minSupported)
	}
	major := strings.SplitN(version, ".", 2)[0]
	if major > maxSupportedMajor {
		log.Warn("policy library VERSION may be incompatible", "version", version, "maxMajor", maxSupportedMajor)
	}
}

// scanLibrary walks root and builds a fresh bucket/package index. It is
// side-effect free on any *Library so Open and Reload can both build a
// candidate index and only publish it once it is known to be usable.
func scanLibrary(fs afero.Fs, root string, log logging.Logger) (map[bucketKey][]*Policy, map[string]*Policy, []*Policy, error) {
	buckets := make(map[bucketKey][]*Policy)
	packageIdx := make(map[string]*Policy)
	var allPolicies []*Policy

	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), Extension) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			log.Warn("cannot relativize policy path", "path", path, "error", err)
			return nil
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) == 0 {
			return nil
		}

		category := parts[0]
		if !isKnownCategory(category) {
			log.Warn("skipping policy in unrecognized category", "path", path, "category", category)
			return nil
		}

		versionIdx, version := findVersionSegment(parts)
		if versionIdx == -1 {
			log.Warn("skipping policy with no version directory", "path", path)
			return nil
		}

		var subcategory string
		switch {
		case versionIdx == 1:
			subcategory = ""
		case versionIdx == 2:
			subcategory = parts[1]
		default:
			log.Warn("skipping policy with unexpected path structure", "path", path)
			return nil
		}

		f, err := fs.Open(path)
		if err != nil {
			log.Warn("cannot open policy file", "path", path, "error", err)
			return nil
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			log.Warn("cannot read policy file", "path", path, "error", err)
			return nil
		}

		md := policymeta.ParseContent(path, string(content))
		if md.PackageName == "" {
			log.Warn("skipping policy with no parseable package declaration", "path", path)
			return nil
		}

		p := &Policy{
			Path:        path,
			Category:    category,
			Subcategory: subcategory,
			Version:     version,
			PackageName: md.PackageName,
			Content:     string(content),
			Metadata:    md,
		}

		if !p.IsTest() {
			if existing, ok := packageIdx[p.PackageName]; ok {
				log.Warn("duplicate package declaration, last writer wins", "package", p.PackageName, "previous", existing.Path, "new", p.Path)
			}
			packageIdx[p.PackageName] = p
		}

		key := bucketKey{category, subcategory, version}
		buckets[key] = append(buckets[key], p)
		allPolicies = append(allPolicies, p)
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return buckets, packageIdx, allPolicies, nil
}

func isKnownCategory(c string) bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

func findVersionSegment(parts []string) (int, string) {
	for i, part := range parts {
		if versionDirRe.MatchString(part) {
			return i, part
		}
	}
	return -1, ""
}

// ListCategories returns every (category, subcategory) pair present in
// the library.
func (l *Library) ListCategories() [][2]string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[[2]string]struct{})
	var out [][2]string
	for k := range l.buckets {
		pair := [2]string{k.category, k.subcategory}
		if _, ok := seen[pair]; ok {
			continue
		}
		seen[pair] = struct{}{}
		out = append(out, pair)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// LatestVersion returns the version segment with the greatest numeric
// suffix for the given bucket, or "" if none exists.
func (l *Library) LatestVersion(category, subcategory string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return latestVersionLocked(l.buckets, category, subcategory)
}

func latestVersionLocked(buckets map[bucketKey][]*Policy, category, subcategory string) string {
	var versions []string
	for k := range buckets {
		if k.category == category && k.subcategory == subcategory {
			versions = append(versions, k.version)
		}
	}
	if len(versions) == 0 {
		return ""
	}
	sort.Slice(versions, func(i, j int) bool {
		return versionSuffix(versions[i]) > versionSuffix(versions[j])
	})
	return versions[0]
}

func versionSuffix(v string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(v, "v"))
	if err != nil {
		return 0
	}
	return n
}

// GetPolicies returns the ordered sequence of Policy for a bucket. An
// empty version string resolves to LatestVersion.
func (l *Library) GetPolicies(category, subcategory, version string) ([]*Policy, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if version == "" {
		version = latestVersionLocked(l.buckets, category, subcategory)
		if version == "" {
			return nil, fmt.Errorf("%w: %s/%s", ErrBucketNotFound, category, subcategory)
		}
	}
	key := bucketKey{category, subcategory, version}
	policies, ok := l.buckets[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s/%s", ErrBucketNotFound, category, subcategory, version)
	}
	out := make([]*Policy, len(policies))
	copy(out, policies)
	return out, nil
}

// GetPoliciesByFolder returns every non-test policy whose path is under
// folder.
func (l *Library) GetPoliciesByFolder(folder string) []*Policy {
	l.mu.RLock()
	defer l.mu.RUnlock()

	folder = filepath.Clean(folder)
	var out []*Policy
	for _, p := range l.allPolicies {
		if p.IsTest() {
			continue
		}
		if strings.HasPrefix(filepath.Clean(p.Path), folder) {
			out = append(out, p)
		}
	}
	return out
}

// PackageLookup returns the Policy that declares the given package
// name, if any.
func (l *Library) PackageLookup(pkg string) (*Policy, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.packageIdx[pkg]
	return p, ok
}

// AllPolicies returns every indexed policy, in scan order.
func (l *Library) AllPolicies() []*Policy {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Policy, len(l.allPolicies))
	copy(out, l.allPolicies)
	return out
}

// Root returns the library's root directory.
func (l *Library) Root() string { return l.root }
