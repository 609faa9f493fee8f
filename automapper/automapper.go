// Package automapper implements the thin shell this system owns around the
// automapper rules engine: file I/O over a room's automapper directory and
// invocation of the external rules-preprocessor binary. The rules engine
// itself — parsing and applying DDNet-rules/JSON/rules++ sources to paint a
// tile layer — is an out-of-scope external collaborator (spec.md §1); this
// package only ever shells out to it and relays its diagnostics.
package automapper

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/ddnet/maproom/apierrors"
)

// File extensions recognized in a room's automapper directory (spec.md §6).
const (
	ExtRules        = ".rules"
	ExtJSON         = ".json"
	ExtPreprocessor = ".rpp"
)

// Diagnostic is one parsed compiler/engine message, in the fixed
// `[line:col-line:col] message` shape spec.md §9 names.
type Diagnostic struct {
	StartLine, StartCol int
	EndLine, EndCol     int
	Message             string
}

var diagnosticPattern = regexp.MustCompile(`\[(\d+):(\d+)-(\d+):(\d+)\]\s*(.*)`)

// ParseDiagnostics extracts every `[line:col-line:col] message` line from a
// child process's stderr.
func ParseDiagnostics(stderr string) []Diagnostic {
	matches := diagnosticPattern.FindAllStringSubmatch(stderr, -1)
	out := make([]Diagnostic, 0, len(matches))
	for _, m := range matches {
		sl, _ := strconv.Atoi(m[1])
		sc, _ := strconv.Atoi(m[2])
		el, _ := strconv.Atoi(m[3])
		ec, _ := strconv.Atoi(m[4])
		out = append(out, Diagnostic{StartLine: sl, StartCol: sc, EndLine: el, EndCol: ec, Message: m[5]})
	}
	return out
}

// Runner invokes the external rules preprocessor/engine. A zero-value
// Runner with an empty BinaryPath rejects any operation that would need
// the external process (.rpp compilation, apply_automapper), while still
// serving plain file I/O on .rules/.json sources.
type Runner struct {
	// BinaryPath is the CLI's configured --rules-preprocessor path.
	BinaryPath string
	Timeout    time.Duration
}

func (rn Runner) timeout() time.Duration {
	if rn.Timeout <= 0 {
		return 10 * time.Second
	}
	return rn.Timeout
}

// List returns every automapper file name in dir (spec.md §4.3: "scan the
// room's automapper directory").
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindInternal, "scan automapper directory", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ExtRules, ExtJSON, ExtPreprocessor:
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// Get returns the raw text of one automapper file.
func Get(dir, name string) ([]byte, error) {
	path, err := safeJoin(dir, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apierrors.New(apierrors.KindNotFoundAutomapper, "automapper file not found: "+name)
	}
	return data, nil
}

// Delete removes one automapper file.
func Delete(dir, name string) error {
	path, err := safeJoin(dir, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return apierrors.New(apierrors.KindNotFoundAutomapper, "automapper file not found: "+name)
	}
	return nil
}

// NeedsCompile reports whether name is a preprocessor source that Put must
// run through the external compiler rather than storing as-is.
func NeedsCompile(name string) bool {
	return filepath.Ext(name) == ExtPreprocessor
}

// WriteSource persists name's raw contents into dir. This is the fast,
// lock-held half of Put: callers that need to release a room writer across
// the compile step call this directly instead of Put.
func (rn Runner) WriteSource(dir, name string, data []byte) (path string, err error) {
	path, err = safeJoin(dir, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apierrors.Wrap(apierrors.KindInternal, "create automapper directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", apierrors.Wrap(apierrors.KindInternal, "write automapper file", err)
	}
	return path, nil
}

// Compile runs the external rules preprocessor over the source already
// written at path by WriteSource. The long-running half of Put.
func (rn Runner) Compile(ctx context.Context, path string) (compiled []byte, diags []Diagnostic, err error) {
	compiled, stderr, err := rn.exec(ctx, "compile", path)
	diags = ParseDiagnostics(stderr)
	if err != nil {
		return nil, diags, apierrors.Wrap(apierrors.KindAutomapperError, "rules preprocessor failed", errors.New(stderr))
	}
	return compiled, diags, nil
}

// WriteCompiledArtifact persists a successfully compiled .rules file
// alongside its .rpp source at sourcePath.
func (rn Runner) WriteCompiledArtifact(sourcePath string, compiled []byte) error {
	outPath := sourcePath[:len(sourcePath)-len(ExtPreprocessor)] + ExtRules
	if err := os.WriteFile(outPath, compiled, 0o644); err != nil {
		return apierrors.Wrap(apierrors.KindInternal, "write compiled rules artifact", err)
	}
	return nil
}

// Put writes name's contents into dir. If name is a preprocessor source
// (.rpp), the external compiler is invoked first: on success, the compiled
// `.rules` artifact is written alongside the source and returned for the
// caller to broadcast; on failure, nothing is written and the parsed
// diagnostics are returned alongside the error. This combines the three
// phases above with no lock released in between — convenient for callers
// that never hold a room writer at all. mutation.PutAutomapper holds a room,
// so it calls the phases directly to release the writer across Compile.
func (rn Runner) Put(ctx context.Context, dir, name string, data []byte) (compiled []byte, diags []Diagnostic, err error) {
	path, err := rn.WriteSource(dir, name, data)
	if err != nil {
		return nil, nil, err
	}
	if !NeedsCompile(name) {
		return nil, nil, nil
	}
	compiled, diags, err = rn.Compile(ctx, path)
	if err != nil {
		return nil, diags, err
	}
	if err := rn.WriteCompiledArtifact(path, compiled); err != nil {
		return nil, diags, err
	}
	return compiled, diags, nil
}

// Apply runs the automapper rules engine over tiles, deriving the rules
// file from imageName (spec.md §4.3: "derive the rules filename from the
// Tiles layer's image name"), and returns the repainted tile buffer.
func (rn Runner) Apply(ctx context.Context, dir, imageName string, tiles []byte, width, height uint16, seed int64) ([]byte, error) {
	rulesPath, err := safeJoin(dir, imageName+ExtRules)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(rulesPath); err != nil {
		return nil, apierrors.New(apierrors.KindNotFoundAutomapper, "no rules file for image "+imageName)
	}
	if rn.BinaryPath == "" {
		return nil, apierrors.New(apierrors.KindAutomapperError, "no rules engine configured")
	}

	args := []string{"apply", rulesPath, strconv.Itoa(int(width)), strconv.Itoa(int(height)), strconv.FormatInt(seed, 10)}
	out, stderr, err := rn.execWithStdin(ctx, args, tiles)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindAutomapperError, "automapper engine failed", errors.New(stderr))
	}
	return out, nil
}

func (rn Runner) exec(ctx context.Context, args ...string) (stdout []byte, stderr string, err error) {
	return rn.execWithStdin(ctx, args, nil)
}

func (rn Runner) execWithStdin(ctx context.Context, args []string, stdin []byte) (stdout []byte, stderr string, err error) {
	if rn.BinaryPath == "" {
		return nil, "", errors.New("no rules preprocessor configured")
	}
	ctx, cancel := context.WithTimeout(ctx, rn.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, rn.BinaryPath, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	runErr := cmd.Run()
	return outBuf.Bytes(), errBuf.String(), runErr
}

// safeJoin resolves name under dir, rejecting any attempt to escape it via
// path separators (name always comes from a protocol field, never a
// filesystem listing).
func safeJoin(dir, name string) (string, error) {
	if err := validateFileName(name); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func validateFileName(name string) error {
	if name == "" || name != filepath.Base(name) {
		return apierrors.New(apierrors.KindInvalidFileName, "invalid automapper file name: "+name)
	}
	return nil
}
