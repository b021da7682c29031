// Package patch applies AI fixes as surgical, auditable edits.
//
// Lines the fix drops are commented out with a marker instead of deleted, and the
// pre-patch file is copied to a sibling .bak before anything is written.
package patch

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/pkg/fsutil"
	"github.com/kernhell/kernhell-go/internal/ports"
)

// Marker tags every line the engine commented out.
const Marker = "[KERNHELL-FIX-OLD]"

var errBlankFix = errors.New("fix is blank")

var commentTokens = map[string]string{
	".py":   "#",
	".rb":   "#",
	".sh":   "#",
	".yaml": "#",
	".yml":  "#",
	".js":   "//",
	".mjs":  "//",
	".cjs":  "//",
	".ts":   "//",
	".tsx":  "//",
	".jsx":  "//",
	".go":   "//",
	".java": "//",
	".kt":   "//",
	".cs":   "//",
}

// Engine implements ports.Patcher.
type Engine struct {
	logger ports.Logger
}

// NewEngine constructs an engine. logger may be nil.
func NewEngine(logger ports.Logger) *Engine {
	return &Engine{logger: logger}
}

// Apply rewrites path so it carries fixed, keeping removed lines as marked comments.
// Every failure is returned as a *domain.PatchError; the file is left untouched
// unless the final write succeeded.
func (e *Engine) Apply(path, fixed string) (domain.PatchResult, error) {
	result := domain.PatchResult{Path: path, BackupPath: path + domain.BackupSuffix}

	info, err := os.Stat(path)
	if err != nil {
		return result, &domain.PatchError{Path: path, Op: "stat", Err: err}
	}
	if strings.TrimSpace(fixed) == "" {
		return result, &domain.PatchError{Path: path, Op: "diff", Err: errBlankFix}
	}
	if err := fsutil.CopyFile(path, result.BackupPath); err != nil {
		return result, &domain.PatchError{Path: path, Op: "backup", Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return result, &domain.PatchError{Path: path, Op: "read", Err: err}
	}

	original := SplitLines(string(data))
	proposed := SplitLines(strings.TrimSpace(fixed))
	out, stats := Merge(original, proposed, CommentToken(path))
	stats.Path, stats.BackupPath = result.Path, result.BackupPath

	content := strings.Join(out, "\n")
	if len(out) > 0 {
		content += "\n"
	}
	if err := fsutil.WriteFileAtomic(path, []byte(content), info.Mode().Perm()); err != nil {
		return result, &domain.PatchError{Path: path, Op: "write", Err: err}
	}

	if e.logger != nil {
		e.logger.Info("surgical patch applied", map[string]interface{}{
			"file":      filepath.Base(path),
			"kept":      stats.Kept,
			"commented": stats.Commented,
			"inserted":  stats.Inserted,
		})
	}
	return stats, nil
}

// Merge aligns original against proposed and reconstructs the output lines.
// Equal runs pass through, original-only lines become marked comments, and
// proposed-only lines are inserted after the lines they replace.
func Merge(original, proposed []string, token string) ([]string, domain.PatchResult) {
	var stats domain.PatchResult
	out := make([]string, 0, len(original)+len(proposed))

	m := difflib.NewMatcher(original, proposed)
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'e':
			out = append(out, original[op.I1:op.I2]...)
			stats.Kept += op.I2 - op.I1
		case 'd':
			for _, line := range original[op.I1:op.I2] {
				out = append(out, commentOut(line, token))
			}
			stats.Commented += op.I2 - op.I1
		case 'i':
			out = append(out, proposed[op.J1:op.J2]...)
			stats.Inserted += op.J2 - op.J1
		case 'r':
			for _, line := range original[op.I1:op.I2] {
				out = append(out, commentOut(line, token))
			}
			out = append(out, proposed[op.J1:op.J2]...)
			stats.Commented += op.I2 - op.I1
			stats.Inserted += op.J2 - op.J1
		}
	}
	return out, stats
}

// SplitLines normalizes CRLF and lone CR endings and splits into lines without terminators.
// A trailing newline does not produce an empty final line.
func SplitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}

// CommentToken picks the line comment prefix for a file by extension, defaulting to "#".
func CommentToken(path string) string {
	if token, ok := commentTokens[strings.ToLower(filepath.Ext(path))]; ok {
		return token
	}
	return "#"
}

// Restore copies the backup back over path.
func Restore(path string) error {
	return fsutil.CopyFile(path+domain.BackupSuffix, path)
}

func commentOut(line, token string) string {
	body := strings.TrimLeft(line, " \t")
	indent := line[:len(line)-len(body)]
	return indent + token + " " + Marker + " " + strings.TrimSpace(body)
}

var _ ports.Patcher = (*Engine)(nil)
