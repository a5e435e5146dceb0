package passthrough

import (
	"path/filepath"
	"strings"

	fserrors "github.com/objectfs/passthroughfs/pkg/errors"
)

// DefaultMaxPathLen is PATH_MAX on Linux: the path buffer size, terminating NUL included.
const DefaultMaxPathLen = 4096

// Translator maps virtual paths onto backend paths under a fixed root.
type Translator struct {
	root   string
	maxLen int
}

// NewTranslator returns a translator for the given absolute backend root.
// maxPathLen bounds the backend path buffer including its terminating NUL;
// values <= 0 select DefaultMaxPathLen.
func NewTranslator(root string, maxPathLen int) (*Translator, error) {
	if root == "" || !filepath.IsAbs(root) {
		return nil, fserrors.NewError(fserrors.ErrCodeInvalidConfig, "backend root must be an absolute path").
			WithComponent("translator").
			WithPath(root)
	}
	if maxPathLen <= 0 {
		maxPathLen = DefaultMaxPathLen
	}

	// "/" + "/a" must not produce "//a".
	clean := strings.TrimSuffix(filepath.Clean(root), "/")

	return &Translator{root: clean, maxLen: maxPathLen}, nil
}

// Root returns the normalised backend root ("/" for the filesystem root).
func (t *Translator) Root() string {
	if t.root == "" {
		return "/"
	}
	return t.root
}

// Translate returns the backend path for a virtual path. Paths that would
// not fit the path buffer fail with ENAMETOOLONG rather than being truncated.
func (t *Translator) Translate(virtual string) (string, error) {
	if !strings.HasPrefix(virtual, "/") {
		return "", fserrors.NewError(fserrors.ErrCodeInvalidArgument, "virtual path must start with /").
			WithComponent("translator").
			WithPath(virtual)
	}

	backend := t.root + virtual
	if len(backend) >= t.maxLen {
		return "", fserrors.NewError(fserrors.ErrCodeNameTooLong, "backend path exceeds path length limit").
			WithComponent("translator").
			WithPath(virtual)
	}
	return backend, nil
}

// child joins a directory entry name onto an already translated directory
// path, applying the same length bound as Translate.
func (t *Translator) child(dir, name string) (string, bool) {
	p := dir + "/" + name
	return p, len(p) < t.maxLen
}
