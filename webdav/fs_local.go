package webdav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/embedwebd/httpd/internal/httpcore"
)

// LocalFileSystem implements FileSystem over a real directory on disk: the
// "upload directory" of spec.md §3's WebDAV state. Grounded in the
// teacher's fs_local.go, generalized with the precomputed filtering
// predicate and subclassing hooks spec.md §4.10/§3 requires
// (allowedFileExtensions, allowHiddenItems, shouldUpload/Move/Copy/
// Delete/CreateDir).
type LocalFileSystem struct {
	Root string

	// AllowedFileExtensions, when non-nil, restricts uploaded/visible
	// files to these lower-cased extensions (without the dot).
	// Directories always bypass this filter.
	AllowedFileExtensions map[string]bool
	AllowHiddenItems      bool

	ShouldUpload    func(name string) bool
	ShouldMove      func(src, dst string) bool
	ShouldCopy      func(src, dst string) bool
	ShouldDelete    func(name string) bool
	ShouldCreateDir func(name string) bool
}

var _ FileSystem = (*LocalFileSystem)(nil)

// NewLocalFileSystem builds a LocalFileSystem rooted at root with all
// subclassing predicates defaulting to true, per spec.md §3.
func NewLocalFileSystem(root string) *LocalFileSystem {
	allow := func(string) bool { return true }
	allow2 := func(string, string) bool { return true }
	return &LocalFileSystem{
		Root:            root,
		ShouldUpload:    allow,
		ShouldMove:      allow2,
		ShouldCopy:      allow2,
		ShouldDelete:    allow,
		ShouldCreateDir: allow,
	}
}

// filtered reports whether name is hidden by spec.md §4.10's precomputed
// filtering predicate: dotfiles rejected unless AllowHiddenItems, and
// non-directory extensions rejected unless present in
// AllowedFileExtensions (a nil set allows everything).
func (l *LocalFileSystem) filtered(name string, isDir bool) bool {
	base := path.Base(name)
	if !l.AllowHiddenItems && strings.HasPrefix(base, ".") && base != "." {
		return true
	}
	if isDir || l.AllowedFileExtensions == nil {
		return false
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(base), "."))
	return !l.AllowedFileExtensions[ext]
}

func (l *LocalFileSystem) localPath(name string) (string, error) {
	if (filepath.Separator != '/' && strings.IndexRune(name, filepath.Separator) >= 0) || strings.Contains(name, "\x00") {
		return "", httpcore.NewHTTPError(400, "webdav: invalid character in path", nil)
	}
	name = path.Clean(name)
	if !path.IsAbs(name) {
		return "", httpcore.NewHTTPError(400, fmt.Sprintf("webdav: expected absolute path, got %q", name), nil)
	}
	return filepath.Join(l.Root, filepath.FromSlash(name)), nil
}

func (l *LocalFileSystem) externalPath(p string) (string, error) {
	rel, err := filepath.Rel(l.Root, p)
	if err != nil {
		return "", err
	}
	return "/" + filepath.ToSlash(rel), nil
}

func (l *LocalFileSystem) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	p, err := l.localPath(name)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func fileInfoFromOS(p string, fi os.FileInfo) *FileInfo {
	return &FileInfo{
		Path:     p,
		Size:     fi.Size(),
		ModTime:  fi.ModTime(),
		IsDir:    fi.IsDir(),
		MIMEType: mime.TypeByExtension(path.Ext(p)),
		ETag:     fmt.Sprintf("%x:%x", fi.ModTime().UnixNano(), fi.Size()),
	}
}

func errFromOS(err error) error {
	var perr *fs.PathError
	if errors.As(err, &perr) {
		err = fmt.Errorf("%s: %w", perr.Op, perr.Err)
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return httpcore.NewHTTPError(404, "not found", err)
	case errors.Is(err, fs.ErrPermission):
		return httpcore.NewHTTPError(403, "permission denied", err)
	default:
		return err
	}
}

func (l *LocalFileSystem) Stat(ctx context.Context, name string) (*FileInfo, error) {
	p, err := l.localPath(name)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		return nil, errFromOS(err)
	}
	if l.filtered(name, fi.IsDir()) {
		return nil, httpcore.NewHTTPError(404, "not found", nil)
	}
	return fileInfoFromOS(name, fi), nil
}

func (l *LocalFileSystem) ReadDir(ctx context.Context, name string, recursive bool) ([]FileInfo, error) {
	p, err := l.localPath(name)
	if err != nil {
		return nil, err
	}
	var out []FileInfo
	err = filepath.Walk(p, func(walked string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		href, err := l.externalPath(walked)
		if err != nil {
			return err
		}
		if walked != p && l.filtered(href, fi.IsDir()) {
			if fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if walked != p {
			out = append(out, *fileInfoFromOS(href, fi))
		}
		if !recursive && fi.IsDir() && walked != p {
			return filepath.SkipDir
		}
		return nil
	})
	return out, errFromOS(err)
}

func checkConditionalMatches(fi *FileInfo, ifMatch, ifNoneMatch ConditionalMatch) error {
	etag := ""
	if fi != nil {
		etag = fi.ETag
	}
	if ifMatch.IsSet() {
		if ok, err := ifMatch.MatchETag(etag); err != nil {
			return httpcore.NewHTTPError(400, "malformed If-Match", err)
		} else if !ok {
			return httpcore.NewHTTPError(412, "If-Match condition failed", nil)
		}
	}
	if ifNoneMatch.IsSet() {
		if ok, err := ifNoneMatch.MatchETag(etag); err != nil {
			return httpcore.NewHTTPError(400, "malformed If-None-Match", err)
		} else if ok {
			return httpcore.NewHTTPError(412, "If-None-Match condition failed", nil)
		}
	}
	return nil
}

// Create implements PUT semantics per spec.md §4.10: reject overwriting an
// existing directory, require the parent to exist, replace-in-place
// otherwise.
func (l *LocalFileSystem) Create(ctx context.Context, name string, body io.ReadCloser, opts *CreateOptions) (*FileInfo, bool, error) {
	if !l.ShouldUpload(name) {
		return nil, false, httpcore.NewHTTPError(403, "upload forbidden", nil)
	}
	if l.filtered(name, false) {
		return nil, false, httpcore.NewHTTPError(403, "upload forbidden by file filter", nil)
	}
	p, err := l.localPath(name)
	if err != nil {
		return nil, false, err
	}
	existing, _ := l.Stat(ctx, name)
	if existing != nil && existing.IsDir {
		return nil, false, httpcore.NewHTTPError(405, "cannot overwrite a collection with PUT", nil)
	}
	created := existing == nil
	if err := checkConditionalMatches(existing, opts.IfMatch, opts.IfNoneMatch); err != nil {
		return nil, false, err
	}

	dir := filepath.Dir(p)
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return nil, false, httpcore.NewHTTPError(409, "parent collection doesn't exist", nil)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return nil, false, errFromOS(err)
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, false, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, false, err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return nil, false, errFromOS(err)
	}

	fi, err := l.Stat(ctx, name)
	if err != nil {
		return nil, false, err
	}
	return fi, created, nil
}

// RemoveAll implements DELETE semantics (recursive removal).
func (l *LocalFileSystem) RemoveAll(ctx context.Context, name string, opts *RemoveAllOptions) error {
	if !l.ShouldDelete(name) {
		return httpcore.NewHTTPError(403, "delete forbidden", nil)
	}
	p, err := l.localPath(name)
	if err != nil {
		return err
	}
	fi, err := l.Stat(ctx, name)
	if err != nil {
		return err
	}
	if err := checkConditionalMatches(fi, opts.IfMatch, opts.IfNoneMatch); err != nil {
		return err
	}
	return errFromOS(os.RemoveAll(p))
}

// Mkdir implements MKCOL semantics: create exactly one level.
func (l *LocalFileSystem) Mkdir(ctx context.Context, name string) error {
	if !l.ShouldCreateDir(name) {
		return httpcore.NewHTTPError(403, "mkcol forbidden", nil)
	}
	p, err := l.localPath(name)
	if err != nil {
		return err
	}
	if fi, statErr := os.Stat(p); statErr == nil {
		if fi.IsDir() {
			return httpcore.NewHTTPError(405, "collection already exists", nil)
		}
		return httpcore.NewHTTPError(405, "resource exists and is not a collection", nil)
	} else if !os.IsNotExist(statErr) {
		return errFromOS(statErr)
	}
	if _, err := os.Stat(filepath.Dir(p)); err != nil {
		return httpcore.NewHTTPError(409, "parent collection doesn't exist", nil)
	}
	if err := os.Mkdir(p, 0755); err != nil {
		return errFromOS(err)
	}
	return nil
}

func copyRegularFile(src, dst string, perm os.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return errFromOS(err)
	}
	defer srcFile.Close()
	dstFile, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return errFromOS(err)
	}
	defer dstFile.Close()
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}
	return dstFile.Close()
}

// Copy implements the COPY method's filesystem half.
func (l *LocalFileSystem) Copy(ctx context.Context, src, dst string, options *CopyOptions) (bool, error) {
	if !l.ShouldCopy(src, dst) {
		return false, httpcore.NewHTTPError(403, "copy forbidden", nil)
	}
	srcPath, err := l.localPath(src)
	if err != nil {
		return false, err
	}
	dstPath, err := l.localPath(dst)
	if err != nil {
		return false, err
	}
	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		return false, errFromOS(err)
	}
	if _, err := os.Stat(filepath.Dir(dstPath)); err != nil {
		return false, httpcore.NewHTTPError(409, "destination parent collection doesn't exist", nil)
	}
	created := true
	if _, err := os.Stat(dstPath); err == nil {
		if options.NoOverwrite {
			return false, httpcore.NewHTTPError(412, "destination exists", nil)
		}
		created = false
		if err := os.RemoveAll(dstPath); err != nil {
			return false, errFromOS(err)
		}
	}

	if srcInfo.IsDir() {
		if err := os.MkdirAll(dstPath, srcInfo.Mode()&os.ModePerm); err != nil {
			return false, errFromOS(err)
		}
		if options.NoRecursive {
			return created, nil
		}
		err = filepath.Walk(srcPath, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if p == srcPath {
				return nil
			}
			rel, err := filepath.Rel(srcPath, p)
			if err != nil {
				return err
			}
			target := filepath.Join(dstPath, rel)
			if fi.IsDir() {
				return os.MkdirAll(target, fi.Mode()&os.ModePerm)
			}
			return copyRegularFile(p, target, fi.Mode()&os.ModePerm)
		})
		if err != nil {
			return false, errFromOS(err)
		}
		return created, nil
	}
	if err := copyRegularFile(srcPath, dstPath, srcInfo.Mode()&os.ModePerm); err != nil {
		return false, err
	}
	return created, nil
}

// Move implements the MOVE method's filesystem half, preferring an atomic
// rename and falling back to copy+delete across devices.
func (l *LocalFileSystem) Move(ctx context.Context, src, dst string, options *MoveOptions) (bool, error) {
	if !l.ShouldMove(src, dst) {
		return false, httpcore.NewHTTPError(403, "move forbidden", nil)
	}
	srcPath, err := l.localPath(src)
	if err != nil {
		return false, err
	}
	dstPath, err := l.localPath(dst)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(srcPath); err != nil {
		return false, errFromOS(err)
	}
	if _, err := os.Stat(filepath.Dir(dstPath)); err != nil {
		return false, httpcore.NewHTTPError(409, "destination parent collection doesn't exist", nil)
	}
	created := true
	if _, err := os.Stat(dstPath); err == nil {
		if options.NoOverwrite {
			return false, httpcore.NewHTTPError(412, "destination exists", nil)
		}
		created = false
		if err := os.RemoveAll(dstPath); err != nil {
			return false, errFromOS(err)
		}
	}
	if err := os.Rename(srcPath, dstPath); err == nil {
		return created, nil
	}
	if _, err := l.Copy(ctx, src, dst, &CopyOptions{NoOverwrite: options.NoOverwrite}); err != nil {
		return false, err
	}
	if err := os.RemoveAll(srcPath); err != nil {
		os.RemoveAll(dstPath)
		return false, errFromOS(err)
	}
	return created, nil
}
