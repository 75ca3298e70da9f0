package remotefs

import (
	"strings"

	"github.com/stratify-tools/link/transport"
)

// eexist is the target errno for "already exists", used by CreateDirectory
// to make repeated calls idempotent.
const eexist = 17

// ExcludeFunc reports whether an entry name should be skipped during
// ReadDirectory.
type ExcludeFunc func(name string) bool

// ReadDirectory descends path breadth-unaware: for each entry that is not
// "." or ".." and not excluded, if recursive and the entry is a directory it
// recurses and prepends the entry name to each returned path; otherwise it
// appends the entry itself. Ordering equals the target's traversal order.
func ReadDirectory(client *transport.Client, path string, recursive bool, exclude ExcludeFunc) ([]string, error) {
	dir, err := OpenDir(client, path)
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	var out []string
	for {
		entry, ok, err := dir.Read()
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		if entry.Name == "." || entry.Name == ".." {
			continue
		}
		if exclude != nil && exclude(entry.Name) {
			continue
		}

		if recursive && entry.IsDir {
			children, err := ReadDirectory(client, joinPath(path, entry.Name), recursive, exclude)
			if err != nil {
				return out, err
			}
			for _, c := range children {
				out = append(out, entry.Name+"/"+c)
			}
			continue
		}
		out = append(out, entry.Name)
	}
	return out, nil
}

// RemoveDirectory walks each child, using the directory flag readdir
// reports for it (no separate stat), recursing into directories and
// unlinking files, then rmdirs the now-empty target. It returns on the
// first error.
func RemoveDirectory(client *transport.Client, path string, recursive bool) error {
	if recursive {
		dir, err := OpenDir(client, path)
		if err != nil {
			return err
		}

		for {
			entry, ok, err := dir.Read()
			if err != nil {
				dir.Close()
				return err
			}
			if !ok {
				break
			}
			if entry.Name == "." || entry.Name == ".." {
				continue
			}

			childPath := joinPath(path, entry.Name)
			if entry.IsDir {
				if err := RemoveDirectory(client, childPath, true); err != nil {
					dir.Close()
					return err
				}
				continue
			}
			if err := client.PosixUnlink(childPath); err != nil {
				dir.Close()
				return err
			}
		}
		dir.Close()
	}

	return client.PosixRmdir(path)
}

// CreateDirectory creates path. When recursive, it splits the path on '/',
// preserving a leading '/', and creates each prefix in order, ignoring
// "already exists" so the operation is idempotent. When perms is zero, it
// inherits the parent's permissions via a pre-stat.
func CreateDirectory(client *transport.Client, path string, recursive bool, perms uint32) error {
	if perms == 0 {
		if st, err := client.PosixStat(parentOf(path)); err == nil {
			perms = st.Mode
		}
	}

	if !recursive {
		return mkdirIdempotent(client, path, perms)
	}

	cur := ""
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "" {
			continue
		}
		if cur != "" || strings.HasPrefix(path, "/") {
			cur += "/"
		}
		cur += seg
		if err := mkdirIdempotent(client, cur, perms); err != nil {
			return err
		}
	}
	return nil
}

func mkdirIdempotent(client *transport.Client, path string, perms uint32) error {
	err := client.PosixMkdir(path, perms)
	if err == nil {
		return nil
	}
	if de, ok := err.(*transport.DeviceError); ok && de.Errno == eexist {
		return nil
	}
	return err
}

func joinPath(base, name string) string {
	if strings.HasSuffix(base, "/") {
		return base + name
	}
	return base + "/" + name
}

func parentOf(path string) string {
	trimmed := strings.TrimSuffix(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx <= 0 {
		return "/"
	}
	return trimmed[:idx]
}
