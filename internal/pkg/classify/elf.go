package classify

import (
	"debug/elf"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/E4S-Project/e4s-cl/internal/pkg/e4serr"
)

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func errNotFound(soname string) error {
	return fmt.Errorf("%s not found in search path", soname)
}

// classifyPath implements spec.md §4.1 rules 1-4 for a single path: drop
// if missing, library if ELF+SONAME, directory if a directory, file
// otherwise. An ELF parse error is fatal for that path only (returned as
// a warning, ok=false), per spec.md §4.1's failure semantics.
func classifyPath(raw string) (Path, *e4serr.ClassificationWarning, bool) {
	info, err := os.Lstat(raw)
	if err != nil {
		return Path{}, nil, false
	}

	real := raw
	if info.Mode()&os.ModeSymlink != 0 {
		resolved, err := filepath.EvalSymlinks(raw)
		if err != nil {
			return Path{}, &e4serr.ClassificationWarning{Path: raw, Reason: "broken symlink: " + err.Error()}, false
		}
		real = resolved
	} else {
		real, err = filepath.Abs(raw)
		if err != nil {
			real = raw
		}
	}

	fi, err := os.Stat(real)
	if err != nil {
		return Path{}, nil, false
	}

	if fi.IsDir() {
		return Path{Kind: KindDirectory, HostPath: raw, Realpath: real}, nil, true
	}

	if soname, needed, isELF, parseErr := elfInfo(real); isELF {
		if parseErr != nil {
			return Path{}, &e4serr.ClassificationWarning{Path: raw, Reason: "ELF parse error: " + parseErr.Error()}, false
		}
		if soname != "" {
			return Path{
				Kind:     KindLibrary,
				HostPath: raw,
				Soname:   soname,
				Realpath: real,
				Needed:   needed,
			}, nil, true
		}
	}

	return Path{Kind: KindFile, HostPath: raw, Realpath: real}, nil, true
}

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// elfInfo reports whether path is an ELF file and, if so, its DT_SONAME
// (empty if absent) and DT_NEEDED list. isELF is false for non-ELF
// regular files (e.g. plain data/text files), in which case parseErr is
// always nil.
func elfInfo(path string) (soname string, needed []string, isELF bool, parseErr error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, false, nil
	}
	defer f.Close()

	magic := make([]byte, 4)
	if n, _ := f.Read(magic); n < 4 || string(magic) != string(elfMagic) {
		return "", nil, false, nil
	}

	elfFile, err := elf.Open(path)
	if err != nil {
		return "", nil, true, err
	}
	defer elfFile.Close()

	needed, _ = elfFile.DynString(elf.DT_NEEDED)
	sonames, err := elfFile.DynString(elf.DT_SONAME)
	if err != nil {
		// DT_SONAME is optional; its absence is not a parse error.
		return "", needed, true, nil
	}
	if len(sonames) > 0 {
		soname = sonames[0]
	}
	return soname, needed, true, nil
}

// Machine returns the ELF machine of path, used to filter candidates
// found via a bare-name search (e.g. in the ldconfig cache) to those
// matching the running architecture.
func Machine(path string) (elf.Machine, error) {
	f, err := elf.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return f.Machine, nil
}

// rpath returns the absolute directories named in dependent's DT_RPATH
// or DT_RUNPATH, with $ORIGIN expanded relative to the library itself
// (spec.md §4.1's "Library completion" search order, first element).
func rpath(dependent Path) []string {
	f, err := elf.Open(dependent.Realpath)
	if err != nil {
		return nil
	}
	defer f.Close()

	origin := filepath.Dir(dependent.Realpath)
	var dirs []string
	for _, tag := range []elf.DynTag{elf.DT_RUNPATH, elf.DT_RPATH} {
		values, err := f.DynString(tag)
		if err != nil {
			continue
		}
		for _, v := range values {
			for _, part := range strings.Split(v, ":") {
				part = strings.ReplaceAll(part, "$ORIGIN", origin)
				part = strings.ReplaceAll(part, "${ORIGIN}", origin)
				dirs = append(dirs, part)
			}
		}
	}
	return dirs
}

var ldconfigLinePattern = regexp.MustCompile(`(?m)^\s*(\S+)\s*\(.*\)\s*=>\s*(\S+)\s*$`)

var (
	ldcacheOnce sync.Once
	ldcacheMap  map[string]string
)

// ldconfigCache shells out to `ldconfig -p` and parses its output into a
// soname -> absolute path map, the last step of spec.md §4.1's dynamic
// linker search order. Mirrors apptainer's internal/pkg/util/paths.ldCache.
func ldconfigCache() map[string]string {
	ldcacheOnce.Do(func() {
		ldcacheMap = map[string]string{}
		ldconfig, err := exec.LookPath("ldconfig")
		if err != nil {
			return
		}
		out, err := exec.Command(ldconfig, "-p").Output()
		if err != nil {
			return
		}
		for _, m := range ldconfigLinePattern.FindAllSubmatch(out, -1) {
			name := string(m[1])
			path := string(m[2])
			if _, ok := ldcacheMap[name]; !ok {
				ldcacheMap[name] = path
			}
		}
	})
	return ldcacheMap
}
