// Generated program storage for the coating host API.
package api

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	hosterr "coating-host/pkg/errors"
)

// ProgramInfo describes one stored G-code program.
type ProgramInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// DiskUsage reports the filesystem usage of the program directory.
type DiskUsage struct {
	Total uint64 `json:"total"`
	Used  uint64 `json:"used"`
	Free  uint64 `json:"free"`
}

// ProgramStore persists generated G-code programs as files in one
// directory. Writes are atomic so a half-written program is never visible
// to a machine operator fetching it.
type ProgramStore struct {
	dir string
}

// NewProgramStore opens (creating if needed) the program directory.
func NewProgramStore(dir string) (*ProgramStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, hosterr.StorageError("create program dir", err)
	}
	return &ProgramStore{dir: dir}, nil
}

// Dir returns the backing directory.
func (ps *ProgramStore) Dir() string {
	return ps.dir
}

// Save writes a program under the given name, appending the .gcode
// extension if missing. The name must be a bare filename.
func (ps *ProgramStore) Save(name, gcode string) (*ProgramInfo, error) {
	name, err := ps.cleanName(name)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(ps.dir, ".program-*")
	if err != nil {
		return nil, hosterr.StorageError("create temp program", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(gcode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, hosterr.StorageError("write program", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, hosterr.StorageError("write program", err)
	}

	path := filepath.Join(ps.dir, name)
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return nil, hosterr.StorageError("replace program", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, hosterr.StorageError("stat program", err)
	}
	return &ProgramInfo{Name: name, Size: info.Size(), Modified: info.ModTime()}, nil
}

// Read returns the contents of one stored program.
func (ps *ProgramStore) Read(name string) (string, error) {
	name, err := ps.cleanName(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(ps.dir, name))
	if err != nil {
		return "", hosterr.StorageError("read program", err)
	}
	return string(data), nil
}

// Delete removes one stored program.
func (ps *ProgramStore) Delete(name string) error {
	name, err := ps.cleanName(name)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(ps.dir, name)); err != nil {
		return hosterr.StorageError("delete program", err)
	}
	return nil
}

// List returns the stored programs, most recently modified first. Temp
// files from in-flight saves are skipped.
func (ps *ProgramStore) List() ([]ProgramInfo, error) {
	entries, err := os.ReadDir(ps.dir)
	if err != nil {
		return nil, hosterr.StorageError("list programs", err)
	}

	var out []ProgramInfo
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, ProgramInfo{
			Name:     e.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Modified.Equal(out[j].Modified) {
			return out[i].Modified.After(out[j].Modified)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// DiskUsage reports the usage of the filesystem holding the programs.
func (ps *ProgramStore) DiskUsage() (*DiskUsage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(ps.dir, &st); err != nil {
		return nil, hosterr.StorageError("statfs program dir", err)
	}
	total := st.Blocks * uint64(st.Bsize)
	free := st.Bavail * uint64(st.Bsize)
	return &DiskUsage{Total: total, Used: total - free, Free: free}, nil
}

// cleanName validates a program name and ensures the .gcode extension.
func (ps *ProgramStore) cleanName(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", hosterr.New(hosterr.ErrStorage, fmt.Sprintf("invalid program name: %q", name))
	}
	if !strings.HasSuffix(name, ".gcode") {
		name += ".gcode"
	}
	return name, nil
}
