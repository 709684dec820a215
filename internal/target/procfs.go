package target

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/brbranch/reclass_bridge/internal/model"
)

// ErrProcessNotFound は指定PIDのプロセスが存在しない場合のエラー
var ErrProcessNotFound = errors.New("process not found")

// Procfs は /proc/<pid> 経由でLinuxプロセスにアクセスする
// メモリの読み書きには ptrace 相当の権限が必要
type Procfs struct {
	pid  int
	root string
}

// Attach は pid のプロセスにアタッチする
func Attach(pid int) (*Procfs, error) {
	return attachAt("/proc", pid)
}

func attachAt(root string, pid int) (*Procfs, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("%w: pid %d", ErrProcessNotFound, pid)
	}
	p := &Procfs{pid: pid, root: root}
	if !p.IsAttached() {
		return nil, fmt.Errorf("%w: pid %d", ErrProcessNotFound, pid)
	}
	return p, nil
}

func (p *Procfs) path(name string) string {
	return filepath.Join(p.root, strconv.Itoa(p.pid), name)
}

// IsAttached はプロセスがまだ存在するかどうか
func (p *Procfs) IsAttached() bool {
	_, err := os.Stat(filepath.Join(p.root, strconv.Itoa(p.pid)))
	return err == nil
}

func (p *Procfs) ReadMemory(address uint64, size int) []byte {
	if size <= 0 {
		return nil
	}
	f, err := os.Open(p.path("mem"))
	if err != nil {
		return nil
	}
	defer f.Close()

	buf := make([]byte, size)
	n, err := f.ReadAt(buf, int64(address))
	if n != size {
		return nil
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil
	}
	return buf
}

func (p *Procfs) WriteMemory(address uint64, data []byte) bool {
	if len(data) == 0 {
		return false
	}
	f, err := os.OpenFile(p.path("mem"), os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	defer f.Close()

	n, err := f.WriteAt(data, int64(address))
	return err == nil && n == len(data)
}

func (p *Procfs) Identity() model.ProcessIdentity {
	id := model.ProcessIdentity{ID: p.pid}
	if comm, err := os.ReadFile(p.path("comm")); err == nil {
		id.Name = strings.TrimSpace(string(comm))
	}
	if exe, err := os.Readlink(p.path("exe")); err == nil {
		id.Path = exe
		id.Name = filepath.Base(exe)
	}
	return id
}

func (p *Procfs) Sections() []model.Section {
	f, err := os.Open(p.path("maps"))
	if err != nil {
		return nil
	}
	defer f.Close()

	mappings, err := parseMaps(f)
	if err != nil {
		return nil
	}
	sections := make([]model.Section, len(mappings))
	for i, m := range mappings {
		sections[i] = m.section
	}
	return sections
}

func (p *Procfs) Modules() []model.Module {
	f, err := os.Open(p.path("maps"))
	if err != nil {
		return nil
	}
	defer f.Close()

	mappings, err := parseMaps(f)
	if err != nil {
		return nil
	}
	return modulesFromMappings(mappings)
}

// mapping は maps の1行（セクション + バックするファイルのパス）
type mapping struct {
	section model.Section
	path    string
}

// parseMaps は /proc/<pid>/maps の各行をセクションに変換する
// 形式: start-end perms offset dev inode [pathname]
func parseMaps(r io.Reader) ([]mapping, error) {
	var mappings []mapping
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 {
			continue
		}

		startStr, endStr, ok := strings.Cut(fields[0], "-")
		if !ok {
			return nil, fmt.Errorf("invalid maps range: %q", fields[0])
		}
		start, err := strconv.ParseUint(startStr, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid maps start %q: %w", startStr, err)
		}
		end, err := strconv.ParseUint(endStr, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid maps end %q: %w", endStr, err)
		}

		perms := fields[1]
		pathname := strings.Join(fields[5:], " ")
		m := mapping{section: classifyMapping(start, end, perms, pathname)}
		if m.section.ModuleName != "" {
			m.path = pathname
		}
		mappings = append(mappings, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return mappings, nil
}

func classifyMapping(start, end uint64, perms, pathname string) model.Section {
	s := model.Section{
		Start:      start,
		End:        end,
		Size:       end - start,
		Protection: perms,
		Type:       "private",
		Category:   "data",
	}
	if len(perms) >= 3 {
		s.Protection = perms[:3]
	}
	if strings.HasSuffix(perms, "s") {
		s.Type = "shared"
	}
	if strings.Contains(s.Protection, "x") {
		s.Category = "code"
	}

	switch {
	case pathname == "":
		s.Name = "anonymous"
	case pathname == "[heap]":
		s.Name = pathname
		s.Category = "heap"
	case strings.HasPrefix(pathname, "[stack"):
		s.Name = pathname
		s.Category = "stack"
	case strings.HasPrefix(pathname, "["):
		s.Name = pathname
	default:
		s.Name = filepath.Base(pathname)
		s.ModuleName = filepath.Base(pathname)
		s.Type = "image"
	}
	return s
}

// modulesFromMappings はファイルバックのマッピングをファイル単位にまとめる
// 最初に現れた順を保つ
func modulesFromMappings(mappings []mapping) []model.Module {
	var modules []model.Module
	index := make(map[string]int)
	for _, mp := range mappings {
		if mp.path == "" {
			continue
		}
		s := mp.section
		if i, ok := index[mp.path]; ok {
			m := &modules[i]
			if s.Start < m.Start {
				m.Start = s.Start
			}
			if s.End > m.End {
				m.End = s.End
			}
			m.Size = m.End - m.Start
			continue
		}
		index[mp.path] = len(modules)
		modules = append(modules, model.Module{
			Name:  s.ModuleName,
			Path:  mp.path,
			Start: s.Start,
			End:   s.End,
			Size:  s.Size,
		})
	}
	return modules
}
