// Package target provides target-process accessors for reclass-bridge.
//
// Implementations:
//   - Detached: no process attached
//   - Image: in-memory simulated process (tests, demos)
//   - Procfs: live Linux process via /proc/<pid>
package target

import (
	"sync"

	"github.com/brbranch/reclass_bridge/internal/model"
)

// Detached はプロセス未アタッチ状態のアクセサ
type Detached struct{}

func (Detached) IsAttached() bool { return false }
func (Detached) ReadMemory(address uint64, size int) []byte { return nil }
func (Detached) WriteMemory(address uint64, data []byte) bool { return false }
func (Detached) Modules() []model.Module { return nil }
func (Detached) Sections() []model.Section { return nil }
func (Detached) Identity() model.ProcessIdentity { return model.ProcessIdentity{} }

type region struct {
	start uint64
	data  []byte
}

func (r *region) contains(address uint64, size int) bool {
	end := r.start + uint64(len(r.data))
	return address >= r.start && address+uint64(size) <= end && address+uint64(size) >= address
}

// Image はメモリ上でシミュレートしたターゲットプロセス
type Image struct {
	mu       sync.RWMutex
	identity model.ProcessIdentity
	attached bool
	modules  []model.Module
	sections []model.Section
	regions  []*region
}

// NewImage はアタッチ済みの空のImageを生成
func NewImage(identity model.ProcessIdentity) *Image {
	return &Image{identity: identity, attached: true}
}

// Detach はアタッチ状態を解除する
func (i *Image) Detach() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.attached = false
}

// Map はゼロ埋めした領域をマップし、そのバッファを返す
func (i *Image) Map(start uint64, size int) []byte {
	i.mu.Lock()
	defer i.mu.Unlock()

	data := make([]byte, size)
	i.regions = append(i.regions, &region{start: start, data: data})
	return data
}

// AddModule はモジュールとそのイメージセクションを登録し、領域をマップする
func (i *Image) AddModule(name, path string, base uint64, size int) {
	i.Map(base, size)

	i.mu.Lock()
	defer i.mu.Unlock()

	end := base + uint64(size)
	i.modules = append(i.modules, model.Module{
		Name:  name,
		Path:  path,
		Start: base,
		End:   end,
		Size:  uint64(size),
	})
	i.sections = append(i.sections, model.Section{
		Name:       ".text",
		Category:   "code",
		Protection: "r-x",
		Type:       "image",
		Start:      base,
		End:        end,
		Size:       uint64(size),
		ModuleName: name,
	})
}

func (i *Image) IsAttached() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.attached
}

// ReadMemory は範囲全体がマップ済みの場合のみコピーを返す
func (i *Image) ReadMemory(address uint64, size int) []byte {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if !i.attached || size <= 0 {
		return nil
	}
	for _, r := range i.regions {
		if r.contains(address, size) {
			off := address - r.start
			out := make([]byte, size)
			copy(out, r.data[off:off+uint64(size)])
			return out
		}
	}
	return nil
}

func (i *Image) WriteMemory(address uint64, data []byte) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.attached || len(data) == 0 {
		return false
	}
	for _, r := range i.regions {
		if r.contains(address, len(data)) {
			off := address - r.start
			copy(r.data[off:], data)
			return true
		}
	}
	return false
}

func (i *Image) Modules() []model.Module {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if !i.attached {
		return nil
	}
	return append([]model.Module(nil), i.modules...)
}

func (i *Image) Sections() []model.Section {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if !i.attached {
		return nil
	}
	return append([]model.Section(nil), i.sections...)
}

func (i *Image) Identity() model.ProcessIdentity {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if !i.attached {
		return model.ProcessIdentity{}
	}
	return i.identity
}

// NewDemoImage はデモ用のプロセスイメージ（game.exe + kernel32.dll）を生成
func NewDemoImage() *Image {
	img := NewImage(model.ProcessIdentity{ID: 4242, Name: "game.exe", Path: `C:\Games\game.exe`})
	img.AddModule("game.exe", `C:\Games\game.exe`, 0x400000, 0x20000)
	img.AddModule("kernel32.dll", `C:\Windows\System32\kernel32.dll`, 0x7FF800000000, 0x10000)
	img.Map(0x10000000, 0x20000)
	return img
}
