// Device pool (§4.8.5): a fixed set of managed devices, each with a role,
// an FDP-enabled flag, queue depth, and a direct-I/O toggle, backed by its
// own alloc.Allocator.
package journal

import (
	"sync"

	"github.com/claudefs/core/alloc"
)

type DeviceRole int

const (
	RoleJournal DeviceRole = iota
	RoleData
	RoleCombined
)

type Device struct {
	Idx        int
	Role       DeviceRole
	FDPEnabled bool
	QueueDepth int
	DirectIO   bool
	Allocator  *alloc.Allocator
}

type DevicePool struct {
	mu      sync.RWMutex
	devices []*Device
}

func NewDevicePool() *DevicePool { return &DevicePool{} }

func (p *DevicePool) AddDevice(d *Device) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.devices = append(p.devices, d)
}

func (p *DevicePool) ByRole(role DeviceRole) []*Device {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*Device
	for _, d := range p.devices {
		if d.Role == role || d.Role == RoleCombined {
			out = append(out, d)
		}
	}
	return out
}

// AggregateCapacity4K sums total and free 4K-unit block counts across
// every device in the pool.
func (p *DevicePool) AggregateCapacity4K() (total, free int64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, d := range p.devices {
		s := d.Allocator.Stats()
		total += s.TotalBlocks4K
		free += s.FreeBlocks4K
	}
	return total, free
}

func (p *DevicePool) All() []*Device {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Device, len(p.devices))
	copy(out, p.devices)
	return out
}
