package openthings

const (
	ManufacturerEnergenie uint8 = 0x04

	// DefaultPID is the encryption id used when a manufacturer has no table entry.
	DefaultPID uint8 = 242
)

// PidEntry maps a manufacturer to its decode encryption id.
type PidEntry struct {
	ManufacturerID uint8
	Pid            uint8
}

// PipEntry maps a manufacturer to the seed byte used when encoding replies.
type PipEntry struct {
	ManufacturerID uint8
	Pip            uint8
}

// ManufacturerTable is an immutable snapshot of the PID and PIP maps.
type ManufacturerTable struct {
	pid map[uint8]uint8
	pip map[uint8]uint8
}

func NewManufacturerTable(pids []PidEntry, pips []PipEntry) ManufacturerTable {
	t := ManufacturerTable{
		pid: make(map[uint8]uint8, len(pids)),
		pip: make(map[uint8]uint8, len(pips)),
	}
	// first entry wins, matching a linear first-match lookup
	for _, e := range pids {
		if _, ok := t.pid[e.ManufacturerID]; !ok {
			t.pid[e.ManufacturerID] = e.Pid
		}
	}
	for _, e := range pips {
		if _, ok := t.pip[e.ManufacturerID]; !ok {
			t.pip[e.ManufacturerID] = e.Pip
		}
	}

	return t
}

func (t ManufacturerTable) PID(manufacturerID uint8) (uint8, bool) {
	v, ok := t.pid[manufacturerID]
	return v, ok
}

func (t ManufacturerTable) PIP(manufacturerID uint8) (uint8, bool) {
	v, ok := t.pip[manufacturerID]
	return v, ok
}
