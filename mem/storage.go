package mem

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// Capacity units.
const (
	KB uint64 = 1 << 10
	MB uint64 = 1 << 20
	GB uint64 = 1 << 30
)

// ErrAccessOutOfRange is returned when an access touches bytes beyond the
// capacity of a Storage.
var ErrAccessOutOfRange = fmt.Errorf("access beyond storage capacity")

// A Storage keeps the bytes of a simulated memory.
//
// The storage is managed in units, similar to pages. A unit is only
// allocated when it is first touched, so a large but sparsely used storage
// costs little.
type Storage struct {
	sync.Mutex

	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the specified capacity.
func NewStorage(capacity uint64) *Storage {
	return &Storage{
		unitSize: 4 * KB,
		capacity: capacity,
		data:     make(map[uint64][]byte),
	}
}

// Capacity returns the number of bytes the storage can hold.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) accessMustBeInRange(address, length uint64) error {
	if address+length > s.capacity || address+length < address {
		return fmt.Errorf("%w: [0x%x, 0x%x) over capacity 0x%x",
			ErrAccessOutOfRange, address, address+length, s.capacity)
	}

	return nil
}

func (s *Storage) unit(address uint64) []byte {
	baseAddr := address - address%s.unitSize

	u, ok := s.data[baseAddr]
	if !ok {
		u = make([]byte, s.unitSize)
		s.data[baseAddr] = u
	}

	return u
}

// Read returns a copy of length bytes starting at address.
func (s *Storage) Read(address, length uint64) ([]byte, error) {
	s.Lock()
	defer s.Unlock()

	if err := s.accessMustBeInRange(address, length); err != nil {
		return nil, err
	}

	res := make([]byte, length)
	offset := uint64(0)

	for offset < length {
		curr := address + offset
		inUnit := curr % s.unitSize
		n := min(s.unitSize-inUnit, length-offset)

		copy(res[offset:offset+n], s.unit(curr)[inUnit:inUnit+n])
		offset += n
	}

	return res, nil
}

// Write stores data starting at address.
func (s *Storage) Write(address uint64, data []byte) error {
	s.Lock()
	defer s.Unlock()

	length := uint64(len(data))
	if err := s.accessMustBeInRange(address, length); err != nil {
		return err
	}

	offset := uint64(0)

	for offset < length {
		curr := address + offset
		inUnit := curr % s.unitSize
		n := min(s.unitSize-inUnit, length-offset)

		copy(s.unit(curr)[inUnit:inUnit+n], data[offset:offset+n])
		offset += n
	}

	return nil
}

// ReadWord reads a little-endian 64-bit word.
func (s *Storage) ReadWord(address uint64) (uint64, error) {
	buf, err := s.Read(address, 8)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(buf), nil
}

// WriteWord writes a little-endian 64-bit word.
func (s *Storage) WriteWord(address uint64, word uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, word)

	return s.Write(address, buf)
}
