package persist

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/funnisimo/gw-ecs/internal/core/ecs"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrDigestMismatch = errors.New("snapshot digest mismatch")
	ErrUnknownType    = errors.New("snapshot component type not registered")
)

// ComponentRow is one component value. Entity is the ordinal of its entity
// within Snapshot.Entities.
type ComponentRow struct {
	Entity int
	Type   string
	Data   json.RawMessage
}

// Snapshot is a point-in-time copy of every live entity and its registered
// components, JSON encoded.
type Snapshot struct {
	ID         uuid.UUID
	Tick       ecs.Tick
	Time       time.Duration
	TakenAt    time.Time
	Entities   []ecs.Entity
	Components []ComponentRow
	Digest     [blake2b.Size256]byte
}

// Capture copies w's live entities in table order.
func Capture(w *ecs.World) (*Snapshot, error) {
	s := &Snapshot{
		ID:      uuid.New(),
		Tick:    w.Tick(),
		Time:    w.Time(),
		TakenAt: time.Now().UTC(),
	}
	for e := range w.Entities() {
		ord := len(s.Entities)
		s.Entities = append(s.Entities, e)
		for typ, v := range w.ComponentsOf(e) {
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode %s of %s: %w", typ, e, err)
			}
			s.Components = append(s.Components, ComponentRow{Entity: ord, Type: typ.String(), Data: data})
		}
	}
	s.Digest = s.digest()
	return s, nil
}

// Verify recomputes the digest.
func (s *Snapshot) Verify() error {
	if s.digest() != s.Digest {
		return fmt.Errorf("snapshot %s: %w", s.ID, ErrDigestMismatch)
	}
	return nil
}

// digest covers tick, entity handles and component rows in order.
func (s *Snapshot) digest() [blake2b.Size256]byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, int32(s.Tick))
	binary.Write(&buf, binary.LittleEndian, int64(s.Time))
	binary.Write(&buf, binary.LittleEndian, int32(len(s.Entities)))
	for _, e := range s.Entities {
		binary.Write(&buf, binary.LittleEndian, e.Index)
		binary.Write(&buf, binary.LittleEndian, e.Generation)
	}
	for _, c := range s.Components {
		binary.Write(&buf, binary.LittleEndian, int32(c.Entity))
		binary.Write(&buf, binary.LittleEndian, int32(len(c.Type)))
		buf.WriteString(c.Type)
		binary.Write(&buf, binary.LittleEndian, int32(len(c.Data)))
		buf.Write(c.Data)
	}
	return blake2b.Sum256(buf.Bytes())
}

// Restore creates one new entity per snapshot entity, in snapshot order,
// and attaches the decoded components. Every component type must already be
// registered on w. It returns the new handle for each snapshot handle.
// Entity handles stored inside component values are not rewritten.
func Restore(w *ecs.World, s *Snapshot) (map[ecs.Entity]ecs.Entity, error) {
	if err := s.Verify(); err != nil {
		return nil, err
	}
	// Resolve every type first so a bad snapshot creates nothing.
	types := make(map[string]reflect.Type)
	for _, c := range s.Components {
		if _, ok := types[c.Type]; ok {
			continue
		}
		t, ok := w.ComponentType(c.Type)
		if !ok {
			return nil, fmt.Errorf("restore %s: %w", c.Type, ErrUnknownType)
		}
		types[c.Type] = t
	}
	values := make([]any, len(s.Components))
	for i, c := range s.Components {
		if c.Entity < 0 || c.Entity >= len(s.Entities) {
			return nil, fmt.Errorf("restore %s: entity ordinal %d out of range", c.Type, c.Entity)
		}
		ptr := reflect.New(types[c.Type])
		if err := json.Unmarshal(c.Data, ptr.Interface()); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.Type, err)
		}
		values[i] = ptr.Elem().Interface()
	}

	created := make([]ecs.Entity, len(s.Entities))
	mapping := make(map[ecs.Entity]ecs.Entity, len(s.Entities))
	for i, old := range s.Entities {
		created[i] = w.Create()
		mapping[old] = created[i]
	}
	for i, c := range s.Components {
		if err := w.SetComponent(created[c.Entity], values[i]); err != nil {
			return nil, err
		}
	}
	return mapping, nil
}
