// internal/wire/record.go — msgpack records pushed to the rollout store.
package wire

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/CaptainGlac1er/rocket-learn/engine/agent"
)

// RecordVersion is bumped whenever the tensor layout changes.
const RecordVersion = 1

// Record is one encoded observation as stored for the trainer.
type Record struct {
	Version   int                `msgpack:"v"`
	EpisodeID string             `msgpack:"episode"`
	Step      int                `msgpack:"step"`
	Obs       ObservationPayload `msgpack:"obs"`
}

// PayloadFromObservation flattens an agent.Observation into wire form.
// The query keeps its leading batch dimension.
func PayloadFromObservation(carID int32, o *agent.Observation) ObservationPayload {
	p := ObservationPayload{
		CarID:    carID,
		Query:    make([][]float32, 0, 1),
		Entities: make([][]float32, len(o.Entities)),
		Mask:     make([]bool, len(o.Mask)),
	}
	for _, q := range o.QueryBatch() {
		p.Query = append(p.Query, append([]float32(nil), q[:]...))
	}
	for i := range o.Entities {
		p.Entities[i] = append([]float32(nil), o.Entities[i][:]...)
	}
	copy(p.Mask, o.Mask)
	return p
}

// MarshalRecord encodes r with msgpack.
func MarshalRecord(r *Record) ([]byte, error) {
	b, err := msgpack.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return b, nil
}

// UnmarshalRecord decodes a msgpack record and checks its version.
func UnmarshalRecord(b []byte) (Record, error) {
	var r Record
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return Record{}, fmt.Errorf("unmarshal record: %w", err)
	}
	if r.Version != RecordVersion {
		return Record{}, fmt.Errorf("record version %d, want %d", r.Version, RecordVersion)
	}
	return r, nil
}
