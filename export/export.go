// Package export encodes session history into a schema-versioned
// interchange envelope and reads it back. The store is never written
// from here; import hands parsed records to the caller.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"
	"unicode"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/tomodoro/tomo"
)

const SchemaVersion = 1

type Format uint8

const (
	_ Format = iota
	FormatJSON
	FormatCBOR
)

func ParseFormat(s string) (Format, error) {
	switch s {
	case "json":
		return FormatJSON, nil
	case "cbor":
		return FormatCBOR, nil
	default:
		return 0, fmt.Errorf("%w: unknown export format %q", tomo.ErrExport, s)
	}
}

type Options struct {
	Format   Format
	Compress bool
	// Now stamps ExportedAt; nil means time.Now.
	Now func() time.Time
}

// Envelope is the interchange document. Sessions appear in ascending
// StartedAt order, ties broken by ID.
type Envelope struct {
	SchemaVersion int       `json:"schema_version" cbor:"schema_version"`
	ExportedAt    time.Time `json:"exported_at" cbor:"exported_at"`
	Sessions      []Session `json:"sessions" cbor:"sessions"`
}

// Session is the interchange shape of one record. Fields stay flat and
// primitive (RFC3339 times, millisecond durations) so other tools can
// consume them.
type Session struct {
	ID                  string    `json:"id" cbor:"id"`
	Phase               string    `json:"phase" cbor:"phase"`
	Status              string    `json:"status" cbor:"status"`
	StartedAt           time.Time `json:"started_at" cbor:"started_at"`
	EndedAt             time.Time `json:"ended_at" cbor:"ended_at"`
	ScheduledDurationMS int64     `json:"scheduled_duration_ms" cbor:"scheduled_duration_ms"`
	ActualDurationMS    int64     `json:"actual_duration_ms" cbor:"actual_duration_ms"`
	CreatedAt           time.Time `json:"created_at" cbor:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" cbor:"updated_at"`
}

var cborEnc cbor.EncMode

func init() {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339}.EncMode()
	if err != nil {
		panic("export: cbor enc mode initialization failed: " + err.Error())
	}
	cborEnc = em
}

// Export drains cursor into w and reports how many sessions it wrote.
// Store-side failures surface as the cursor's error; everything sink-
// or encoding-side wraps ErrExport.
func Export(w io.Writer, cursor tomo.SessionCursor, opts Options) (int, error) {
	sessions, err := drain(cursor)
	if err != nil {
		return 0, err
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	env := Envelope{
		SchemaVersion: SchemaVersion,
		ExportedAt:    now(),
		Sessions:      sessions,
	}

	var payload []byte
	switch opts.Format {
	case FormatCBOR:
		payload, err = cborEnc.Marshal(env)
	case FormatJSON, 0:
		payload, err = json.MarshalIndent(env, "", "  ")
		payload = append(payload, '\n')
	default:
		return 0, fmt.Errorf("%w: unknown format %d", tomo.ErrExport, opts.Format)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: encode envelope: %v", tomo.ErrExport, err)
	}

	out := w
	var zw *zstd.Encoder
	if opts.Compress {
		zw, err = zstd.NewWriter(w)
		if err != nil {
			return 0, fmt.Errorf("%w: init zstd: %v", tomo.ErrExport, err)
		}
		out = zw
	}
	if _, err := out.Write(payload); err != nil {
		return 0, fmt.Errorf("%w: write: %v", tomo.ErrExport, err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return 0, fmt.Errorf("%w: finish zstd: %v", tomo.ErrExport, err)
		}
	}

	return len(sessions), nil
}

func drain(cursor tomo.SessionCursor) ([]Session, error) {
	defer cursor.Close()

	// an empty export still carries an array, not null
	sessions := []Session{}
	for cursor.Next() {
		s, err := wireSession(cursor.Record())
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// frame magic of every zstd stream, little-endian 0xFD2FB528
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Import reads an envelope produced by Export. Compression and format
// are sniffed, the schema version checked, and the records returned in
// file order.
func Import(r io.Reader) ([]tomo.ExistingSessionRecord, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", tomo.ErrExport, err)
	}

	if bytes.HasPrefix(raw, zstdMagic) {
		zr, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: init zstd: %v", tomo.ErrExport, err)
		}
		raw, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: decompress: %v", tomo.ErrExport, err)
		}
	}

	var env Envelope
	if trimmed := bytes.TrimLeftFunc(raw, unicode.IsSpace); len(trimmed) > 0 && trimmed[0] == '{' {
		err = json.Unmarshal(trimmed, &env)
	} else {
		err = cbor.Unmarshal(raw, &env)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", tomo.ErrExport, err)
	}
	if env.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", tomo.ErrExport, env.SchemaVersion)
	}

	recs := make([]tomo.ExistingSessionRecord, 0, len(env.Sessions))
	for _, s := range env.Sessions {
		rec, err := recordFromWire(s)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func wireSession(rec tomo.ExistingSessionRecord) (Session, error) {
	phase, err := phaseWire(rec.Phase)
	if err != nil {
		return Session{}, err
	}
	status, err := statusWire(rec.Status)
	if err != nil {
		return Session{}, err
	}
	return Session{
		ID:                  string(rec.ID),
		Phase:               phase,
		Status:              status,
		StartedAt:           rec.StartedAt,
		EndedAt:             rec.EndedAt,
		ScheduledDurationMS: rec.ScheduledDuration.Milliseconds(),
		ActualDurationMS:    rec.ActualDuration.Milliseconds(),
		CreatedAt:           rec.CreatedAt,
		UpdatedAt:           rec.UpdatedAt,
	}, nil
}

func recordFromWire(s Session) (tomo.ExistingSessionRecord, error) {
	phase, err := parsePhase(s.Phase)
	if err != nil {
		return tomo.ExistingSessionRecord{}, err
	}
	status, err := parseStatus(s.Status)
	if err != nil {
		return tomo.ExistingSessionRecord{}, err
	}
	return tomo.ExistingSessionRecord{
		ExistingRecord: tomo.ExistingRecord[tomo.SessionID]{
			ID:        tomo.SessionID(s.ID),
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		},
		SessionRecord: tomo.SessionRecord{
			Phase:             phase,
			Status:            status,
			StartedAt:         s.StartedAt,
			EndedAt:           s.EndedAt,
			ScheduledDuration: time.Duration(s.ScheduledDurationMS) * time.Millisecond,
			ActualDuration:    time.Duration(s.ActualDurationMS) * time.Millisecond,
		},
	}, nil
}

func phaseWire(p tomo.Phase) (string, error) {
	switch p {
	case tomo.PhaseWorking:
		return "working", nil
	case tomo.PhaseShortBreak:
		return "short_break", nil
	case tomo.PhaseLongBreak:
		return "long_break", nil
	default:
		return "", fmt.Errorf("%w: phase %d has no interchange name", tomo.ErrExport, uint8(p))
	}
}

func parsePhase(s string) (tomo.Phase, error) {
	switch s {
	case "working":
		return tomo.PhaseWorking, nil
	case "short_break":
		return tomo.PhaseShortBreak, nil
	case "long_break":
		return tomo.PhaseLongBreak, nil
	default:
		return 0, fmt.Errorf("%w: unknown phase %q", tomo.ErrExport, s)
	}
}

func statusWire(s tomo.SessionStatus) (string, error) {
	switch s {
	case tomo.SessionCompleted:
		return "completed", nil
	case tomo.SessionAbandoned:
		return "abandoned", nil
	default:
		return "", fmt.Errorf("%w: status %d has no interchange name", tomo.ErrExport, uint8(s))
	}
}

func parseStatus(s string) (tomo.SessionStatus, error) {
	switch s {
	case "completed":
		return tomo.SessionCompleted, nil
	case "abandoned":
		return tomo.SessionAbandoned, nil
	default:
		return 0, fmt.Errorf("%w: unknown status %q", tomo.ErrExport, s)
	}
}
