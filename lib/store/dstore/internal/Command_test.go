package internal

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"strings"
	"testing"

	"github.com/ValentinKolb/dQL/lib/db"
)

// TestSizeBytes tests the SizeBytes method
func TestSizeBytes(t *testing.T) {
	tests := []struct {
		name     string
		command  Command
		expected int
	}{
		{
			name: "Lock command",
			command: Command{
				Type:  CommandTLock,
				Key:   "lock",
				Value: []byte("owner"),
				NowMs: 1000,
				TTLMs: 50,
			},
			expected: 1 + 8 + 8 + 4 + 4 + 5, // Type + Now + TTL + KeyLen + Key + Value
		},
		{
			name:     "Empty commit",
			command:  Command{Type: CommandTCommit},
			expected: 1 + 8 + 4 + 4, // Type + ReadVersion + ReadCount + WriteCount
		},
		{
			name: "Commit with reads and writes",
			command: Command{
				Type: CommandTCommit,
				Batch: &db.Batch{
					ReadVersion: 7,
					Reads:       []db.Read{{Key: "a", Version: 3}},
					Writes:      []db.Write{{Key: "bb", Value: []byte("xyz")}, {Key: "c", Delete: true}},
				},
			},
			expected: 1 + 8 + 4 + (4 + 1 + 8) + 4 + (1 + 4 + 2 + 4 + 3) + (1 + 4 + 1 + 4),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size := tt.command.SizeBytes()
			if size != tt.expected {
				t.Errorf("SizeBytes() = %v, want %v", size, tt.expected)
			}
			if got := len(tt.command.Serialize()); got != size {
				t.Errorf("SizeBytes() = %d, but serialized data length = %d", size, got)
			}
		})
	}
}

// TestSerializeDeserializeCommit tests both methods for commit commands
func TestSerializeDeserializeCommit(t *testing.T) {
	tests := []struct {
		name  string
		batch *db.Batch
	}{
		{
			name: "Reads and writes",
			batch: &db.Batch{
				ReadVersion: 42,
				Reads:       []db.Read{{Key: "a", Version: 1}, {Key: "b", Version: 42}},
				Writes: []db.Write{
					{Key: "a", Value: []byte("1")},
					{Key: "b", Delete: true},
				},
			},
		},
		{
			name: "Writes only",
			batch: &db.Batch{
				ReadVersion: 1,
				Writes:      []db.Write{{Key: "k", Value: []byte("v")}},
			},
		},
		{
			name: "Empty value",
			batch: &db.Batch{
				Writes: []db.Write{{Key: "k", Value: []byte{}}},
			},
		},
		{
			name: "Binary and unicode",
			batch: &db.Batch{
				ReadVersion: ^uint64(0),
				Reads:       []db.Read{{Key: "你好世界", Version: ^uint64(0)}},
				Writes:      []db.Write{{Key: "\x00\xff", Value: []byte{0, 1, 2, 3, 254, 255}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := Command{Type: CommandTCommit, Batch: tt.batch}
			data := cmd.Serialize()

			var decoded Command
			if err := decoded.Deserialize(data); err != nil {
				t.Fatalf("Deserialize() error = %v", err)
			}
			if decoded.Type != CommandTCommit {
				t.Errorf("Type mismatch: got %v, want %v", decoded.Type, CommandTCommit)
			}
			if !reflect.DeepEqual(decoded.Batch, tt.batch) {
				t.Errorf("Batch mismatch:\n got  %+v\n want %+v", decoded.Batch, tt.batch)
			}
		})
	}
}

// TestSerializeDeserializeLease tests both methods for lock commands
func TestSerializeDeserializeLease(t *testing.T) {
	for _, typ := range []CommandType{CommandTLock, CommandTUnlock} {
		t.Run(typ.String(), func(t *testing.T) {
			cmd := Command{Type: typ, Key: "txn", Value: []byte("owner-1"), NowMs: 1_700_000_000_000, TTLMs: 30_000}

			var decoded Command
			if err := decoded.Deserialize(cmd.Serialize()); err != nil {
				t.Fatalf("Deserialize() error = %v", err)
			}
			if decoded.Type != typ || decoded.Key != "txn" || decoded.NowMs != cmd.NowMs || decoded.TTLMs != cmd.TTLMs {
				t.Errorf("Field mismatch: got %+v, want %+v", decoded, cmd)
			}
			if !bytes.Equal(decoded.Value, cmd.Value) {
				t.Errorf("Value mismatch: got %v, want %v", decoded.Value, cmd.Value)
			}
			if decoded.Batch != nil {
				t.Errorf("Lease command must not carry a batch")
			}
		})
	}
}

// TestDeserializeErrors tests error cases in Deserialize
func TestDeserializeErrors(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		expectedErr string
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectedErr: "data too short for command",
		},
		{
			name:        "Unknown type",
			data:        []byte{99, 0, 0},
			expectedErr: "unknown command type 99",
		},
		{
			name:        "Truncated lock header",
			data:        []byte{byte(CommandTLock), 1, 2, 3},
			expectedErr: "data too short",
		},
		{
			name: "Invalid key length",
			data: func() []byte {
				data := make([]byte, 21)
				data[0] = byte(CommandTLock)
				binary.BigEndian.PutUint32(data[17:21], 1000)
				return data
			}(),
			expectedErr: "data too short",
		},
		{
			name: "Read count exceeds data",
			data: func() []byte {
				data := make([]byte, 1+8+4)
				data[0] = byte(CommandTCommit)
				binary.BigEndian.PutUint32(data[9:13], 1<<30)
				return data
			}(),
			expectedErr: "exceeds remaining data",
		},
		{
			name: "Trailing bytes",
			data: func() []byte {
				cmd := Command{Type: CommandTCommit, Batch: &db.Batch{}}
				return append(cmd.Serialize(), 0)
			}(),
			expectedErr: "trailing bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmd Command
			err := cmd.Deserialize(tt.data)
			if err == nil {
				t.Fatalf("Deserialize() expected error containing %q, got nil", tt.expectedErr)
			}
			if !strings.Contains(err.Error(), tt.expectedErr) {
				t.Errorf("Deserialize() error = %v, want error containing %q", err, tt.expectedErr)
			}
		})
	}
}

// TestDeserializeReuse makes sure no field of a previous command survives
func TestDeserializeReuse(t *testing.T) {
	var cmd Command
	lock := Command{Type: CommandTLock, Key: "k", Value: []byte("v"), NowMs: 5, TTLMs: 6}
	if err := cmd.Deserialize(lock.Serialize()); err != nil {
		t.Fatal(err)
	}
	commit := Command{Type: CommandTCommit, Batch: &db.Batch{ReadVersion: 1}}
	if err := cmd.Deserialize(commit.Serialize()); err != nil {
		t.Fatal(err)
	}
	if cmd.Key != "" || cmd.Value != nil || cmd.NowMs != 0 || cmd.TTLMs != 0 {
		t.Errorf("Lock fields survived deserialization of a commit: %+v", cmd)
	}
	if cmd.Batch == nil || cmd.Batch.ReadVersion != 1 {
		t.Errorf("Unexpected batch %+v", cmd.Batch)
	}
}
