package internal

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dQL/lib/db"
)

// CommandType defines the possible commands for the state machine.
type CommandType uint8

const (
	CommandTCommit CommandType = iota + 1 // Validate and apply a transaction batch.
	CommandTLock                          // Store a lease if the key is not held.
	CommandTUnlock                        // Remove a lease if its value matches.
)

func (c CommandType) String() string {
	switch c {
	case CommandTCommit:
		return "Commit"
	case CommandTLock:
		return "Lock"
	case CommandTUnlock:
		return "Unlock"
	default:
		return "Unknown"
	}
}

// Command is the entry proposed to the raft log.
//
// A commit command carries the batch of a transaction. Lock commands carry
// the lease key and value, the proposer's clock reading and the ttl. Time is
// part of the command so that every replica decides lease expiry the same way.
type Command struct {
	Type  CommandType
	Batch *db.Batch // CommandTCommit

	Key   string // CommandTLock, CommandTUnlock
	Value []byte // CommandTLock, CommandTUnlock
	NowMs int64  // CommandTLock, CommandTUnlock
	TTLMs int64  // CommandTLock
}

// header: type (1)
const headerSize = 1

// SizeBytes returns the size of the serialized command.
func (command *Command) SizeBytes() int {
	switch command.Type {
	case CommandTCommit:
		size := headerSize + 8 + 4 + 4 // read version + read count + write count
		if command.Batch == nil {
			return size
		}
		for _, r := range command.Batch.Reads {
			size += 4 + len(r.Key) + 8
		}
		for _, w := range command.Batch.Writes {
			size += 1 + 4 + len(w.Key) + 4 + len(w.Value)
		}
		return size
	default:
		return headerSize + 8 + 8 + 4 + len(command.Key) + len(command.Value)
	}
}

// Serialize encodes the command. All integers are big endian.
//
// Commit:
//
//	1 byte type | 8 bytes read version | 4 bytes read count
//	reads:  4 bytes key length | key | 8 bytes version
//	4 bytes write count
//	writes: 1 byte delete flag | 4 bytes key length | key | 4 bytes value length | value
//
// Lock and Unlock:
//
//	1 byte type | 8 bytes now (ms) | 8 bytes ttl (ms) | 4 bytes key length | key | value
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())
	result[0] = byte(command.Type)
	off := headerSize

	putU32 := func(v int) {
		binary.BigEndian.PutUint32(result[off:], uint32(v))
		off += 4
	}
	putU64 := func(v uint64) {
		binary.BigEndian.PutUint64(result[off:], v)
		off += 8
	}
	putBytes := func(b []byte) {
		off += copy(result[off:], b)
	}

	switch command.Type {
	case CommandTCommit:
		batch := command.Batch
		if batch == nil {
			batch = &db.Batch{}
		}
		putU64(batch.ReadVersion)
		putU32(len(batch.Reads))
		for _, r := range batch.Reads {
			putU32(len(r.Key))
			putBytes([]byte(r.Key))
			putU64(r.Version)
		}
		putU32(len(batch.Writes))
		for _, w := range batch.Writes {
			if w.Delete {
				result[off] = 1
			}
			off++
			putU32(len(w.Key))
			putBytes([]byte(w.Key))
			putU32(len(w.Value))
			putBytes(w.Value)
		}
	default:
		putU64(uint64(command.NowMs))
		putU64(uint64(command.TTLMs))
		putU32(len(command.Key))
		putBytes([]byte(command.Key))
		putBytes(command.Value)
	}

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for command")
	}
	r := reader{data: data, off: headerSize}
	command.Type = CommandType(data[0])

	switch command.Type {
	case CommandTCommit:
		batch := &db.Batch{ReadVersion: r.u64()}
		n := r.count(4 + 8)
		if n > 0 {
			batch.Reads = make([]db.Read, n)
		}
		for i := 0; i < n; i++ {
			batch.Reads[i] = db.Read{Key: string(r.bytes(int(r.u32()))), Version: r.u64()}
		}
		n = r.count(1 + 4 + 4)
		if n > 0 {
			batch.Writes = make([]db.Write, n)
		}
		for i := 0; i < n; i++ {
			del := r.u8() == 1
			key := string(r.bytes(int(r.u32())))
			var value []byte
			if l := int(r.u32()); !del || l > 0 {
				value = append([]byte{}, r.bytes(l)...)
			}
			batch.Writes[i] = db.Write{Key: key, Value: value, Delete: del}
		}
		if r.err != nil {
			return r.err
		}
		if r.off != len(data) {
			return fmt.Errorf("%d trailing bytes after commit command", len(data)-r.off)
		}
		command.Batch = batch
		command.Key, command.Value, command.NowMs, command.TTLMs = "", nil, 0, 0
	case CommandTLock, CommandTUnlock:
		command.NowMs = int64(r.u64())
		command.TTLMs = int64(r.u64())
		command.Key = string(r.bytes(int(r.u32())))
		if r.err != nil {
			return r.err
		}
		command.Value = append([]byte{}, data[r.off:]...)
		command.Batch = nil
	default:
		return fmt.Errorf("unknown command type %d", data[0])
	}
	return nil
}

// reader decodes big endian fields and remembers the first out-of-bounds access.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.off < n {
		r.err = fmt.Errorf("data too short: need %d bytes at offset %d, have %d", n, r.off, len(r.data)-r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() byte {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (r *reader) u64() uint64 {
	if b := r.take(8); b != nil {
		return binary.BigEndian.Uint64(b)
	}
	return 0
}

func (r *reader) bytes(n int) []byte {
	return r.take(n)
}

// count reads an element count and rejects counts that cannot fit into the
// remaining data given the minimum element size.
func (r *reader) count(minSize int) int {
	n := int(r.u32())
	if r.err == nil && n*minSize > len(r.data)-r.off {
		r.err = fmt.Errorf("element count %d exceeds remaining data", n)
	}
	if r.err != nil {
		return 0
	}
	return n
}
