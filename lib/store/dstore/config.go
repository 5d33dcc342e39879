package dstore

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/dQL/lib/db/util"
	"github.com/lni/dragonboat/v4/config"
)

// --------------------------------------------------------------------------
// helper functions to interface with Dragonboat
// --------------------------------------------------------------------------

// Dragonboat uses RTT (Round Trip Time) to determine the timing of elections and heartbeats.
// These default values are selected according to the RAFT Paper
const (
	electionRTTFactor  = 10
	heartbeatRTTFactor = 1
)

// Defaults used by ParseURL for absent parameters.
const (
	DefaultShardID            uint64 = 100
	DefaultRTTMillisecond     uint64 = 100
	DefaultSnapshotEntries    uint64 = 10_000
	DefaultCompactionOverhead uint64 = 5_000
	DefaultTimeout                   = 5 * time.Second
)

// NodeConfig holds all configuration parameters of one replica of the raft cluster.
type NodeConfig struct {
	ShardID   uint64
	ReplicaID uint64

	// Members maps the replica ids of the initial cluster to their raft
	// addresses. It must contain ReplicaID unless Join is set.
	Members map[uint64]string
	Join    bool

	// Dragonboat parameters
	RaftAddress        string
	DataDir            string
	RTTMillisecond     uint64
	SnapshotEntries    uint64
	CompactionOverhead uint64

	// Timeout bounds a single raft round trip
	Timeout time.Duration
}

// ToDragonboatConfig converts the NodeConfig to a Dragonboat Config
func (c *NodeConfig) ToDragonboatConfig() config.Config {
	return config.Config{
		ReplicaID:          c.ReplicaID,
		ShardID:            c.ShardID,
		ElectionRTT:        electionRTTFactor,  // = c.RTTMillisecond * 10
		HeartbeatRTT:       heartbeatRTTFactor, // = c.RTTMillisecond * 1
		CheckQuorum:        true,
		SnapshotEntries:    c.SnapshotEntries,
		CompactionOverhead: c.CompactionOverhead,
		MaxInMemLogSize:    0,
	}
}

// ToNodeHostConfig creates a NodeHostConfig for Dragonboat
func (c *NodeConfig) ToNodeHostConfig() config.NodeHostConfig {
	return config.NodeHostConfig{
		WALDir:         c.DataDir,
		NodeHostDir:    c.DataDir,
		RTTMillisecond: c.RTTMillisecond,
		RaftAddress:    c.RaftAddress,
	}
}

// Validate checks the configuration for values dragonboat would reject.
func (c *NodeConfig) Validate() error {
	if c.RaftAddress == "" {
		return fmt.Errorf("raft address must not be empty")
	}
	if c.ReplicaID == 0 {
		return fmt.Errorf("replica id must not be 0")
	}
	if c.ShardID == 0 {
		return fmt.Errorf("shard id must not be 0")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory must not be empty")
	}
	if c.RTTMillisecond == 0 {
		return fmt.Errorf("rtt must be at least 1ms")
	}
	if !c.Join {
		addr, ok := c.Members[c.ReplicaID]
		if !ok {
			return fmt.Errorf("replica %d is not a member of the initial cluster", c.ReplicaID)
		}
		if addr != c.RaftAddress {
			return fmt.Errorf("replica %d is listed as %s but listens on %s", c.ReplicaID, addr, c.RaftAddress)
		}
	}
	return nil
}

// ReplicaIDFor derives the replica id used for a member listed without an
// explicit id.
func ReplicaIDFor(address string) uint64 {
	id := util.HashString(address, 0)
	if id == 0 {
		id = 1
	}
	return id
}

// ParseURL builds a NodeConfig from a connection string of the form
//
//	raft://{raft-address}?replica=&members=&dir=&shard=&rtt=&timeout=&join=&snapshot=&compaction=
//
// members is a comma separated list of "id@address" or "address" entries.
// Without members the node forms a single-node cluster. Without replica the id
// is derived from the raft address, or taken from the member list entry
// matching it.
func ParseURL(raw string) (NodeConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return NodeConfig{}, err
	}
	if u.Scheme != "raft" {
		return NodeConfig{}, fmt.Errorf("unexpected scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return NodeConfig{}, fmt.Errorf("missing raft address in %q", raw)
	}

	q := u.Query()
	c := NodeConfig{
		RaftAddress:        u.Host,
		ShardID:            DefaultShardID,
		RTTMillisecond:     DefaultRTTMillisecond,
		SnapshotEntries:    DefaultSnapshotEntries,
		CompactionOverhead: DefaultCompactionOverhead,
		Timeout:            DefaultTimeout,
		Members:            map[uint64]string{},
	}

	parseUint := func(name string, dst *uint64) {
		if err != nil || !q.Has(name) {
			return
		}
		var v uint64
		if v, err = strconv.ParseUint(q.Get(name), 10, 64); err != nil {
			err = fmt.Errorf("invalid %s: %w", name, err)
			return
		}
		*dst = v
	}
	parseUint("shard", &c.ShardID)
	parseUint("replica", &c.ReplicaID)
	parseUint("rtt", &c.RTTMillisecond)
	parseUint("snapshot", &c.SnapshotEntries)
	parseUint("compaction", &c.CompactionOverhead)
	if err != nil {
		return NodeConfig{}, err
	}

	if q.Has("timeout") {
		if c.Timeout, err = time.ParseDuration(q.Get("timeout")); err != nil {
			return NodeConfig{}, fmt.Errorf("invalid timeout: %w", err)
		}
	}
	if q.Has("join") {
		if c.Join, err = strconv.ParseBool(q.Get("join")); err != nil {
			return NodeConfig{}, fmt.Errorf("invalid join: %w", err)
		}
	}

	for _, m := range strings.Split(q.Get("members"), ",") {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		id, addr := uint64(0), m
		if before, after, found := strings.Cut(m, "@"); found {
			if id, err = strconv.ParseUint(before, 10, 64); err != nil {
				return NodeConfig{}, fmt.Errorf("invalid member %q: %w", m, err)
			}
			addr = after
		} else {
			id = ReplicaIDFor(addr)
		}
		c.Members[id] = addr
		if c.ReplicaID == 0 && addr == c.RaftAddress {
			c.ReplicaID = id
		}
	}

	if c.ReplicaID == 0 {
		c.ReplicaID = ReplicaIDFor(c.RaftAddress)
	}
	if len(c.Members) == 0 && !c.Join {
		c.Members[c.ReplicaID] = c.RaftAddress
	}

	c.DataDir = q.Get("dir")
	if c.DataDir == "" {
		c.DataDir = filepath.Join(os.TempDir(), "dql-raft", strings.ReplaceAll(c.RaftAddress, ":", "_"))
	}

	return c, c.Validate()
}

// String returns a formatted string representation of the configuration
func (c *NodeConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Node Identity
	addSection("Node Identity")
	addField("RAFT Address", c.RaftAddress)
	addField("Replica ID", strconv.FormatUint(c.ReplicaID, 10))
	addField("Shard ID", strconv.FormatUint(c.ShardID, 10))

	// RAFT parameters
	addSection("RAFT Parameters")
	addField("Round Trip Time (ms)", fmt.Sprintf("%d ms", c.RTTMillisecond))
	addField("Election RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*electionRTTFactor))
	addField("Heartbeat RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*heartbeatRTTFactor))
	addField("Check Quorum", fmt.Sprintf("%t", true))
	addField("Snapshot Entries", fmt.Sprintf("%d", c.SnapshotEntries))
	addField("Compaction Overhead", fmt.Sprintf("%d", c.CompactionOverhead))
	addField("Timeout", c.Timeout.String())

	// Storage
	addSection("Storage")
	addField("Data Directory", c.DataDir)

	// Cluster configuration
	addSection("Cluster")
	addField("Join", fmt.Sprintf("%t", c.Join))
	sb.WriteString("  Initial Members:\n")

	// Sort keys for consistent output
	var keys []uint64
	for k := range c.Members {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("    Replica %d: %s\n", k, c.Members[k]))
	}
	return sb.String()
}
