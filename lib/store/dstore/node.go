package dstore

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/config"
	"github.com/veridian-dash/veridian/lib/store"
)

// Dragonboat uses RTT (Round Trip Time) to determine the timing of elections and heartbeats.
// These default values are selected according to the RAFT Paper
const (
	electionRTTFactor  = 10
	heartbeatRTTFactor = 1

	// DefaultShardID is the shard holding the entity namespace
	DefaultShardID uint64 = 1
)

// Config holds the RAFT parameters of one replica.
type Config struct {
	ShardID            uint64
	ReplicaID          uint64
	ClusterMembers     map[uint64]string
	Join               bool
	DataDir            string
	RTTMillisecond     uint64
	SnapshotEntries    uint64
	CompactionOverhead uint64
	Timeout            time.Duration
}

// ReplicaID derives a stable numeric replica id from a human readable node name (e.g. "node-1").
func ReplicaID(name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return h.Sum64()
}

// ParseClusterMembers parses "node-1=localhost:63001,node-2=localhost:63002".
func ParseClusterMembers(s string) (map[uint64]string, error) {
	members := make(map[uint64]string)
	for _, member := range strings.Split(s, ",") {
		member = strings.TrimSpace(member)
		if member == "" {
			continue
		}
		parts := strings.Split(member, "=")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid cluster member format: %s (expected NAME=address)", member)
		}
		members[ReplicaID(parts[0])] = parts[1]
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("no cluster members given")
	}
	return members, nil
}

// ToDragonboatConfig converts the Config to the Dragonboat shard config
func (c *Config) ToDragonboatConfig() config.Config {
	return config.Config{
		ReplicaID:          c.ReplicaID,
		ShardID:            c.shardID(),
		ElectionRTT:        electionRTTFactor,
		HeartbeatRTT:       heartbeatRTTFactor,
		CheckQuorum:        true,
		SnapshotEntries:    c.SnapshotEntries,
		CompactionOverhead: c.CompactionOverhead,
	}
}

// ToNodeHostConfig creates a NodeHostConfig for Dragonboat
func (c *Config) ToNodeHostConfig() config.NodeHostConfig {
	return config.NodeHostConfig{
		WALDir:         c.DataDir,
		NodeHostDir:    c.DataDir,
		RTTMillisecond: c.RTTMillisecond,
		RaftAddress:    c.ClusterMembers[c.ReplicaID],
	}
}

// Validate checks that the replica is part of the cluster.
func (c *Config) Validate() error {
	if c.ReplicaID == 0 {
		return fmt.Errorf("replica id is required for the raft store")
	}
	if len(c.ClusterMembers) == 0 {
		return fmt.Errorf("cluster members are required for the raft store")
	}
	if _, ok := c.ClusterMembers[c.ReplicaID]; !ok {
		return fmt.Errorf("no address found for replica ID %d in cluster members", c.ReplicaID)
	}
	if c.RTTMillisecond == 0 {
		return fmt.Errorf("rtt must be positive")
	}
	return nil
}

func (c *Config) shardID() uint64 {
	if c.ShardID == 0 {
		return DefaultShardID
	}
	return c.ShardID
}

// String returns a formatted string representation of the RAFT parameters
func (c *Config) String() string {
	var sb strings.Builder
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addField("RAFT Address", c.ClusterMembers[c.ReplicaID])
	addField("Replica ID", strconv.FormatUint(c.ReplicaID, 10))
	addField("Shard ID", strconv.FormatUint(c.shardID(), 10))
	addField("Round Trip Time (ms)", fmt.Sprintf("%d ms", c.RTTMillisecond))
	addField("Election RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*electionRTTFactor))
	addField("Heartbeat RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*heartbeatRTTFactor))
	addField("Snapshot Entries", fmt.Sprintf("%d", c.SnapshotEntries))
	addField("Compaction Overhead", fmt.Sprintf("%d", c.CompactionOverhead))
	addField("Data Directory", c.DataDir)
	addField("Timeout", c.Timeout.String())

	keys := make([]uint64, 0, len(c.ClusterMembers))
	for k := range c.ClusterMembers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		addField(fmt.Sprintf("Member %d", k), c.ClusterMembers[k])
	}
	return sb.String()
}

// Start creates the NodeHost, starts the replica and returns the store of the shard.
func Start(c Config, dbFactory store.DBFactory) (store.IStore, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	nh, err := dragonboat.NewNodeHost(c.ToNodeHostConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create node host: %w", err)
	}

	members := c.ClusterMembers
	if c.Join {
		members = nil
	}
	if err := nh.StartConcurrentReplica(members, c.Join, CreateStateMachineFactory(dbFactory), c.ToDragonboatConfig()); err != nil {
		nh.Close()
		return nil, fmt.Errorf("failed to start shard %d: %w", c.shardID(), err)
	}

	log.Infof("started replica %d of shard %d", c.ReplicaID, c.shardID())
	return NewDistributedStore(nh, c.shardID(), c.Timeout), nil
}
