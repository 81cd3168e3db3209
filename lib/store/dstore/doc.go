// Package dstore implements a replicated store.IStore on top of the Dragonboat RAFT
// library. It is the "raft" store backend of the server: several servers form one RAFT
// shard and every entity write is replicated to a majority before it is acknowledged.
//
// Architecture:
//
//   - Store Client (store.go): serializes writes into internal.Command entries and
//     proposes them with SyncPropose. Reads go through SyncRead (linearizable); GetDBInfo
//     uses StaleRead.
//
//   - State Machine (statemachine.go): a Dragonboat IConcurrentStateMachine holding one
//     db.KVDB. Snapshots use the engine's Save and Load, so only engines that support both
//     (maple, sqlite, postgres) can back a replica.
//
//   - Node setup (node.go): Config turns the server flags into the NodeHost and shard
//     configuration and Start brings the replica up.
//
// Expiration:
//
//	The proposer converts a TTL into an absolute deadline and stamps every SetIfUnset
//	with its own clock. Replicas apply it with db.KVDB.SetIfUnsetAt at that clock, so a
//	follower that applies the entry late, or a node replaying its log after a restart,
//	picks the same lock owner as the leader. Engines backing a replica must not drop
//	expired entries on their own: maple is opened with DisableSweeper, and Save keeps
//	expired entries in every engine.
//
// Error Handling:
//
//	ErrSystemBusy from Dragonboat is retried a few times with a short pause. Timeouts
//	surface as store.Error with RetCTimeout, everything else as RetCInternalError.
//
// Example:
//
//	s, err := dstore.Start(dstore.Config{
//		ReplicaID:      dstore.ReplicaID("node-1"),
//		ClusterMembers: map[uint64]string{dstore.ReplicaID("node-1"): "localhost:63001"},
//		DataDir:        "data",
//		RTTMillisecond: 100,
//		Timeout:        5 * time.Second,
//	}, func() db.KVDB { return maple.NewMapleDB(&maple.DBOptions{DisableSweeper: true}) })
package dstore
