// Package common holds what the API server, the API client and the CLI share:
//
//   - ServerConfig and ClientConfig, with String dumps printed at startup
//   - StoreConfig.OpenStore, which builds the key-value namespace for the selected backend
//     (memory, sqlite, postgres, s3 or a raft replica)
//   - the response envelope and the request and response bodies of the HTTP API
//   - the logger factory installed into dragonboat's logger registry, used by every
//     package through logger.GetLogger
package common
