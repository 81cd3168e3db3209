// Package dash is the dashboard domain on top of the entity layer.
//
// Stored records:
//
//	- Users: indexed collection of kind "user", seeded with u1 and u2.
//	- Chats: indexed collection of kind "chat" holding ChatBoard states (a chat with its
//	  messages), seeded with the board c1. Board.SendMessage appends through Mutate, or
//	  through MutateExclusive when the collection was opened with a lock manager.
//	- Alerts: the alert configuration list, stored whole under "alerts:all-alerts".
//
// Seed records come from the embedded seed.yaml or from a file with the same layout.
//
// Generated data (Generator) covers platform metrics, regional figures and the triggered
// alert feed. It is random mock data and never stored.
//
// ValidateAlertConfigurations checks an alert configuration document against an embedded
// JSON schema. The server only applies it in strict mode.
package dash
