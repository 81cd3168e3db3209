// Package server implements the dashboard HTTP API.
//
// Every response is a JSON envelope {success, data} or {success: false, error}. Routes:
//
//	GET    /api/health                      store info
//	GET    /api/metrics/all                 generated metrics of every platform
//	GET    /api/metrics/regional            generated regional breakdown
//	GET    /api/metrics/{platform}          generated metrics of one platform
//	GET    /api/alerts                      saved alert configurations
//	POST   /api/alerts                      replace the alert configurations
//	GET    /api/alerts/triggered            generated triggered alerts
//	GET    /api/users                       page of users (?cursor=&limit=)
//	POST   /api/users                       create a user
//	DELETE /api/users/{id}                  delete a user
//	POST   /api/users/deleteMany            delete several users
//	GET    /api/chats                       page of chats (?cursor=&limit=)
//	POST   /api/chats                       create a chat
//	DELETE /api/chats/{id}                  delete a chat
//	POST   /api/chats/deleteMany            delete several chats
//	GET    /api/chats/{chatId}/messages     messages of a chat
//	POST   /api/chats/{chatId}/messages     append a message
//	GET    /metrics                         Prometheus metrics
//
// Users and chats are seeded the first time they are listed.
package server
