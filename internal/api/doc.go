// Package api implements the HTTP REST API and WebSocket server for the
// device registry.
//
// This package provides:
//   - REST endpoints for device CRUD, PUT-as-upsert and state history
//   - WebSocket hub broadcasting device lifecycle events
//   - Optional JWT bearer authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for production deployments
//
// # Wire Format
//
// Devices are serialised as {"id","name","brand","state","creation_time"}
// with creation_time in yyyy-MM-ddTHH:mm:ss (UTC). Listings return
// {"content": [...], "page": {"number","size","total_elements","total_pages"}}.
//
// # Errors
//
// Every error body is {"status","code","message"}; validation failures add
// a "fields" map. Registry errors are mapped in writeServiceError; anything
// unrecognised becomes a 500 with a generic message.
//
// # Security
//
// With security.auth_enabled the device routes require a bearer token.
// Viewers may only read, operators may also write and admins may delete.
// WebSocket connections use single-use tickets to keep tokens out of URLs.
package api
