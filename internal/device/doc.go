// Package device provides the Device Registry for Gray Logic.
//
// The registry is the system of record for devices: named, branded items
// with a lifecycle state. It owns validation, the IN_USE rules and the
// transactional integrity of every mutation.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────────┐
//	│                           Device Registry                            │
//	│                                                                      │
//	│  ┌──────────────────┐    ┌──────────────────┐    ┌────────────────┐  │
//	│  │     Registry     │    │    Repository    │    │   Validation   │  │
//	│  │   (registry.go)  │───▶│  (repository.go) │    │(validation.go) │  │
//	│  │                  │    │                  │    │                │  │
//	│  │ • CRUD + upsert  │    │ • SQLite queries │    │ • Field rules  │  │
//	│  │ • IN_USE guard   │    │ • Unit of work   │    │ • State enum   │  │
//	│  │ • Events/metrics │    │ • State history  │    │                │  │
//	│  └──────────────────┘    └──────────────────┘    └────────────────┘  │
//	│           │                       │                                  │
//	└───────────│───────────────────────│──────────────────────────────────┘
//	            ▼                       ▼
//	┌──────────────────────┐   ┌──────────────────────┐
//	│  REST API / WS push  │   │   SQLite Database    │
//	│  MQTT / InfluxDB     │   │ devices, history     │
//	└──────────────────────┘   └──────────────────────┘
//
// # State rules
//
//   - New devices start AVAILABLE.
//   - Any state may be assigned from any other state.
//   - Name and brand are frozen while the current state is IN_USE.
//   - An IN_USE device cannot be deleted.
//   - CreationTime is set once and never changes.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//	history := device.NewSQLiteStateHistoryRepository(db)
//	registry := device.NewRegistry(repo, history, device.SystemClock)
//	registry.SetLogger(log)
//
//	dev, err := registry.CreateDevice(ctx, device.CreateRequest{Name: "Pixel", Brand: "Google"})
//
//	inUse := string(device.StateInUse)
//	_, err = registry.UpdateDevice(ctx, dev.ID, device.PatchRequest{State: &inUse})
//
//	created, dev, err := registry.ReplaceDevice(ctx, id, device.ReplaceRequest{...})
//
// # Concurrency
//
// Mutations read the device through Tx.FindByIDForUpdate inside
// Repository.InTx. The SQLite implementation opens write transactions with
// BEGIN IMMEDIATE, so concurrent writers to the same device are serialized
// and each observes the previous writer's committed state.
package device
