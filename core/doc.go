// Package core defines the domain model shared by the gateway, storage, and
// service layers of scoreline.
//
// # Overview
//
// The core package provides:
//   - Domain types (Match, Commentary) and their JSON wire shape
//   - Match status derivation from the scheduled time window
//   - The EventPublisher contract producers use after a write is durable
//   - A thin Redis client wrapper used by the admission rate windows
//
// # Design Principles
//
//  1. Interfaces defined where used, not where implemented
//  2. Small, focused interfaces
//  3. context.Context as first parameter on anything that blocks
package core
