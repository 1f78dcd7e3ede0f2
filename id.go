package baton

import "github.com/batonhq/baton/id"

// ID is the primary identifier type for all Baton entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
