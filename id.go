package studio

import "github.com/meemee/studio/id"

// ID is the primary identifier type for all studio entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
