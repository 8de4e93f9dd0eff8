package worlds

import "github.com/mizzle-dev/worlds/id"

// ID is the primary identifier type for all Worlds entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
