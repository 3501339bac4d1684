package replication

import "strconv"

// LogID identifies a log.
type LogID uint64

const (
	// metaDataLogBit is set on the ids of metadata logs, which store the
	// epoch metadata of the data log with the same low bits.
	metaDataLogBit LogID = 1 << 63

	// UserLogIDMax is the largest id available to user logs. Ids above it,
	// up to the metadata bit, are reserved for internal logs.
	UserLogIDMax LogID = 1<<62 - 1 - 1000
)

// MetaDataLogID returns the metadata log of a data log.
func MetaDataLogID(id LogID) LogID {
	return id | metaDataLogBit
}

// IsMetaData reports whether id is a metadata log.
func (id LogID) IsMetaData() bool {
	return id&metaDataLogBit != 0
}

// IsInternal reports whether id is one of the reserved internal logs.
func (id LogID) IsInternal() bool {
	return !id.IsMetaData() && id > UserLogIDMax && id < 1<<62
}

// IsUser reports whether id is an ordinary user data log.
func (id LogID) IsUser() bool {
	return id > 0 && id <= UserLogIDMax
}

// String returns L<id> for data logs and M<id> for metadata logs.
func (id LogID) String() string {
	if id.IsMetaData() {
		return "M" + strconv.FormatUint(uint64(id&^metaDataLogBit), 10)
	}
	return "L" + strconv.FormatUint(uint64(id), 10)
}
