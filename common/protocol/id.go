package protocol

import (
	"crypto/md5"

	"github.com/google/uuid"
)

const (
	IDBytesLen = 16
)

// ID identifies a vmess user, carrying both their UUID and the derived
// cmdKey used to seed the KDF chain for every request this ID sends.
type ID struct {
	uuid   uuid.UUID
	cmdKey [IDBytesLen]byte
}

// Equals returns true if this ID equals to the other one.
func (id *ID) Equals(another *ID) bool {
	return id.uuid == another.uuid
}

func (id *ID) Bytes() []byte {
	b := id.uuid
	return b[:]
}

func (id *ID) String() string {
	return id.uuid.String()
}

func (id *ID) UUID() uuid.UUID {
	return id.uuid
}

func (id ID) CmdKey() []byte {
	return id.cmdKey[:]
}

// NewID returns an ID with given UUID, deriving cmdKey as
// md5(uuid_bytes || "c48619fe-8f02-49e0-b9e9-edf763e17e21").
func NewID(u uuid.UUID) *ID {
	id := &ID{uuid: u}
	md5hash := md5.New()
	md5hash.Write(u[:])
	md5hash.Write([]byte("c48619fe-8f02-49e0-b9e9-edf763e17e21"))
	md5hash.Sum(id.cmdKey[:0])
	return id
}
